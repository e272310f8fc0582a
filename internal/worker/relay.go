// Package worker runs the background jobs around a statistics session:
// relaying fresh snapshots to AMQP and Google Sheets, and reacting to ledger
// change notifications.
package worker

import (
	"context"
	"fmt"
	"sync"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/session"
)

// Source is the observable state a relay follows.
type Source interface {
	Subscribe(buf int) (<-chan session.State, func())
}

// Publisher announces snapshots.
type Publisher interface {
	PublishSnapshot(ctx context.Context, msg *amqp.SnapshotMessage) error
}

// Exporter writes a snapshot to an external sink and returns a reference to
// what it wrote.
type Exporter interface {
	Export(ctx context.Context, snap core.Snapshot) (string, error)
}

// ExportLog remembers which fingerprint was last exported per window label.
type ExportLog interface {
	LastExport(ctx context.Context, label string) (string, error)
	RecordExport(ctx context.Context, label, fingerprint string) error
}

// SnapshotRelay forwards every Ready state of a session to the publisher and
// exporter. A snapshot whose fingerprint already went out for its window is
// not sent again, so repeated refreshes of unchanged data stay quiet.
type SnapshotRelay struct {
	source    Source
	publisher Publisher
	exporter  Exporter
	exportLog ExportLog
	logger    *log.Logger

	mu        sync.Mutex
	published map[string]string
	exported  map[string]string
}

// NewSnapshotRelay creates a relay. publisher, exporter and exportLog may be
// nil; without an exportLog exported fingerprints are kept in memory only.
func NewSnapshotRelay(source Source, publisher Publisher, exporter Exporter, exportLog ExportLog, logger *log.Logger) *SnapshotRelay {
	if logger == nil {
		logger = log.Discard()
	}
	return &SnapshotRelay{
		source:    source,
		publisher: publisher,
		exporter:  exporter,
		exportLog: exportLog,
		logger:    logger.WithComponent(log.ComponentWorker),
		published: make(map[string]string),
		exported:  make(map[string]string),
	}
}

// Run follows the source until ctx is done or the source closes.
func (r *SnapshotRelay) Run(ctx context.Context) error {
	states, unsubscribe := r.source.Subscribe(1)
	defer unsubscribe()

	r.logger.InfoContext(ctx, "Snapshot relay started",
		"publish", r.publisher != nil,
		"export", r.exporter != nil)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st, ok := <-states:
			if !ok {
				r.logger.InfoContext(ctx, "Snapshot source closed")
				return nil
			}
			if st.Status != session.StatusReady {
				continue
			}
			snap, ok := st.Snapshot()
			if !ok {
				continue
			}
			r.Handle(ctx, snap)
		}
	}
}

// Handle publishes and exports one snapshot. Failures are logged and retried
// on the next Ready state for the same window.
func (r *SnapshotRelay) Handle(ctx context.Context, snap core.Snapshot) {
	label := snap.Window.Label()
	fp := snap.Fingerprint()
	logger := r.logger.WithFields(log.NewFields().
		WithWindow(label, snap.Window.Start, snap.Window.End))

	if r.publisher != nil && r.swap(r.published, label, fp) {
		if err := r.publisher.PublishSnapshot(ctx, amqp.NewSnapshotMessage(snap)); err != nil {
			r.forget(r.published, label)
			logger.ErrorContext(ctx, "Failed to publish snapshot", log.FieldError, err)
		}
	}

	if r.exporter != nil {
		if err := r.export(ctx, snap, label, fp); err != nil {
			logger.ErrorContext(ctx, "Failed to export snapshot", log.FieldError, err)
		}
	}
}

func (r *SnapshotRelay) export(ctx context.Context, snap core.Snapshot, label, fp string) error {
	if r.exportLog == nil {
		if !r.swap(r.exported, label, fp) {
			return nil
		}
		if _, err := r.exporter.Export(ctx, snap); err != nil {
			r.forget(r.exported, label)
			return err
		}
		return nil
	}

	last, err := r.exportLog.LastExport(ctx, label)
	if err != nil {
		return fmt.Errorf("read export log: %w", err)
	}
	if last == fp {
		r.logger.DebugContext(ctx, "Snapshot unchanged since last export",
			log.FieldLabel, label,
			log.FieldFingerprint, fp)
		return nil
	}
	if _, err := r.exporter.Export(ctx, snap); err != nil {
		return err
	}
	if err := r.exportLog.RecordExport(ctx, label, fp); err != nil {
		return fmt.Errorf("record export: %w", err)
	}
	return nil
}

// swap stores fp for label and reports whether it differed.
func (r *SnapshotRelay) swap(m map[string]string, label, fp string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m[label] == fp {
		return false
	}
	m[label] = fp
	return true
}

func (r *SnapshotRelay) forget(m map[string]string, label string) {
	r.mu.Lock()
	delete(m, label)
	r.mu.Unlock()
}
