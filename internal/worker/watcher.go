package worker

import (
	"context"
	"errors"
	"fmt"

	"tally/internal/amqp"
	"tally/internal/log"
	"tally/internal/session"
)

// Consumer delivers ledger change notifications.
type Consumer interface {
	ConsumeLedgerChanges(ctx context.Context, handler func(*amqp.LedgerChangedMessage) error) error
}

// Invalidator drops memoised statistics.
type Invalidator interface {
	Invalidate()
}

// Refresher recomputes the selected period.
type Refresher interface {
	Refresh() error
}

// LedgerWatcher turns ledger change notifications into a cache invalidation
// followed by a session refresh.
type LedgerWatcher struct {
	consumer    Consumer
	invalidator Invalidator
	refresher   Refresher
	logger      *log.Logger
}

func NewLedgerWatcher(consumer Consumer, invalidator Invalidator, refresher Refresher, logger *log.Logger) *LedgerWatcher {
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerWatcher{
		consumer:    consumer,
		invalidator: invalidator,
		refresher:   refresher,
		logger:      logger.WithComponent(log.ComponentWorker),
	}
}

// Run consumes notifications until ctx is done.
func (w *LedgerWatcher) Run(ctx context.Context) error {
	return w.consumer.ConsumeLedgerChanges(ctx, func(msg *amqp.LedgerChangedMessage) error {
		return w.Handle(ctx, msg)
	})
}

// Handle applies one notification. A closed session is not an error: the
// message is acknowledged and nothing is left to refresh.
func (w *LedgerWatcher) Handle(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	w.logger.InfoContext(ctx, "Ledger changed",
		"source", msg.Source,
		log.FieldCount, msg.Count)

	if w.invalidator != nil {
		w.invalidator.Invalidate()
	}
	if err := w.refresher.Refresh(); err != nil {
		if errors.Is(err, session.ErrClosed) {
			return nil
		}
		return fmt.Errorf("refresh session: %w", err)
	}
	return nil
}
