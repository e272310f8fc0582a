// Package export appends computed period summaries to external sinks.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/stats"
)

// Row kinds written in the third column.
const (
	RowSummary       = "summary"
	RowCategory      = "category"
	RowUncategorized = "uncategorized"
)

// SheetsConfig selects the target spreadsheet and credentials. Exactly one of
// CredentialsFile or CredentialsJSON should be set.
type SheetsConfig struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON []byte
}

// SheetsExporter appends one block of rows per snapshot to a Google Sheet.
type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
	now           func() time.Time
}

// NewSheetsExporter creates a Sheets service authenticated with a service
// account.
func NewSheetsExporter(ctx context.Context, cfg SheetsConfig, logger *log.Logger) (*SheetsExporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Stats"
	}
	if logger == nil {
		logger = log.Discard()
	}

	opts := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}
	switch {
	case len(cfg.CredentialsJSON) > 0:
		opts = append(opts, goption.WithCredentialsJSON(cfg.CredentialsJSON))
	case cfg.CredentialsFile != "":
		opts = append(opts, goption.WithCredentialsFile(cfg.CredentialsFile))
	default:
		return nil, errors.New("missing service account credentials")
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &SheetsExporter{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		logger:        logger.WithComponent(log.ComponentExport),
		now:           time.Now,
	}, nil
}

// Export appends the rows for snap and returns the updated range.
func (e *SheetsExporter) Export(ctx context.Context, snap core.Snapshot) (string, error) {
	if e.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rows := Rows(snap, e.now())
	rng := fmt.Sprintf("%s!A1", e.sheetName)
	vr := &gsheet.ValueRange{Values: rows}

	resp, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", e.sheetName, err)
	}

	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	e.logger.InfoContext(ctx, "Exported snapshot",
		log.FieldLabel, snap.Window.Label(),
		log.FieldCount, len(rows),
		"range", ref)
	return ref, nil
}

// Rows lays a snapshot out as sheet rows: one summary row followed by one row
// per category (largest first) and, when present, the uncategorized amount.
// Columns: label, period, row kind, name, expense, income, balance,
// fingerprint, exported at.
func Rows(snap core.Snapshot, exportedAt time.Time) [][]interface{} {
	label := snap.Window.Label()
	kind := string(snap.Window.Kind)
	fp := snap.Fingerprint()
	ts := exportedAt.UTC().Format(time.RFC3339)
	agg := snap.Aggregate

	rows := make([][]interface{}, 0, len(agg.Breakdown)+2)
	rows = append(rows, []interface{}{
		label, kind, RowSummary, "",
		agg.TotalExpense.Major(), agg.TotalIncome.Major(), agg.Balance.Major(),
		fp, ts,
	})
	for _, c := range stats.SortedBreakdown(agg.Breakdown) {
		rows = append(rows, []interface{}{label, kind, RowCategory, c.Name, c.Amount.Major(), "", "", fp, ts})
	}
	if agg.Uncategorized.Cents > 0 {
		rows = append(rows, []interface{}{label, kind, RowUncategorized, "", agg.Uncategorized.Major(), "", "", fp, ts})
	}
	return rows
}
