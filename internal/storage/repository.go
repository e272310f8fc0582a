package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tally/internal/core"
	"tally/internal/ledger"
	"tally/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the persistent ledger. Instants are stored as epoch
// milliseconds and read back in the repository's location.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	loc     *time.Location
	logger  *log.Logger
}

var _ ledger.Store = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations. A nil loc means UTC; a nil logger discards.
func NewSQLiteRepository(dbPath string, loc *time.Location, logger *log.Logger) (*SQLiteRepository, error) {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("SQLite ledger ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		loc:     loc,
		logger:  logger,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Append stores a transaction and returns it with its new ID.
func (r *SQLiteRepository) Append(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	row, err := r.queries.CreateTransaction(ctx, toParams(tx))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	r.logger.DebugContext(ctx, "Transaction saved",
		"id", row.ID,
		log.FieldAmountCents, row.AmountCents,
		"kind", tx.Kind.String(),
		"category_id", row.CategoryID)

	return r.fromRow(row), nil
}

// AppendBatch stores all transactions in one database transaction. Nothing is
// written when any of them is invalid.
func (r *SQLiteRepository) AppendBatch(ctx context.Context, txs []core.Transaction) (int, error) {
	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			return 0, fmt.Errorf("transaction %d: %w", i, err)
		}
	}

	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer dbtx.Rollback()

	q := r.queries.WithTx(dbtx)
	for i, tx := range txs {
		if _, err := q.CreateTransaction(ctx, toParams(tx)); err != nil {
			return 0, fmt.Errorf("create transaction %d: %w", i, err)
		}
	}
	if err := dbtx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	r.logger.InfoContext(ctx, "Transactions imported", log.FieldCount, len(txs))
	return len(txs), nil
}

// UpsertCategory inserts or renames a category.
func (r *SQLiteRepository) UpsertCategory(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := r.queries.UpsertCategory(ctx, Category{ID: c.ID, Name: c.Name, Color: c.Color}); err != nil {
		return fmt.Errorf("upsert category %d: %w", c.ID, err)
	}
	return nil
}

// TransactionsInRange returns transactions ordered by time.
func (r *SQLiteRepository) TransactionsInRange(ctx context.Context, start, end time.Time) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsInRange(ctx, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, r.fromRow(row))
	}
	return out, nil
}

func (r *SQLiteRepository) TotalExpense(ctx context.Context, start, end time.Time) (core.Money, error) {
	total, err := r.queries.SumByKindInRange(ctx, int64(core.Expense), start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return core.Money{}, fmt.Errorf("sum expenses: %w", err)
	}
	return core.Money{Cents: total}, nil
}

func (r *SQLiteRepository) TotalIncome(ctx context.Context, start, end time.Time) (core.Money, error) {
	total, err := r.queries.SumByKindInRange(ctx, int64(core.Income), start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return core.Money{}, fmt.Errorf("sum income: %w", err)
	}
	return core.Money{Cents: total}, nil
}

// CategoryTotals returns expense totals per category, largest first, colored
// the same way as an in-memory breakdown.
func (r *SQLiteRepository) CategoryTotals(ctx context.Context, start, end time.Time) ([]core.CategoryAmount, error) {
	rows, err := r.queries.CategoryTotalsInRange(ctx, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	out := make([]core.CategoryAmount, 0, len(rows))
	for _, row := range rows {
		c := core.Category{ID: row.CategoryID, Name: row.Name, Color: row.Color}
		out = append(out, core.CategoryAmount{
			CategoryID: row.CategoryID,
			Name:       row.Name,
			Color:      c.DisplayColor(),
			Amount:     core.Money{Cents: row.TotalAmount},
		})
	}
	return out, nil
}

func (r *SQLiteRepository) Categories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.Category{ID: row.ID, Name: row.Name, Color: row.Color})
	}
	return out, nil
}

// LastExport returns the fingerprint last exported for a window label, or "".
func (r *SQLiteRepository) LastExport(ctx context.Context, label string) (string, error) {
	fp, err := r.queries.GetExportFingerprint(ctx, label)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get export fingerprint %s: %w", label, err)
	}
	return fp, nil
}

// RecordExport remembers the fingerprint exported for a window label.
func (r *SQLiteRepository) RecordExport(ctx context.Context, label, fingerprint string) error {
	if err := r.queries.SetExportFingerprint(ctx, label, fingerprint); err != nil {
		return fmt.Errorf("set export fingerprint %s: %w", label, err)
	}
	return nil
}

func toParams(tx core.Transaction) CreateTransactionParams {
	return CreateTransactionParams{
		AmountCents:  tx.Amount.Cents,
		Kind:         int64(tx.Kind),
		CategoryID:   tx.CategoryID,
		AccountID:    tx.AccountID,
		OccurredAtMs: tx.OccurredAt.UnixMilli(),
		Note:         tx.Note,
	}
}

func (r *SQLiteRepository) fromRow(row Transaction) core.Transaction {
	return core.Transaction{
		ID:         row.ID,
		Amount:     core.Money{Cents: row.AmountCents},
		Kind:       core.Kind(row.Kind),
		CategoryID: row.CategoryID,
		AccountID:  row.AccountID,
		OccurredAt: time.UnixMilli(row.OccurredAtMs).In(r.loc),
		Note:       row.Note,
	}
}
