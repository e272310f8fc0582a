package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries holds the typed SQL statements of the ledger schema.
type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Transaction struct {
	ID           int64
	AmountCents  int64
	Kind         int64
	CategoryID   int64
	AccountID    int64
	OccurredAtMs int64
	Note         string
}

type Category struct {
	ID    int64
	Name  string
	Color string
}

type CategoryTotal struct {
	CategoryID  int64
	Name        string
	Color       string
	TotalAmount int64
}

const createTransaction = `
INSERT INTO transactions (amount_cents, kind, category_id, account_id, occurred_at_ms, note)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id, amount_cents, kind, category_id, account_id, occurred_at_ms, note
`

type CreateTransactionParams struct {
	AmountCents  int64
	Kind         int64
	CategoryID   int64
	AccountID    int64
	OccurredAtMs int64
	Note         string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.AmountCents,
		arg.Kind,
		arg.CategoryID,
		arg.AccountID,
		arg.OccurredAtMs,
		arg.Note,
	)
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.AmountCents,
		&i.Kind,
		&i.CategoryID,
		&i.AccountID,
		&i.OccurredAtMs,
		&i.Note,
	)
	return i, err
}

const listTransactionsInRange = `
SELECT id, amount_cents, kind, category_id, account_id, occurred_at_ms, note
FROM transactions
WHERE occurred_at_ms BETWEEN ? AND ?
ORDER BY occurred_at_ms, id
`

func (q *Queries) ListTransactionsInRange(ctx context.Context, startMs, endMs int64) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsInRange, startMs, endMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(
			&i.ID,
			&i.AmountCents,
			&i.Kind,
			&i.CategoryID,
			&i.AccountID,
			&i.OccurredAtMs,
			&i.Note,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const sumByKindInRange = `
SELECT COALESCE(SUM(amount_cents), 0)
FROM transactions
WHERE kind = ? AND occurred_at_ms BETWEEN ? AND ?
`

func (q *Queries) SumByKindInRange(ctx context.Context, kind, startMs, endMs int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, sumByKindInRange, kind, startMs, endMs)
	var total int64
	err := row.Scan(&total)
	return total, err
}

const categoryTotalsInRange = `
SELECT t.category_id, COALESCE(c.name, ''), COALESCE(c.color, ''), SUM(t.amount_cents) AS total_amount
FROM transactions t
LEFT JOIN categories c ON c.id = t.category_id
WHERE t.kind = 0 AND t.occurred_at_ms BETWEEN ? AND ?
GROUP BY t.category_id
ORDER BY total_amount DESC, t.category_id ASC
`

func (q *Queries) CategoryTotalsInRange(ctx context.Context, startMs, endMs int64) ([]CategoryTotal, error) {
	rows, err := q.db.QueryContext(ctx, categoryTotalsInRange, startMs, endMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategoryTotal
	for rows.Next() {
		var i CategoryTotal
		if err := rows.Scan(&i.CategoryID, &i.Name, &i.Color, &i.TotalAmount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listCategories = `
SELECT id, name, color FROM categories ORDER BY id
`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var i Category
		if err := rows.Scan(&i.ID, &i.Name, &i.Color); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertCategory = `
INSERT INTO categories (id, name, color) VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET name = excluded.name, color = excluded.color
`

func (q *Queries) UpsertCategory(ctx context.Context, arg Category) error {
	_, err := q.db.ExecContext(ctx, upsertCategory, arg.ID, arg.Name, arg.Color)
	return err
}

const getExportFingerprint = `
SELECT fingerprint FROM snapshot_exports WHERE label = ?
`

func (q *Queries) GetExportFingerprint(ctx context.Context, label string) (string, error) {
	row := q.db.QueryRowContext(ctx, getExportFingerprint, label)
	var fingerprint string
	err := row.Scan(&fingerprint)
	return fingerprint, err
}

const setExportFingerprint = `
INSERT INTO snapshot_exports (label, fingerprint, exported_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (label) DO UPDATE SET fingerprint = excluded.fingerprint, exported_at = excluded.exported_at
`

func (q *Queries) SetExportFingerprint(ctx context.Context, label, fingerprint string) error {
	_, err := q.db.ExecContext(ctx, setExportFingerprint, label, fingerprint)
	return err
}
