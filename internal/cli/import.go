package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/ledger"
	"tally/internal/log"
)

// ImportSource names the importer in ledger change notifications.
const ImportSource = "tally-import"

// ImportTarget is the ledger an import writes into.
type ImportTarget interface {
	UpsertCategory(ctx context.Context, c core.Category) error
	AppendBatch(ctx context.Context, txs []core.Transaction) (int, error)
}

// ChangeNotifier announces that the ledger changed.
type ChangeNotifier interface {
	PublishLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error
}

// ImportOptions selects the CSV files to load. Either path may be empty.
type ImportOptions struct {
	CategoriesPath   string
	TransactionsPath string
	Location         *time.Location
}

// ImportResult counts what an import wrote.
type ImportResult struct {
	Categories   int
	Transactions int
	From         time.Time
	To           time.Time
}

// RunImport loads categories first, then transactions in a single batch, and
// notifies when anything was written. A nil notifier skips the notification;
// a failed notification is logged but does not fail the import.
func RunImport(ctx context.Context, target ImportTarget, notifier ChangeNotifier, opts ImportOptions, logger *log.Logger) (ImportResult, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentImport)

	var res ImportResult
	if opts.CategoriesPath == "" && opts.TransactionsPath == "" {
		return res, fmt.Errorf("nothing to import: no categories or transactions file given")
	}

	if opts.CategoriesPath != "" {
		cats, err := readCategoriesFile(opts.CategoriesPath)
		if err != nil {
			return res, err
		}
		for _, c := range cats {
			if err := target.UpsertCategory(ctx, c); err != nil {
				return res, fmt.Errorf("import category %d: %w", c.ID, err)
			}
			res.Categories++
		}
		logger.InfoContext(ctx, "Categories imported", log.FieldCount, res.Categories, "file", opts.CategoriesPath)
	}

	if opts.TransactionsPath != "" {
		txs, err := readTransactionsFile(opts.TransactionsPath, opts.Location)
		if err != nil {
			return res, err
		}
		if len(txs) > 0 {
			n, err := target.AppendBatch(ctx, txs)
			if err != nil {
				return res, fmt.Errorf("import transactions: %w", err)
			}
			res.Transactions = n
			res.From, res.To = span(txs)
		}
		logger.InfoContext(ctx, "Transactions imported", log.FieldCount, res.Transactions, "file", opts.TransactionsPath)
	}

	if notifier != nil && res.Categories+res.Transactions > 0 {
		msg := amqp.NewLedgerChangedMessage(ImportSource, res.Transactions, res.From, res.To)
		if err := notifier.PublishLedgerChanged(ctx, msg); err != nil {
			logger.WarnContext(ctx, "Failed to publish ledger change", log.FieldError, err)
		}
	}
	return res, nil
}

func readCategoriesFile(path string) ([]core.Category, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open categories file: %w", err)
	}
	defer f.Close()
	cats, err := ledger.ReadCategories(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cats, nil
}

func readTransactionsFile(path string, loc *time.Location) ([]core.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transactions file: %w", err)
	}
	defer f.Close()
	txs, err := ledger.ReadTransactions(f, loc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return txs, nil
}

func span(txs []core.Transaction) (from, to time.Time) {
	for i, tx := range txs {
		if i == 0 || tx.OccurredAt.Before(from) {
			from = tx.OccurredAt
		}
		if i == 0 || tx.OccurredAt.After(to) {
			to = tx.OccurredAt
		}
	}
	return from, to
}
