package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tally/internal/amqp"
	"tally/internal/cli"
	"tally/internal/config"
	"tally/internal/log"
	"tally/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := config.Load()

	var (
		dbPath       string
		categories   string
		transactions string
		timezone     string
		amqpURL      string
		logLevel     string
	)

	cmd := &cobra.Command{
		Use:   "tally-import",
		Short: "Import categories and transactions from CSV into the SQLite ledger",
		Long: "Loads a categories CSV (id,name,color) and/or a transactions CSV\n" +
			"(date,kind,amount,category_id,account_id,note) into the ledger database.\n" +
			"When an AMQP URL is set, running tally servers are told to refresh.",
		Args: cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := cli.SetupLogger(logLevel)

			c := *cfg
			c.Timezone = timezone
			loc, err := c.Location()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runImport(ctx, logger, dbPath, amqpURL, &c, cli.ImportOptions{
				CategoriesPath:   categories,
				TransactionsPath: transactions,
				Location:         loc,
			})
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", cfg.SQLiteDBPath, "SQLite ledger path")
	cmd.Flags().StringVar(&categories, "categories", "", "categories CSV file")
	cmd.Flags().StringVar(&transactions, "transactions", "", "transactions CSV file")
	cmd.Flags().StringVar(&timezone, "tz", cfg.Timezone, "timezone for dates without an offset")
	cmd.Flags().StringVar(&amqpURL, "amqp-url", cfg.AMQPURL, "AMQP URL for the ledger change notification (empty disables it)")
	cmd.Flags().StringVar(&logLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	cmd.MarkFlagsOneRequired("categories", "transactions")

	return cmd
}

func runImport(ctx context.Context, logger *log.Logger, dbPath, amqpURL string, cfg *config.Config, opts cli.ImportOptions) error {
	repo, err := storage.NewSQLiteRepository(dbPath, opts.Location, logger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer repo.Close()

	var notifier cli.ChangeNotifier
	if amqpURL != "" {
		client, err := amqp.NewClient(amqpURL, cfg.AMQPExchange, cfg.AMQPSnapshotQueue, cfg.AMQPLedgerQueue, logger)
		if err != nil {
			return fmt.Errorf("init amqp: %w", err)
		}
		defer client.Close()
		notifier = client
	}

	start := time.Now()
	res, err := cli.RunImport(ctx, repo, notifier, opts, logger)
	if err != nil {
		return err
	}
	logger.Info("Import finished",
		"categories", res.Categories,
		"transactions", res.Transactions,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}
