// Package cli holds the startup helpers and subcommands shared by the
// parity binaries.
package cli

import (
	"context"
	"flag"
	"io"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"parity/internal/amqp"
	"parity/internal/config"
	"parity/internal/dashboard"
	"parity/internal/log"
	"parity/internal/sheets/google"
	"parity/internal/sheets/memory"
	"parity/internal/storage"
)

// SetupLogger builds the logger described by cfg writing to w and makes it
// the process default. Logs never go to stdout.
func SetupLogger(cfg *config.Config, w io.Writer) *log.Logger {
	logger := log.New(log.Config{
		Level:     cfg.Level(),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    w,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in CI.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig parses environment and flags, then validates.
func LoadAndValidateConfig(fs *flag.FlagSet, args []string) (*config.Config, error) {
	cfg, err := config.ParseConfig(fs, args)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InitHistory opens the run history when configured. A nil repository means
// history is disabled.
func InitHistory(cfg *config.Config, logger *log.Logger) (*storage.SQLiteRepository, error) {
	if cfg.HistoryDB == "" {
		return nil, nil
	}
	return storage.NewSQLiteRepository(cfg.HistoryDB, logger)
}

// InitPublishers connects every configured notification target. A target
// that cannot be reached is logged and skipped. In dry-run mode only an
// in-memory sheet is returned, as dryRun. The returned func closes whatever
// was opened.
func InitPublishers(ctx context.Context, cfg *config.Config, logger *log.Logger) (publishers []dashboard.Publisher, dryRun *memory.Store, closeAll func()) {
	if cfg.PublishDryRun {
		dryRun = memory.New()
		return []dashboard.Publisher{dryRun}, dryRun, func() {}
	}

	var closers []func() error

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
		if err != nil {
			logger.WarnContext(ctx, "AMQP notifications disabled", log.FieldError, err.Error())
		} else {
			publishers = append(publishers, client)
			closers = append(closers, client.Close)
		}
	}

	if cfg.GoogleSpreadsheetID != "" {
		client, err := google.NewFromConfig(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, logger)
		if err != nil {
			logger.WarnContext(ctx, "Google Sheets publishing disabled", log.FieldError, err.Error())
		} else {
			publishers = append(publishers, client)
		}
	}

	return publishers, nil, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("close publisher", log.FieldError, err.Error())
			}
		}
	}
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM so that
// running candidate processes are killed on shutdown.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
