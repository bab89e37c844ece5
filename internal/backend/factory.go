package backend

import (
	"context"
	"errors"
	"fmt"

	"esgdash/internal/amqp"
	"esgdash/internal/carbon"
	"esgdash/internal/core"
	applog "esgdash/internal/log"
	"esgdash/internal/storage"
)

// Store persists processed batches.
type Store interface {
	SaveBatch(ctx context.Context, name string, res core.BatchResult) (string, error)
	ListReports(ctx context.Context, limit int) ([]storage.Report, error)
	GetReport(ctx context.Context, id string) (storage.Report, error)
	ReportTransactions(ctx context.Context, id string) ([]core.Transaction, error)
}

// Publisher announces processed batches.
type Publisher interface {
	PublishScorecardComputed(ctx context.Context, reportID, source string, sc core.Scorecard) error
}

// CleanupFunc releases resources opened by NewDependencies.
type CleanupFunc func() error

// DepsConfig says which optional dependencies to open.
type DepsConfig struct {
	// SQLiteDBPath enables persistence when set.
	SQLiteDBPath string
	// AMQPURL enables event publishing when set.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// Dependencies are the collaborators of the reference backend. Store and
// Publisher are nil when disabled.
type Dependencies struct {
	Engine    *carbon.Engine
	Store     Store
	Publisher Publisher
	Cleanup   CleanupFunc
}

// NewDependencies builds the carbon engine and opens the optional SQLite
// store and AMQP publisher. On error everything already opened is closed.
func NewDependencies(cfg DepsConfig, logger *applog.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	engine, err := carbon.New()
	if err != nil {
		return nil, fmt.Errorf("load emission factors: %w", err)
	}
	deps := &Dependencies{Engine: engine}
	var closers []func() error

	if cfg.SQLiteDBPath != "" {
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		deps.Store = repo
		closers = append(closers, repo.Close)
		logger.Info("Initialized SQLite storage", "path", cfg.SQLiteDBPath)
	}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			closeAll(closers)
			return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		deps.Publisher = client
		closers = append(closers, client.Close)
		logger.Info("Initialized AMQP publisher", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}

	deps.Cleanup = func() error { return closeAll(closers) }
	return deps, nil
}

// closeAll closes in reverse order of opening.
func closeAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
