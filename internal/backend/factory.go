package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"smartplates/internal/amqp"
	"smartplates/internal/storage"
	"smartplates/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
	// dialAMQP is swapped in tests
	dialAMQP func(url, exchange, queue string) (*amqp.Client, error)
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger, dialAMQP: amqp.NewClient}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(config)
	case MemoryBackend:
		result, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	f.attachPublisher(ctx, config, result)
	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Backend: repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	st, err := memory.NewFromFiles(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory backend seed: %w", err)
	}

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{Backend: st}, nil
}

// attachPublisher connects to AMQP when configured. A broker that cannot be
// reached only disables change events.
func (f *DefaultFactory) attachPublisher(ctx context.Context, config Config, result *BackendResult) {
	if config.AMQPURL == "" {
		return
	}
	client, err := f.dialAMQP(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without change events", "error", err)
		return
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)

	result.Publisher = client
	prev := result.Cleanup
	result.Cleanup = func() error {
		var errs []error
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close amqp: %w", err))
		}
		if prev != nil {
			if err := prev(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
