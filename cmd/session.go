package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/voxup/internal/media"
	"github.com/desertthunder/voxup/internal/metrics"
	"github.com/desertthunder/voxup/internal/repositories"
	"github.com/desertthunder/voxup/internal/services"
	"github.com/desertthunder/voxup/internal/shared"
	"github.com/desertthunder/voxup/internal/tasks"
)

// session is one command's wired pipeline: database, ledger, backend, queue and engine.
type session struct {
	db       *sql.DB
	owner    string
	ledger   *repositories.Ledger
	catalog  *media.Catalog
	queue    *tasks.UploadQueue
	engine   *tasks.UploadEngine
	registry *metrics.Registry
}

// sessionOpts carries per-command overrides of the configured upload settings.
type sessionOpts struct {
	root        string
	concurrency int
	maxAttempts int
	events      chan<- tasks.ProgressUpdate
}

func (s *session) Close() error {
	return s.db.Close()
}

// openLedger opens the database and resolves the owner, without building a backend.
func (r *Runner) openLedger() (*sql.DB, *repositories.Ledger, error) {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, nil, err
	}

	owner, err := repositories.NewSettings(db).OwnerID(r.config.Owner.ID)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	ledger, err := repositories.NewLedger(db, owner)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, ledger, nil
}

// openSession wires every collaborator for scan and upload.
func (r *Runner) openSession(ctx context.Context, opts sessionOpts) (*session, error) {
	oracle, transport, err := r.backend(ctx)
	if err != nil {
		return nil, err
	}

	db, ledger, err := r.openLedger()
	if err != nil {
		return nil, err
	}

	root := r.config.Library.Root
	if opts.root != "" {
		root = opts.root
	}
	concurrency := r.config.Upload.Concurrency
	if opts.concurrency > 0 {
		concurrency = opts.concurrency
	}
	maxAttempts := r.config.Upload.MaxAttempts
	if opts.maxAttempts > 0 {
		maxAttempts = opts.maxAttempts
	}

	registry := metrics.NewRegistry()
	catalog := media.NewCatalog()

	queue := tasks.NewUploadQueue(catalog, transport, ledger, tasks.QueueConfig{
		OwnerID:      ledger.Owner(),
		Concurrency:  concurrency,
		MaxAttempts:  maxAttempts,
		BaseDelay:    r.config.Upload.BaseDelay.Duration,
		PollInterval: r.config.Upload.PollInterval.Duration,
		Context:      ctx,
		Progress:     opts.events,
		Recorder:     metrics.NewQueueMetrics(registry),
		Location:     services.NewStaticLocation(r.config.Location),
		Logger:       shared.WithLogger(r.logger, "component", "queue"),
	})

	engine := tasks.NewUploadEngine(tasks.EngineOpts{
		OwnerID:    ledger.Owner(),
		Root:       root,
		Extensions: r.config.Library.Extensions,
		HashJobs:   r.config.Library.HashJobs,
	}, catalog, oracle, ledger, queue, r.logger)

	r.logger.Debug("session ready", "owner", ledger.Owner(), "root", root, "backend", r.config.Upload.Backend,
		"concurrency", concurrency, "max_attempts", maxAttempts, "completed", ledger.Len())

	return &session{
		db:       db,
		owner:    ledger.Owner(),
		ledger:   ledger,
		catalog:  catalog,
		queue:    queue,
		engine:   engine,
		registry: registry,
	}, nil
}

// backend builds the oracle and transport selected by upload.backend.
func (r *Runner) backend(ctx context.Context) (services.Oracle, services.Transport, error) {
	if r.oracle != nil && r.transport != nil {
		return r.oracle, r.transport, nil
	}

	switch r.config.Upload.Backend {
	case shared.BackendHTTP:
		client := services.NewHTTPClient(ctx, r.config.Remote.OAuth, r.config.RemoteTimeout())
		api := services.NewAPIService(client)
		oracle := services.NewHTTPOracle(api, r.config.Remote.CheckURL, shared.WithLogger(r.logger, "component", "oracle"))
		transport := services.NewHTTPTransport(api, r.config.Remote.UploadURL, r.config.Upload.RateLimit, shared.WithLogger(r.logger, "component", "transport"))
		return oracle, transport, nil

	case shared.BackendAWS:
		objects, table, err := services.NewAWSClients(ctx, r.config.AWS)
		if err != nil {
			return nil, nil, err
		}
		oracle := services.NewDynamoOracle(table, r.config.AWS.Table, shared.WithLogger(r.logger, "component", "oracle"))
		transport := services.NewS3Transport(objects, table, r.config.AWS, shared.WithLogger(r.logger, "component", "transport"))
		return oracle, transport, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown upload.backend %q", shared.ErrInvalidConfig, r.config.Upload.Backend)
	}
}
