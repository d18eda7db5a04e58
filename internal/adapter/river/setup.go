package river

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riversqlite"
	"github.com/riverqueue/river/rivermigrate"
)

// Config controls queue sizing and the stuck-provisioning sweep schedule.
type Config struct {
	// Prefetch bounds how many messages each consumer queue works at once.
	Prefetch int
	// SweepInterval is how often the sweeper pass runs.
	SweepInterval time.Duration
}

// Setup runs River's internal migrations and creates a client with every
// pipeline worker registered against the handler set. The caller fills in the
// Handlers fields, then calls client.Start() to begin consuming and
// client.Stop() for graceful shutdown.
//
// The dead-letter queue is intentionally left out of the queue configuration:
// jobs inserted there stay available but unworked, which is the parking
// behavior a dead-letter exchange provides.
func Setup(ctx context.Context, db *sql.DB, h *Handlers, cfg Config) (*Client, error) {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}

	driver := riversqlite.New(db)

	// River's own migrations (river_job, river_leader, ...). These are
	// separate from the app's goose migrations.
	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		return nil, fmt.Errorf("creating river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return nil, fmt.Errorf("running river migrations: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &schemaWorker{h: h})
	river.AddWorker(workers, &dnsWorker{h: h})
	river.AddWorker(workers, &credentialsWorker{h: h})
	river.AddWorker(workers, &billingWorker{h: h})
	river.AddWorker(workers, &notificationWorker{h: h})
	river.AddWorker(workers, &advanceDBReadyWorker{h: h})
	river.AddWorker(workers, &advanceDNSReadyWorker{h: h})
	river.AddWorker(workers, &advanceCredentialsReadyWorker{h: h})
	river.AddWorker(workers, &advanceBillingActiveWorker{h: h})
	river.AddWorker(workers, &completionWorker{h: h})
	river.AddWorker(workers, &cleanupCancelledWorker{h: h})
	river.AddWorker(workers, &cleanupDeletedWorker{h: h})
	river.AddWorker(workers, &SweepWorker{h: h})
	river.AddWorker(workers, &DeadLetterWorker{Logger: h.Logger})

	queues := make(map[string]river.QueueConfig)
	for _, b := range Topology {
		queues[b.Queue] = river.QueueConfig{MaxWorkers: cfg.Prefetch}
	}
	queues[QueueMaintenance] = river.QueueConfig{MaxWorkers: 1}

	client, err := river.NewClient(driver, &river.Config{
		Queues:  queues,
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("creating river client: %w", err)
	}

	if cfg.SweepInterval > 0 {
		client.PeriodicJobs().Add(
			river.NewPeriodicJob(
				river.PeriodicInterval(cfg.SweepInterval),
				func() (river.JobArgs, *river.InsertOpts) { return SweepArgs{}, nil },
				&river.PeriodicJobOpts{RunOnStart: false},
			),
		)
	}

	h.publisher = NewPublisher(client)
	h.dead = &deadLetterOffice{client: client, logger: h.Logger}
	return client, nil
}
