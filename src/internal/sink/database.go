package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"logsmith/src/internal/config"
	"logsmith/src/internal/core"
	"logsmith/src/internal/database"
)

const dbWriteTimeout = 30 * time.Second

// DatabaseSink maps entries to records and writes them in batched
// transactions through a named-parameter statement
type DatabaseSink struct {
	*worker
	db *databaseDestination
}

type databaseDestination struct {
	opts  config.DatabaseSinkOptions
	deps  Deps
	store *database.Store
	batch []database.Record
}

func NewDatabaseSink(opts *config.DatabaseSinkOptions, deps Deps) (*DatabaseSink, error) {
	if opts == nil {
		return nil, fmt.Errorf("database sink options cannot be nil")
	}
	if opts.ConnectionString == "" {
		return nil, &config.ConfigError{Key: "logging.connection_string", Reason: "required for the database sink"}
	}
	if opts.Driver == "" {
		return nil, &config.ConfigError{Key: "logging.database.driver", Reason: "required for the database sink"}
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = core.DefaultBatchSize
	}
	dst := &databaseDestination{
		opts:  *opts,
		deps:  deps,
		batch: make([]database.Record, 0, batchSize),
	}
	dst.opts.BatchSize = batchSize

	return &DatabaseSink{
		worker: newWorker(string(config.SinkDatabase), dst, opts.BufferSize, deps),
		db:     dst,
	}, nil
}

// Store exposes the underlying store once the sink is started
func (s *DatabaseSink) Store() *database.Store {
	return s.db.store
}

func (d *databaseDestination) open() error {
	db, err := database.Open(d.opts.Driver, d.opts.ConnectionString)
	if err != nil {
		return err
	}

	if d.opts.Migrate && database.IsSQLite(d.opts.Driver) {
		if err := database.ApplyMigrations(db.DB, d.deps.logger()); err != nil {
			db.Close()
			return err
		}
	}

	d.store = database.NewStore(db, d.opts.Statement)
	return nil
}

func (d *databaseDestination) write(entry core.Entry) error {
	rec, err := RecordFromEntry(entry, d.opts.LogName)
	if err != nil {
		return err
	}
	d.batch = append(d.batch, rec)
	if int64(len(d.batch)) >= d.opts.BatchSize {
		return d.commit()
	}
	return nil
}

// commit writes the pending batch. A failed batch is discarded and
// reported once per batch.
func (d *databaseDestination) commit() error {
	if len(d.batch) == 0 || d.store == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbWriteTimeout)
	defer cancel()

	start := time.Now()
	err := d.store.InsertBatch(ctx, d.batch)
	d.deps.Metrics.ObserveBatch(time.Since(start).Seconds())

	lost := len(d.batch)
	d.batch = d.batch[:0]
	if err != nil {
		return fmt.Errorf("batch of %d entries lost: %w", lost, err)
	}
	return nil
}

func (d *databaseDestination) sync() error {
	return d.commit()
}

func (d *databaseDestination) close() error {
	if d.store == nil {
		return nil
	}
	commitErr := d.commit()
	closeErr := d.store.Close()
	if commitErr != nil {
		return commitErr
	}
	return closeErr
}

func (d *databaseDestination) details() map[string]any {
	return map[string]any{
		"driver":     d.opts.Driver,
		"log_name":   d.opts.LogName,
		"batch_size": d.opts.BatchSize,
	}
}

// RecordFromEntry maps an entry onto the database write parameters. Tags are
// stored as a JSON object, the error as its full rendering.
func RecordFromEntry(entry core.Entry, logName string) (database.Record, error) {
	tags := ""
	if len(entry.Tags) > 0 {
		data, err := json.Marshal(entry.Tags)
		if err != nil {
			return database.Record{}, fmt.Errorf("failed to encode tags: %w", err)
		}
		tags = string(data)
	}

	return database.Record{
		LogName:       logName,
		EntryDate:     entry.Time,
		Level:         entry.Level.String(),
		Message:       entry.Message,
		Source:        entry.Source,
		Tags:          tags,
		MachineName:   core.MachineName(),
		Identity:      core.Identity(),
		ErrorDetail:   entry.Err.Full(),
		CorrelationID: entry.CorrelationID,
		URL:           entry.Request.URL,
		ServerName:    entry.Request.ServerName,
	}, nil
}
