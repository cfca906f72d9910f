package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// DefaultStatement inserts into the bundled log_entries table
const DefaultStatement = `INSERT INTO log_entries (
	log_name, entry_date, level, message, source, tags, machine_name, identity,
	error_detail, correlation_id, url, server_name
) VALUES (
	:log_name, :entry_date, :level, :message, :source, :tags, :machine_name, :identity,
	:error_detail, :correlation_id, :url, :server_name
)`

// Record is one row handed to the write statement. Field tags are the
// statement's named parameters.
type Record struct {
	LogName       string    `db:"log_name"`
	EntryDate     time.Time `db:"entry_date"`
	Level         string    `db:"level"`
	Message       string    `db:"message"`
	Source        string    `db:"source"`
	Tags          string    `db:"tags"`
	MachineName   string    `db:"machine_name"`
	Identity      string    `db:"identity"`
	ErrorDetail   string    `db:"error_detail"`
	CorrelationID string    `db:"correlation_id"`
	URL           string    `db:"url"`
	ServerName    string    `db:"server_name"`
}

// Store executes the write statement for batches of records
type Store struct {
	db        *sqlx.DB
	statement string
}

// NewStore wraps db. An empty statement selects DefaultStatement.
func NewStore(db *sqlx.DB, statement string) *Store {
	if statement == "" {
		statement = DefaultStatement
	}
	return &Store{db: db, statement: statement}
}

// InsertBatch writes records in one transaction; either all rows land or none
func (s *Store) InsertBatch(ctx context.Context, records []Record) (err error) {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, context.Canceled) {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
		}
	}()

	stmt, err := tx.PrepareNamedContext(ctx, s.statement)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		if _, err = stmt.ExecContext(ctx, records[i]); err != nil {
			return fmt.Errorf("failed to write record %s: %w", records[i].CorrelationID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CountByLogName returns the number of rows in log_entries for logName
func (s *Store) CountByLogName(ctx context.Context, logName string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM log_entries WHERE log_name = ?`, logName); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// FindByCorrelationID loads the row written for an entry
func (s *Store) FindByCorrelationID(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := s.db.GetContext(ctx, &rec, `SELECT log_name, entry_date, level, message, source, tags,
		machine_name, identity, error_detail, correlation_id, url, server_name
		FROM log_entries WHERE correlation_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load entry %s: %w", id, err)
	}
	return &rec, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
