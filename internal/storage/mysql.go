package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"btp/internal/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS btp_runs (
		run_id      CHAR(36)     NOT NULL PRIMARY KEY,
		started_at  DATETIME(6)  NOT NULL,
		duration_ms BIGINT       NOT NULL,
		passed      INT          NOT NULL,
		failed      INT          NOT NULL,
		errored     INT          NOT NULL,
		targets     JSON         NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS btp_results (
		run_id      CHAR(36)     NOT NULL,
		node_id     VARCHAR(768) NOT NULL,
		status      VARCHAR(16)  NOT NULL,
		duration_us BIGINT       NOT NULL,
		messages    JSON         NULL,
		PRIMARY KEY (run_id, node_id)
	)`,
}

// MySQLStorage keeps the history of runs in a MySQL database.
type MySQLStorage struct {
	db        *sql.DB
	migrate   sync.Once
	schemaErr error
}

// NewMySQLStorage opens the run history database described by dsn.
func NewMySQLStorage(dsn string) (*MySQLStorage, error) {
	normalized, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to open results database: %w", err)
	}
	return &MySQLStorage{db: db}, nil
}

// normalizeDSN validates dsn and enables the options the store relies on.
func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid results DSN: %w", err)
	}
	if cfg.DBName == "" {
		return "", fmt.Errorf("invalid results DSN: no database name")
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

func (s *MySQLStorage) ensureSchema(ctx context.Context) error {
	s.migrate.Do(func() {
		for _, stmt := range schema {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				s.schemaErr = fmt.Errorf("failed to create results schema: %w", err)
				return
			}
		}
	})
	return s.schemaErr
}

// Save inserts the run and its node results in one transaction.
func (s *MySQLStorage) Save(record *domain.RunRecord) error {
	ctx := context.Background()
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	targets, err := json.Marshal(record.Targets)
	if err != nil {
		return fmt.Errorf("marshal targets: %w", err)
	}
	started, err := time.Parse(time.RFC3339, record.Meta.Timestamp)
	if err != nil {
		started = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin results transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO btp_runs (run_id, started_at, duration_ms, passed, failed, errored, targets) VALUES (?, ?, ?, ?, ?, ?, ?)",
		record.Meta.RunID, started.UTC(), int64(record.Meta.DurationSeconds*1000),
		record.Meta.PassedCases, record.Meta.FailedCases, record.Meta.ErroredCases, string(targets))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO btp_results (run_id, node_id, status, duration_us, messages) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare result insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range record.Results {
		var messages any
		if len(r.Messages) > 0 {
			data, err := json.Marshal(r.Messages)
			if err != nil {
				return fmt.Errorf("marshal messages: %w", err)
			}
			messages = string(data)
		}
		if _, err := stmt.ExecContext(ctx, record.Meta.RunID, r.ID, string(r.Status), r.Duration.Microseconds(), messages); err != nil {
			return fmt.Errorf("insert result %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Load returns the most recent run.
func (s *MySQLStorage) Load() (*domain.RunRecord, error) {
	ctx := context.Background()
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	var (
		record     domain.RunRecord
		started    time.Time
		durationMs int64
		targets    []byte
	)
	row := s.db.QueryRowContext(ctx,
		"SELECT run_id, started_at, duration_ms, passed, failed, errored, targets FROM btp_runs ORDER BY started_at DESC LIMIT 1")
	err := row.Scan(&record.Meta.RunID, &started, &durationMs,
		&record.Meta.PassedCases, &record.Meta.FailedCases, &record.Meta.ErroredCases, &targets)
	if err != nil {
		return nil, fmt.Errorf("load last run: %w", err)
	}
	duration := time.Duration(durationMs) * time.Millisecond
	record.Meta.Timestamp = started.Format(time.RFC3339)
	record.Meta.Duration = duration.String()
	record.Meta.DurationSeconds = duration.Seconds()
	if err := json.Unmarshal(targets, &record.Targets); err != nil {
		return nil, fmt.Errorf("parse run targets: %w", err)
	}
	record.Meta.Targets = len(record.Targets)

	rows, err := s.db.QueryContext(ctx,
		"SELECT node_id, status, duration_us, messages FROM btp_results WHERE run_id = ?", record.Meta.RunID)
	if err != nil {
		return nil, fmt.Errorf("load run results: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			r          domain.NodeResult
			status     string
			durationUs int64
			messages   sql.NullString
		)
		if err := rows.Scan(&r.ID, &status, &durationUs, &messages); err != nil {
			return nil, fmt.Errorf("scan run result: %w", err)
		}
		r.Status = domain.Status(status)
		r.Duration = time.Duration(durationUs) * time.Microsecond
		if messages.Valid {
			if err := json.Unmarshal([]byte(messages.String), &r.Messages); err != nil {
				return nil, fmt.Errorf("parse messages of %s: %w", r.ID, err)
			}
		}
		record.Results = append(record.Results, r)
	}
	return &record, rows.Err()
}

// Close closes the database handle.
func (s *MySQLStorage) Close() error {
	return s.db.Close()
}
