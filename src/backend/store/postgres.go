package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	Database     string
	Username     string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// ConnString builds a lib/pq key/value connection string.
func (c DatabaseConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}

// PostgresJobStore implements JobStore for PostgreSQL
type PostgresJobStore struct {
	db *sql.DB
}

// NewPostgresJobStore connects, configures the pool and creates the jobs
// table if needed.
func NewPostgresJobStore(ctx context.Context, config DatabaseConfig) (*PostgresJobStore, error) {
	db, err := sql.Open("postgres", config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.MaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createJobsTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &PostgresJobStore{db: db}, nil
}

func createJobsTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS redaction_jobs (
		id UUID PRIMARY KEY,
		file_name VARCHAR(500) NOT NULL,
		file_type VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL,
		finding_count INTEGER NOT NULL DEFAULT 0,
		entity_counts JSONB NOT NULL DEFAULT '{}',
		masked_file VARCHAR(500) NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		completed_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_redaction_jobs_created_at ON redaction_jobs(created_at);
	CREATE INDEX IF NOT EXISTS idx_redaction_jobs_status ON redaction_jobs(status);
	`

	_, err := db.ExecContext(ctx, query)
	return err
}

func (p *PostgresJobStore) SaveJob(ctx context.Context, job Job) error {
	counts, err := json.Marshal(nonNilCounts(job.EntityCounts))
	if err != nil {
		return err
	}

	query := `
	INSERT INTO redaction_jobs (id, file_name, file_type, status, finding_count, entity_counts, masked_file, error, created_at, completed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id)
	DO UPDATE SET
		status = EXCLUDED.status,
		finding_count = EXCLUDED.finding_count,
		entity_counts = EXCLUDED.entity_counts,
		masked_file = EXCLUDED.masked_file,
		error = EXCLUDED.error,
		completed_at = EXCLUDED.completed_at
	`

	_, err = p.db.ExecContext(ctx, query,
		job.ID, job.FileName, job.FileType, job.Status, job.FindingCount,
		string(counts), job.MaskedFile, job.Error, job.CreatedAt, job.CompletedAt)
	return err
}

const selectJobColumns = `id, file_name, file_type, status, finding_count, entity_counts, masked_file, error, created_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var (
		job       Job
		counts    []byte
		completed sql.NullTime
	)
	if err := row.Scan(&job.ID, &job.FileName, &job.FileType, &job.Status, &job.FindingCount,
		&counts, &job.MaskedFile, &job.Error, &job.CreatedAt, &completed); err != nil {
		return Job{}, err
	}
	if err := json.Unmarshal(counts, &job.EntityCounts); err != nil {
		return Job{}, fmt.Errorf("decode entity_counts: %w", err)
	}
	if completed.Valid {
		t := completed.Time
		job.CompletedAt = &t
	}
	return job, nil
}

func (p *PostgresJobStore) GetJob(ctx context.Context, id string) (Job, bool, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+selectJobColumns+` FROM redaction_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Job{}, false, nil
		}
		return Job{}, false, err
	}
	return job, true, nil
}

func (p *PostgresJobStore) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+selectJobColumns+` FROM redaction_jobs ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (p *PostgresJobStore) CleanupOldJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := p.db.ExecContext(ctx,
		`DELETE FROM redaction_jobs WHERE created_at < NOW() - make_interval(secs => $1)`,
		olderThan.Seconds())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Close closes the database connection
func (p *PostgresJobStore) Close() error {
	return p.db.Close()
}

func nonNilCounts(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}
