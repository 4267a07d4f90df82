package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/nsted/internal/domain/model"
	"github.com/okian/nsted/pkg/metrics"
	_ "modernc.org/sqlite"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	defaultBusyTimeout      = 5 * time.Second
)

const resultColumns = "id, file_name, created_at, channels, samples, num_trials, trial_length, trial_index, predicted_class, mean_score, predictions_json, average_channel, average_path"

// SQLiteStore is a Store backed by a single SQLite database file.
type SQLiteStore struct {
	db          *sql.DB
	path        string
	busyTimeout time.Duration
	now         func() time.Time
	newID       func() string
}

var _ Store = (*SQLiteStore)(nil)

// Open creates or connects to the result database at path.
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		path:        path,
		busyTimeout: defaultBusyTimeout,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", s.busyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	s.db = db

	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateResultsTotal(n)
	}
	return s, nil
}

// Path returns the database file.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save implements Store.Save.
func (s *SQLiteStore) Save(ctx context.Context, r *model.Result) error {
	start := time.Now()
	defer observeQuery(start)

	if r.ID == "" {
		r.ID = s.newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	r.CreatedAt = r.CreatedAt.UTC()

	preds, err := json.Marshal(r.Predictions)
	if err != nil {
		return fmt.Errorf("encode predictions: %w", err)
	}

	err = retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			`INSERT INTO results (`+resultColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.FileName, r.CreatedAt.Format(time.RFC3339Nano),
			r.Channels, r.Samples, r.NumTrials, r.TrialLength, r.TrialIndex,
			r.PredictedClass, r.MeanScore, string(preds),
			r.AverageChannel, r.AveragePath,
		)
		return execErr
	})
	if err != nil {
		metrics.RecordStoreError()
		metrics.RecordErrorByComponent("repository", "save")
		return fmt.Errorf("save result: %w", err)
	}

	metrics.RecordResultStored()
	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateResultsTotal(n)
	}
	return nil
}

// Get implements Store.Get.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Result, error) {
	start := time.Now()
	defer observeQuery(start)

	row := s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM results WHERE id = ?`, id)
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("get result: %w", err)
	}
	return r, nil
}

// Latest implements Store.Latest.
func (s *SQLiteStore) Latest(ctx context.Context) (*model.Result, error) {
	start := time.Now()
	defer observeQuery(start)

	row := s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM results ORDER BY seq DESC LIMIT 1`)
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("latest result: %w", err)
	}
	return r, nil
}

// List implements Store.List.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]model.Summary, error) {
	start := time.Now()
	defer observeQuery(start)

	if limit < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_name, created_at, num_trials, predicted_class, mean_score
		 FROM results ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	out := make([]model.Summary, 0, limit)
	for rows.Next() {
		var (
			sum       model.Summary
			createdAt string
		)
		if err := rows.Scan(&sum.ID, &sum.FileName, &createdAt, &sum.NumTrials, &sum.PredictedClass, &sum.MeanScore); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if sum.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return out, nil
}

// Count implements Store.Count.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return n, nil
}

func scanResult(scanner interface{ Scan(dest ...any) error }) (*model.Result, error) {
	var (
		r         model.Result
		createdAt string
		preds     string
	)
	if err := scanner.Scan(
		&r.ID,
		&r.FileName,
		&createdAt,
		&r.Channels,
		&r.Samples,
		&r.NumTrials,
		&r.TrialLength,
		&r.TrialIndex,
		&r.PredictedClass,
		&r.MeanScore,
		&preds,
		&r.AverageChannel,
		&r.AveragePath,
	); err != nil {
		return nil, err
	}

	var err error
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(preds), &r.Predictions); err != nil {
		return nil, fmt.Errorf("decode predictions: %w", err)
	}
	return &r, nil
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at %q: %w", raw, err)
	}
	return t, nil
}

func observeQuery(start time.Time) {
	metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
