package store

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/driftmirror/driftmirror/pkg/dmerrors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunStatus is the status machine for a SyncHistory record, per spec §3.
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusInProgress RunStatus = "inProgress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCancelled  RunStatus = "cancelled"
)

// Direction is a sync pair's configured transfer direction.
type Direction string

const (
	DirectionLocalToExternal Direction = "localToExternal"
	DirectionExternalToLocal Direction = "externalToLocal"
	DirectionBidirectional   Direction = "bidirectional"
)

// SyncHistory is the append-only per-run record described in spec §3.
type SyncHistory struct {
	ID           string
	SyncPairID   string
	DiskID       string
	StartedAt    time.Time
	CompletedAt  *time.Time
	Status       RunStatus
	Direction    Direction
	FilesCount   int
	TotalSize    int64
	ErrorMessage *string
}

// SyncStatistics is the per-(date, syncPair) aggregate described in spec §3.
type SyncStatistics struct {
	Date          string
	SyncPairID    string
	Runs          int
	Successes     int
	Failures      int
	TotalFiles    int
	TotalBytes    int64
	AvgDurationMs float64
}

// HistoryStore is the sqlite-backed store for SyncHistory and
// SyncStatistics, implementing the history/statistics half of spec §4.1.
type HistoryStore struct {
	db *sql.DB
}

// OpenHistoryStore opens (migrating as necessary) the sqlite database at
// path.
func OpenHistoryStore(path string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to open history database")
	}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to enable WAL mode")
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to enable foreign keys")
	}

	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		db.Close()
		return nil, dmerrors.Wrap(err, dmerrors.CodeInternal, "unable to prepare embedded migrations")
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		db.Close()
		return nil, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to create migration provider")
	}
	if _, err := provider.Up(ctx); err != nil {
		db.Close()
		return nil, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to apply migrations")
	}

	return &HistoryStore{db: db}, nil
}

// Close closes the underlying database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// BeginRun opens a new SyncHistory record in status pending and returns its
// generated ID.
func (s *HistoryStore) BeginRun(ctx context.Context, syncPairID, diskID string, direction Direction) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_history (id, sync_pair_id, disk_id, started_at, status, direction)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, syncPairID, diskID, time.Now().UTC(), RunStatusPending, direction,
	)
	if err != nil {
		return "", dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to begin sync history record")
	}
	return id, nil
}

// TransitionRun updates a run's status. The pending → inProgress transition
// happens at Scan; the terminal transition seals the record with aggregate
// counts, per spec §4.5.
func (s *HistoryStore) TransitionRun(ctx context.Context, id string, status RunStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sync_history SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to transition sync history record")
	}
	return nil
}

// SealRun transitions a run to a terminal state with its final aggregate
// counts; terminal states are immutable thereafter (spec §3).
func (s *HistoryStore) SealRun(ctx context.Context, id string, status RunStatus, filesCount int, totalSize int64, errorMessage string) error {
	var errPtr *string
	if errorMessage != "" {
		errPtr = &errorMessage
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_history SET status = ?, completed_at = ?, files_count = ?, total_size = ?, error_message = ?
		 WHERE id = ?`,
		status, time.Now().UTC(), filesCount, totalSize, errPtr, id,
	)
	if err != nil {
		return dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to seal sync history record")
	}
	return s.upsertStatisticsForRun(ctx, id, status, filesCount, totalSize)
}

func (s *HistoryStore) upsertStatisticsForRun(ctx context.Context, id string, status RunStatus, filesCount int, totalSize int64) error {
	var syncPairID string
	var startedAt time.Time
	row := s.db.QueryRowContext(ctx, `SELECT sync_pair_id, started_at FROM sync_history WHERE id = ?`, id)
	if err := row.Scan(&syncPairID, &startedAt); err != nil {
		return dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to read sync history record")
	}

	date := time.Now().UTC().Format("2006-01-02")
	durationMs := float64(time.Since(startedAt).Milliseconds())
	success := 0
	failure := 0
	if status == RunStatusCompleted {
		success = 1
	} else if status == RunStatusFailed {
		failure = 1
	}

	return s.UpsertStatistics(ctx, date, syncPairID, success, failure, filesCount, totalSize, durationMs)
}

// UpsertStatistics incorporates one run's outcome into the (date,
// syncPairID) aggregate, updating the running average duration as
// avgₙ = (avgₙ₋₁·(n−1) + durationₙ) / n, per spec §3.
func (s *HistoryStore) UpsertStatistics(ctx context.Context, date, syncPairID string, successes, failures, totalFiles int, totalBytes int64, durationMs float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to begin statistics transaction")
	}
	defer tx.Rollback()

	var existingRuns int
	var existingAvg float64
	row := tx.QueryRowContext(ctx, `SELECT runs, avg_duration_ms FROM sync_statistics WHERE date = ? AND sync_pair_id = ?`, date, syncPairID)
	err = row.Scan(&existingRuns, &existingAvg)
	if err == sql.ErrNoRows {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sync_statistics (date, sync_pair_id, runs, successes, failures, total_files, total_bytes, avg_duration_ms)
			 VALUES (?, ?, 1, ?, ?, ?, ?, ?)`,
			date, syncPairID, successes, failures, totalFiles, totalBytes, durationMs,
		)
	} else if err == nil {
		newRuns := existingRuns + 1
		newAvg := (existingAvg*float64(existingRuns) + durationMs) / float64(newRuns)
		_, err = tx.ExecContext(ctx,
			`UPDATE sync_statistics
			 SET runs = ?, successes = successes + ?, failures = failures + ?,
			     total_files = total_files + ?, total_bytes = total_bytes + ?, avg_duration_ms = ?
			 WHERE date = ? AND sync_pair_id = ?`,
			newRuns, successes, failures, totalFiles, totalBytes, newAvg, date, syncPairID,
		)
	}
	if err != nil {
		return dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to upsert sync statistics")
	}

	if err := tx.Commit(); err != nil {
		return dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to commit statistics transaction")
	}
	return nil
}

// GetHistory returns a sync pair's history records, most recent first,
// bounded by limit (0 means unbounded).
func (s *HistoryStore) GetHistory(ctx context.Context, syncPairID string, limit int) ([]*SyncHistory, error) {
	query := `SELECT id, sync_pair_id, disk_id, started_at, completed_at, status, direction, files_count, total_size, error_message
	          FROM sync_history WHERE sync_pair_id = ? ORDER BY started_at DESC`
	args := []any{syncPairID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to query sync history")
	}
	defer rows.Close()

	var results []*SyncHistory
	for rows.Next() {
		h := &SyncHistory{}
		if err := rows.Scan(&h.ID, &h.SyncPairID, &h.DiskID, &h.StartedAt, &h.CompletedAt, &h.Status, &h.Direction, &h.FilesCount, &h.TotalSize, &h.ErrorMessage); err != nil {
			return nil, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to scan sync history row")
		}
		results = append(results, h)
	}
	return results, rows.Err()
}

// GetStatistics returns a sync pair's daily statistics between startDate and
// endDate (inclusive, "YYYY-MM-DD" format).
func (s *HistoryStore) GetStatistics(ctx context.Context, syncPairID, startDate, endDate string) ([]*SyncStatistics, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, sync_pair_id, runs, successes, failures, total_files, total_bytes, avg_duration_ms
		 FROM sync_statistics WHERE sync_pair_id = ? AND date BETWEEN ? AND ? ORDER BY date`,
		syncPairID, startDate, endDate,
	)
	if err != nil {
		return nil, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to query sync statistics")
	}
	defer rows.Close()

	var results []*SyncStatistics
	for rows.Next() {
		stat := &SyncStatistics{}
		if err := rows.Scan(&stat.Date, &stat.SyncPairID, &stat.Runs, &stat.Successes, &stat.Failures, &stat.TotalFiles, &stat.TotalBytes, &stat.AvgDurationMs); err != nil {
			return nil, dmerrors.Wrap(err, dmerrors.CodeStoreError, "unable to scan sync statistics row")
		}
		results = append(results, stat)
	}
	return results, rows.Err()
}
