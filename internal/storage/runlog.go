package storage

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"hkcovid/internal/etl"
)

// RunLogStore persists the outcome of each job run.
type RunLogStore struct {
	db *DB
}

// NewRunLogStore creates a new RunLogStore.
func NewRunLogStore(db *DB) *RunLogStore {
	return &RunLogStore{db: db}
}

// CreateRunLog inserts a run log, assigning its ID.
func (s *RunLogStore) CreateRunLog(log *etl.SyncRunLog) error {
	log.ID = uuid.New().String()
	_, err := s.db.conn.Exec(
		`INSERT INTO etl_run_logs (id, run_id, job, version, started_at, finished_at, status, rows_read, rows_written, rejected, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.RunID, log.Job, log.Version, log.StartedAt.UTC(), log.FinishedAt.UTC(),
		log.Status, log.RowsRead, log.RowsWritten, log.Rejected, log.Error,
	)
	return errors.Wrap(err, "insert run log")
}

// ListRunLogs returns up to limit run logs, newest first.
func (s *RunLogStore) ListRunLogs(limit int) ([]etl.SyncRunLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.conn.Query(
		`SELECT id, run_id, job, version, started_at, finished_at, status, rows_read, rows_written, rejected, error
		 FROM etl_run_logs ORDER BY started_at DESC, job LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list run logs")
	}
	defer rows.Close()

	var logs []etl.SyncRunLog
	for rows.Next() {
		var l etl.SyncRunLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Job, &l.Version, &l.StartedAt, &l.FinishedAt,
			&l.Status, &l.RowsRead, &l.RowsWritten, &l.Rejected, &l.Error); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
