package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/certspend/internal/db"
	"github.com/sells-group/certspend/internal/model"
)

// RunLog provides read/write access to the certspend.run_log table.
type RunLog struct {
	pool db.Pool
}

// NewRunLog creates a RunLog backed by the given pool.
func NewRunLog(pool db.Pool) *RunLog {
	return &RunLog{pool: pool}
}

// Start records the beginning of a pipeline run and returns its ID.
func (l *RunLog) Start(ctx context.Context) (string, error) {
	id := uuid.New().String()
	_, err := l.pool.Exec(ctx,
		`INSERT INTO certspend.run_log (id, status, started_at) VALUES ($1, $2, now())`,
		id, string(model.RunStatusRunning),
	)
	if err != nil {
		return "", eris.Wrap(err, "runlog: start run")
	}
	return id, nil
}

// Complete marks a run as complete with the row count of every output table.
func (l *RunLog) Complete(ctx context.Context, runID string, counts map[string]int) error {
	var countsJSON []byte
	if counts != nil {
		var err error
		countsJSON, err = json.Marshal(counts)
		if err != nil {
			return eris.Wrap(err, "runlog: marshal counts")
		}
	}

	_, err := l.pool.Exec(ctx,
		`UPDATE certspend.run_log
		 SET status = $1, completed_at = now(), counts = $2
		 WHERE id = $3`,
		string(model.RunStatusComplete), countsJSON, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete run %s", runID)
	}
	return nil
}

// Fail marks a run as failed with an error message.
func (l *RunLog) Fail(ctx context.Context, runID string, errMsg string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE certspend.run_log
		 SET status = $1, completed_at = now(), error = $2
		 WHERE id = $3`,
		string(model.RunStatusFailed), errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail run %s", runID)
	}
	return nil
}

// List returns up to limit run log entries, most recent first. A limit of
// zero or less returns every entry.
func (l *RunLog) List(ctx context.Context, limit int) ([]model.RunEntry, error) {
	query := `SELECT id::text, status, started_at, completed_at, counts, error
		 FROM certspend.run_log ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list")
	}
	defer rows.Close()

	var entries []model.RunEntry
	for rows.Next() {
		var e model.RunEntry
		var status string
		var completedAt *time.Time
		var countsJSON []byte
		var errStr *string
		if err := rows.Scan(&e.ID, &status, &e.StartedAt, &completedAt, &countsJSON, &errStr); err != nil {
			return nil, eris.Wrap(err, "runlog: scan entry")
		}
		e.Status = model.RunStatus(status)
		e.CompletedAt = completedAt
		if errStr != nil {
			e.Error = *errStr
		}
		if countsJSON != nil {
			if err := json.Unmarshal(countsJSON, &e.Counts); err != nil {
				return nil, eris.Wrapf(err, "runlog: decode counts of run %s", e.ID)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
