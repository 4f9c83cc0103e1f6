package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prospectkeeper/keeper/internal/stream"
)

// DefaultRunRetention bounds how many archived runs SaveRun keeps around.
const DefaultRunRetention = 200

var ErrRunNotFound = errors.New("run not found")

// Run is one archived verification session.
type Run struct {
	ID          string
	ContactID   string
	ContactName string
	State       string
	Verdict     string
	Detail      string
	Elapsed     time.Duration
	StartedAt   time.Time
	FinishedAt  time.Time
	EventCount  int
}

// RunEvent is one transcript row of an archived run.
type RunEvent struct {
	Seq     int
	Type    string
	Payload string
	At      time.Time
}

// Event decodes the stored payload back into a stream event.
func (e RunEvent) Event() (stream.AgentEvent, error) {
	var event stream.AgentEvent
	if err := json.Unmarshal([]byte(e.Payload), &event); err != nil {
		return stream.AgentEvent{}, fmt.Errorf("decode archived event %d: %w", e.Seq, err)
	}
	event.At = e.At
	return event, nil
}

// SaveRun archives a finished run with its transcript and prunes the
// archive down to the retention limit. A blank run ID gets a generated
// UUID; the stored ID is returned either way.
func (db *DB) SaveRun(ctx context.Context, run Run, events []stream.AgentEvent) (string, error) {
	if strings.TrimSpace(run.ID) == "" {
		run.ID = uuid.NewString()
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, contact_id, contact_name, state, verdict, detail, elapsed_seconds, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.ContactID, run.ContactName, run.State, run.Verdict, run.Detail,
		int64(run.Elapsed/time.Second), run.StartedAt, run.FinishedAt)
	if err != nil {
		return "", err
	}

	for seq, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return "", fmt.Errorf("encode event %d: %w", seq, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_events (run_id, seq, event_type, payload, at)
			VALUES (?, ?, ?, ?, ?)
		`, run.ID, seq, string(event.Type), string(payload), event.At)
		if err != nil {
			return "", err
		}
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM runs
		WHERE id NOT IN (
			SELECT id
			FROM runs
			ORDER BY finished_at DESC, id DESC
			LIMIT ?
		)
	`, DefaultRunRetention)
	if err != nil {
		return "", err
	}
	_, err = tx.ExecContext(ctx, `
		DELETE FROM run_events
		WHERE run_id NOT IN (SELECT id FROM runs)
	`)
	if err != nil {
		return "", err
	}

	return run.ID, tx.Commit()
}

// ListRuns returns archived runs, newest first. A limit of 0 means the
// retention maximum.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultRunRetention
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT r.id, r.contact_id, r.contact_name, r.state, r.verdict, r.detail,
		       r.elapsed_seconds, r.started_at, r.finished_at,
		       (SELECT COUNT(*) FROM run_events e WHERE e.run_id = r.id)
		FROM runs r
		ORDER BY r.finished_at DESC, r.id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRun loads one archived run by ID, or by an unambiguous ID prefix.
func (db *DB) GetRun(ctx context.Context, id string) (Run, error) {
	id = strings.TrimSpace(id)
	rows, err := db.conn.QueryContext(ctx, `
		SELECT r.id, r.contact_id, r.contact_name, r.state, r.verdict, r.detail,
		       r.elapsed_seconds, r.started_at, r.finished_at,
		       (SELECT COUNT(*) FROM run_events e WHERE e.run_id = r.id)
		FROM runs r
		WHERE r.id = ? OR r.id LIKE ? || '%'
		LIMIT 2
	`, id, id)
	if err != nil {
		return Run{}, err
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch len(matches) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return Run{}, fmt.Errorf("run ID prefix %q is ambiguous", id)
	}
}

// GetRunEvents returns the transcript of an archived run in stored order.
func (db *DB) GetRunEvents(ctx context.Context, runID string) ([]RunEvent, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT seq, event_type, payload, at
		FROM run_events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunEvent
	for rows.Next() {
		var e RunEvent
		if err := rows.Scan(&e.Seq, &e.Type, &e.Payload, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var run Run
	var elapsedSeconds int64
	err := rows.Scan(&run.ID, &run.ContactID, &run.ContactName, &run.State, &run.Verdict,
		&run.Detail, &elapsedSeconds, &run.StartedAt, &run.FinishedAt, &run.EventCount)
	if err != nil {
		return Run{}, err
	}
	run.Elapsed = time.Duration(elapsedSeconds) * time.Second
	return run, nil
}
