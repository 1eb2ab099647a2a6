package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/groverq/internal/agent"
	"github.com/aristath/groverq/internal/database"
	"github.com/aristath/groverq/internal/utils"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// runColumns must match scanRun
const runColumns = `id, status, request, summary, error, created_at, started_at, finished_at`

// Repository persists runs, their episodes and artifacts in the runs database.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a repository over the runs database.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "runs").Logger(),
	}
}

// Create inserts a queued run.
func (r *Repository) Create(ctx context.Context, run *Run) error {
	request, err := encodeJSON(run.Request)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO runs (id, status, request, created_at)
		VALUES (?, ?, ?, ?)
	`, run.ID, string(run.Status), request, run.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}

	r.log.Debug().Str("run_id", run.ID).Msg("Run created")
	return nil
}

// MarkRunning moves a queued run to running.
func (r *Repository) MarkRunning(ctx context.Context, id string, at time.Time) error {
	return r.transition(ctx, `
		UPDATE runs SET status = ?, started_at = ?
		WHERE id = ? AND status = ?
	`, id, string(StatusRunning), at.Unix(), id, string(StatusQueued))
}

// Complete stores the summary, every episode and the artifacts of a run in
// one transaction and marks it completed.
func (r *Repository) Complete(ctx context.Context, id string, at time.Time, summary *Summary, history *agent.History, artifacts *Artifacts) error {
	summaryJSON, err := encodeJSON(summary)
	if err != nil {
		return err
	}

	blobs := map[string]interface{}{
		artifactQTable:    artifacts.QTable,
		artifactLengths:   artifacts.Lengths,
		artifactSaturated: artifacts.Saturated,
		artifactDepths:    artifacts.Depths,
	}
	encoded := make(map[string][]byte, len(blobs))
	for kind, v := range blobs {
		data, err := encodeBlob(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s for run %s: %w", kind, id, err)
		}
		encoded[kind] = data
	}

	trajectories := make([][]byte, history.Len())
	for i, traj := range history.Trajectories {
		data, err := encodeBlob(traj)
		if err != nil {
			return fmt.Errorf("failed to encode trajectory %d for run %s: %w", i, id, err)
		}
		trajectories[i] = data
	}

	done := utils.MeasureDBQuery("complete_run", r.log)
	var rows int64
	err = database.WithTransaction(r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE runs SET status = ?, summary = ?, finished_at = ?
			WHERE id = ? AND status = ?
		`, string(StatusCompleted), summaryJSON, at.Unix(), id, string(StatusRunning))
		if err != nil {
			return err
		}
		if err := expectOneRow(res, id); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO run_episodes
			(run_id, episode, steps, goal_reached, episode_return, max_q_delta, iterations, trajectory)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := 0; i < history.Len(); i++ {
			if _, err := stmt.ExecContext(ctx, id, i,
				history.Steps[i],
				boolToInt(history.GoalReached[i]),
				history.Returns[i],
				history.MaxQDeltas[i],
				history.Iterations[i],
				trajectories[i],
			); err != nil {
				return fmt.Errorf("failed to insert episode %d: %w", i, err)
			}
		}
		rows = 1 + int64(history.Len())

		for kind, data := range encoded {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO run_artifacts (run_id, kind, data) VALUES (?, ?, ?)
			`, id, kind, data); err != nil {
				return fmt.Errorf("failed to insert %s artifact: %w", kind, err)
			}
			rows++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to complete run %s: %w", id, err)
	}
	done(rows)

	r.log.Debug().Str("run_id", id).Int("episodes", history.Len()).Msg("Run completed")
	return nil
}

// Fail marks a queued or running run as failed.
func (r *Repository) Fail(ctx context.Context, id string, at time.Time, reason string) error {
	return r.transition(ctx, `
		UPDATE runs SET status = ?, error = ?, finished_at = ?
		WHERE id = ? AND status IN (?, ?)
	`, id, string(StatusFailed), reason, at.Unix(), id, string(StatusQueued), string(StatusRunning))
}

// FailInterrupted marks every run left running by a previous process as
// failed and returns how many there were.
func (r *Repository) FailInterrupted(ctx context.Context, at time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, finished_at = ?
		WHERE status = ?
	`, string(StatusFailed), "interrupted by shutdown", at.Unix(), string(StatusRunning))
	if err != nil {
		return 0, fmt.Errorf("failed to fail interrupted runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count interrupted runs: %w", err)
	}
	return int(n), nil
}

// Get returns a run by ID.
func (r *Repository) Get(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// List returns the newest runs first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, limit int, status Status) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return out, nil
}

// QueuedIDs returns queued runs oldest first.
func (r *Repository) QueuedIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM runs WHERE status = ? ORDER BY created_at ASC, rowid ASC
	`, string(StatusQueued))
	if err != nil {
		return nil, fmt.Errorf("failed to list queued runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountByStatus returns the number of runs per status.
func (r *Repository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	defer rows.Close()

	counts := map[Status]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan run count: %w", err)
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

// Episodes returns the stored episode results of a run in order.
func (r *Repository) Episodes(ctx context.Context, id string) ([]agent.EpisodeResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT episode, steps, goal_reached, episode_return, max_q_delta, iterations, trajectory
		FROM run_episodes WHERE run_id = ? ORDER BY episode ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes for run %s: %w", id, err)
	}
	defer rows.Close()

	episodes := []agent.EpisodeResult{}
	for rows.Next() {
		var ep agent.EpisodeResult
		var goal int
		var trajectory []byte
		if err := rows.Scan(&ep.Episode, &ep.Steps, &goal, &ep.Return, &ep.MaxQDelta, &ep.Iterations, &trajectory); err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		ep.GoalReached = goal != 0
		if err := decodeBlob(trajectory, &ep.Trajectory); err != nil {
			return nil, fmt.Errorf("failed to decode trajectory of episode %d: %w", ep.Episode, err)
		}
		ep.Transitions = len(ep.Trajectory)
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

// Artifacts returns the learned state stored for a completed run.
func (r *Repository) Artifacts(ctx context.Context, id string) (*Artifacts, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT kind, data FROM run_artifacts WHERE run_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts for run %s: %w", id, err)
	}
	defer rows.Close()

	art := &Artifacts{}
	found := false
	for rows.Next() {
		var kind string
		var data []byte
		if err := rows.Scan(&kind, &data); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		found = true

		var target interface{}
		switch kind {
		case artifactQTable:
			target = &art.QTable
		case artifactLengths:
			target = &art.Lengths
		case artifactSaturated:
			target = &art.Saturated
		case artifactDepths:
			target = &art.Depths
		default:
			r.log.Warn().Str("run_id", id).Str("kind", kind).Msg("Skipping unknown artifact kind")
			continue
		}
		if err := decodeBlob(data, target); err != nil {
			return nil, fmt.Errorf("failed to decode %s artifact: %w", kind, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return art, nil
}

func (r *Repository) transition(ctx context.Context, query, id string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", id, err)
	}
	return expectOneRow(res, id)
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w or not in the expected state", id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run        Run
		status     string
		request    string
		summary    sql.NullString
		errMsg     sql.NullString
		createdAt  int64
		startedAt  sql.NullInt64
		finishedAt sql.NullInt64
	)
	if err := s.Scan(&run.ID, &status, &request, &summary, &errMsg, &createdAt, &startedAt, &finishedAt); err != nil {
		return nil, err
	}

	run.Status = Status(status)
	run.Error = errMsg.String
	run.CreatedAt = time.Unix(createdAt, 0).UTC()
	run.StartedAt = nullTime(startedAt)
	run.FinishedAt = nullTime(finishedAt)

	if err := json.Unmarshal([]byte(request), &run.Request); err != nil {
		return nil, fmt.Errorf("failed to decode request of run %s: %w", run.ID, err)
	}
	if summary.Valid && summary.String != "" {
		run.Summary = &Summary{}
		if err := json.Unmarshal([]byte(summary.String), run.Summary); err != nil {
			return nil, fmt.Errorf("failed to decode summary of run %s: %w", run.ID, err)
		}
	}
	return &run, nil
}

func nullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
