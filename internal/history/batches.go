package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Batch summarises one run.
type Batch struct {
	ID          string
	OutputRoot  string
	Concurrency int
	Total       int
	Done        int
	Skipped     int
	Started     time.Time
	Finished    time.Time
}

// Duration returns how long the batch ran, or zero while unfinished.
func (b Batch) Duration() time.Duration {
	if b.Finished.IsZero() {
		return 0
	}
	return b.Finished.Sub(b.Started)
}

// Task is the stored outcome of one file.
type Task struct {
	BatchID      string
	TaskNum      int
	Source       string
	BaseName     string
	State        string
	Stage        string
	Reason       string
	OutputDir    string
	SubtitlePath string
	JobID        string
	FileID       string
	Error        string
	Started      time.Time
	Finished     time.Time
}

// StartBatch inserts a batch row before any task runs.
func (s *Store) StartBatch(ctx context.Context, b Batch) error {
	if b.ID == "" {
		return errors.New("batch id required")
	}
	err := s.exec(ctx,
		`INSERT INTO batches (id, output_root, concurrency, total, started_at) VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.OutputRoot, b.Concurrency, b.Total, formatTime(b.Started),
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// FinishBatch stores the final counts of a batch.
func (s *Store) FinishBatch(ctx context.Context, id string, done, skipped int, finished time.Time) error {
	err := s.exec(ctx,
		`UPDATE batches SET done = ?, skipped = ?, finished_at = ? WHERE id = ?`,
		done, skipped, formatTime(finished), id,
	)
	if err != nil {
		return fmt.Errorf("finish batch: %w", err)
	}
	return nil
}

// RecordTask stores one task outcome, replacing an earlier row for the same task.
func (s *Store) RecordTask(ctx context.Context, t Task) error {
	err := s.exec(ctx,
		`INSERT OR REPLACE INTO task_outcomes (
            batch_id, task_num, source, base_name, state, stage, reason,
            output_dir, subtitle_path, job_id, file_id, error_message,
            started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.BatchID, t.TaskNum, t.Source, t.BaseName, t.State, t.Stage, nullable(t.Reason),
		nullable(t.OutputDir), nullable(t.SubtitlePath), nullable(t.JobID), nullable(t.FileID), nullable(t.Error),
		formatTime(t.Started), formatTime(t.Finished),
	)
	if err != nil {
		return fmt.Errorf("insert task outcome: %w", err)
	}
	return nil
}

// ListBatches returns the most recent batches first. limit <= 0 returns all.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]Batch, error) {
	query := `SELECT id, output_root, concurrency, total, done, skipped, started_at, finished_at
        FROM batches ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var (
			b        Batch
			started  sql.NullString
			finished sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.OutputRoot, &b.Concurrency, &b.Total, &b.Done, &b.Skipped, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		b.Started = parseTime(started)
		b.Finished = parseTime(finished)
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// GetBatch returns one batch, or nil when it does not exist.
func (s *Store) GetBatch(ctx context.Context, id string) (*Batch, error) {
	var (
		b        Batch
		started  sql.NullString
		finished sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, output_root, concurrency, total, done, skipped, started_at, finished_at FROM batches WHERE id = ?`,
		id,
	).Scan(&b.ID, &b.OutputRoot, &b.Concurrency, &b.Total, &b.Done, &b.Skipped, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	b.Started = parseTime(started)
	b.Finished = parseTime(finished)
	return &b, nil
}

// ListTasks returns the outcomes of a batch ordered by task number.
func (s *Store) ListTasks(ctx context.Context, batchID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_id, task_num, source, base_name, state, stage, reason, output_dir,
            subtitle_path, job_id, file_id, error_message, started_at, finished_at
        FROM task_outcomes WHERE batch_id = ? ORDER BY task_num`,
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var (
			t                                                   Task
			reason, outputDir, subtitle, jobID, fileID, message sql.NullString
			started, finished                                   sql.NullString
		)
		if err := rows.Scan(&t.BatchID, &t.TaskNum, &t.Source, &t.BaseName, &t.State, &t.Stage,
			&reason, &outputDir, &subtitle, &jobID, &fileID, &message, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Reason = reason.String
		t.OutputDir = outputDir.String
		t.SubtitlePath = subtitle.String
		t.JobID = jobID.String
		t.FileID = fileID.String
		t.Error = message.String
		t.Started = parseTime(started)
		t.Finished = parseTime(finished)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
