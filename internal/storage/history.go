package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mediadrop/mediadrop/internal/model"
)

// HistoryStore persists terminal job records. One row per job id; a repeat
// insert for the same job overwrites the earlier row.
type HistoryStore struct {
	db *sql.DB
}

// Insert writes a terminal job record, replacing any earlier record with the
// same job id.
func (s *HistoryStore) Insert(ctx context.Context, record *model.HistoryRecord) error {
	tags, err := json.Marshal(record.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	logTail, err := json.Marshal(record.LogTail)
	if err != nil {
		return fmt.Errorf("failed to encode log tail: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO history (
			job_id, url, kind, state, title, thumbnail, channel, duration,
			tags, format_selector, command_line, output_dir, output_path,
			subscription_id, error, log_tail, created_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			state = excluded.state,
			title = excluded.title,
			thumbnail = excluded.thumbnail,
			channel = excluded.channel,
			duration = excluded.duration,
			output_path = excluded.output_path,
			error = excluded.error,
			log_tail = excluded.log_tail,
			finished_at = excluded.finished_at`,
		record.JobID, record.URL, string(record.Kind), string(record.State),
		record.Title, record.Thumbnail, record.Channel, record.Duration,
		string(tags), record.FormatSelector, record.CommandLine,
		record.OutputDir, record.OutputPath, record.SubscriptionID,
		record.Error, string(logTail),
		record.CreatedAt.Unix(), record.FinishedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert history record: %w", err)
	}
	return nil
}

// List returns history records newest-first. limit <= 0 returns everything.
func (s *HistoryStore) List(ctx context.Context, limit int) ([]*model.HistoryRecord, error) {
	query := `
		SELECT job_id, url, kind, state, title, thumbnail, channel, duration,
			tags, format_selector, command_line, output_dir, output_path,
			subscription_id, error, log_tail, created_at, finished_at
		FROM history ORDER BY finished_at DESC, job_id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []*model.HistoryRecord
	for rows.Next() {
		record, err := scanHistoryRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Get returns one record by job id
func (s *HistoryStore) Get(ctx context.Context, jobID string) (*model.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, url, kind, state, title, thumbnail, channel, duration,
			tags, format_selector, command_line, output_dir, output_path,
			subscription_id, error, log_tail, created_at, finished_at
		FROM history WHERE job_id = ?`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	return scanHistoryRow(rows)
}

// Delete removes one record by job id. Missing records are not an error.
func (s *HistoryStore) Delete(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("failed to delete history record: %w", err)
	}
	return nil
}

func scanHistoryRow(rows *sql.Rows) (*model.HistoryRecord, error) {
	var (
		record              model.HistoryRecord
		kind, state         string
		tagsJSON, tailJSON  string
		createdAt, finished int64
	)
	err := rows.Scan(
		&record.JobID, &record.URL, &kind, &state, &record.Title,
		&record.Thumbnail, &record.Channel, &record.Duration, &tagsJSON,
		&record.FormatSelector, &record.CommandLine, &record.OutputDir,
		&record.OutputPath, &record.SubscriptionID, &record.Error,
		&tailJSON, &createdAt, &finished,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan history row: %w", err)
	}

	record.Kind = model.JobKind(kind)
	record.State = model.JobState(state)
	record.CreatedAt = time.Unix(createdAt, 0)
	record.FinishedAt = time.Unix(finished, 0)
	if err := json.Unmarshal([]byte(tagsJSON), &record.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(tailJSON), &record.LogTail); err != nil {
		return nil, fmt.Errorf("failed to decode log tail: %w", err)
	}
	return &record, nil
}
