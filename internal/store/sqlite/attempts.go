package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"warkrs/internal/model"
)

func (s *Store) RecordAttempt(ctx context.Context, a model.Attempt) (model.Attempt, error) {
	if a.CourseCode == "" {
		return model.Attempt{}, errors.New("courseCode is required")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AtMs <= 0 {
		a.AtMs = time.Now().UnixMilli()
	}

	submitted, verified := 0, 0
	if a.Submitted {
		submitted = 1
	}
	if a.Verified {
		verified = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (id, run_id, course_code, class_id, submitted, verified, error, at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.RunID, a.CourseCode, a.ClassID, submitted, verified, a.Error, a.AtMs)
	if err != nil {
		return model.Attempt{}, err
	}
	return a, nil
}

func (s *Store) ListAttempts(ctx context.Context, limit int) ([]model.Attempt, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, course_code, class_id, submitted, verified, error, at_ms
		FROM attempts ORDER BY at_ms DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Attempt
	for rows.Next() {
		var a model.Attempt
		var submitted, verified int
		if err := rows.Scan(&a.ID, &a.RunID, &a.CourseCode, &a.ClassID, &submitted, &verified, &a.Error, &a.AtMs); err != nil {
			return nil, err
		}
		a.Submitted = submitted == 1
		a.Verified = verified == 1
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
