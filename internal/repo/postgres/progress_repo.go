package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProgressRepo struct {
	pool *pgxpool.Pool
}

type LectureProgressRecord struct {
	UserID    int64
	CourseID  int64
	LectureID int64
	Viewed    bool
	UpdatedAt time.Time
}

type CourseProgressRecord struct {
	UserID    int64
	CourseID  int64
	Completed bool
	UpdatedAt time.Time
}

func NewProgressRepo(pool *pgxpool.Pool) *ProgressRepo {
	return &ProgressRepo{pool: pool}
}

func (r *ProgressRepo) UpsertLectureViewed(ctx context.Context, userID, courseID, lectureID int64, viewed bool) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || courseID <= 0 || lectureID <= 0 {
		return fmt.Errorf("invalid lecture progress payload")
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO lecture_progress (user_id, course_id, lecture_id, viewed, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (user_id, lecture_id) DO UPDATE
SET viewed = EXCLUDED.viewed, updated_at = NOW()
`, userID, courseID, lectureID, viewed); err != nil {
		return fmt.Errorf("upsert lecture progress: %w", err)
	}

	return nil
}

func (r *ProgressRepo) ListLectureProgress(ctx context.Context, userID, courseID int64) ([]LectureProgressRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || courseID <= 0 {
		return nil, fmt.Errorf("invalid progress lookup payload")
	}

	rows, err := r.pool.Query(ctx, `
SELECT user_id, course_id, lecture_id, viewed, updated_at
FROM lecture_progress
WHERE user_id = $1
  AND course_id = $2
`, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("list lecture progress: %w", err)
	}
	defer rows.Close()

	var records []LectureProgressRecord
	for rows.Next() {
		var record LectureProgressRecord
		if err := rows.Scan(
			&record.UserID,
			&record.CourseID,
			&record.LectureID,
			&record.Viewed,
			&record.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan lecture progress row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lecture progress rows: %w", err)
	}

	return records, nil
}

func (r *ProgressRepo) GetCourseProgress(ctx context.Context, userID, courseID int64) (CourseProgressRecord, error) {
	if r.pool == nil {
		return CourseProgressRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || courseID <= 0 {
		return CourseProgressRecord{}, fmt.Errorf("invalid progress lookup payload")
	}

	var record CourseProgressRecord
	err := r.pool.QueryRow(ctx, `
SELECT user_id, course_id, completed, updated_at
FROM course_progress
WHERE user_id = $1
  AND course_id = $2
LIMIT 1
`, userID, courseID).Scan(
		&record.UserID,
		&record.CourseID,
		&record.Completed,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CourseProgressRecord{UserID: userID, CourseID: courseID}, nil
		}
		return CourseProgressRecord{}, fmt.Errorf("get course progress: %w", err)
	}

	return record, nil
}

// SetCourseCompleted marks a course completed or not and, inside the same
// transaction, aligns every lecture's viewed flag with it.
func (r *ProgressRepo) SetCourseCompleted(ctx context.Context, userID, courseID int64, completed bool, lectureIDs []int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || courseID <= 0 {
		return fmt.Errorf("invalid course progress payload")
	}

	return WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
INSERT INTO course_progress (user_id, course_id, completed, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (user_id, course_id) DO UPDATE
SET completed = EXCLUDED.completed, updated_at = NOW()
`, userID, courseID, completed); err != nil {
			return fmt.Errorf("upsert course progress: %w", err)
		}

		for _, lectureID := range lectureIDs {
			if _, err := tx.Exec(ctx, `
INSERT INTO lecture_progress (user_id, course_id, lecture_id, viewed, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (user_id, lecture_id) DO UPDATE
SET viewed = EXCLUDED.viewed, updated_at = NOW()
`, userID, courseID, lectureID, completed); err != nil {
				return fmt.Errorf("align lecture progress: %w", err)
			}
		}

		return nil
	})
}
