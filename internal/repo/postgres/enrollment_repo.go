package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type EnrollmentRepo struct {
	pool *pgxpool.Pool
}

func NewEnrollmentRepo(pool *pgxpool.Pool) *EnrollmentRepo {
	return &EnrollmentRepo{pool: pool}
}

// Add links a user and a course. The insert is an idempotent set-insert:
// concurrent webhook delivery and defensive completion racing on the same
// pair both land on ON CONFLICT DO NOTHING.
func (r *EnrollmentRepo) Add(ctx context.Context, courseID, userID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if courseID <= 0 || userID <= 0 {
		return fmt.Errorf("invalid enrollment payload")
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO enrollments (course_id, user_id, created_at)
VALUES ($1, $2, NOW())
ON CONFLICT (course_id, user_id) DO NOTHING
`, courseID, userID); err != nil {
		return fmt.Errorf("add enrollment: %w", err)
	}

	return nil
}

func (r *EnrollmentRepo) Exists(ctx context.Context, courseID, userID int64) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	if courseID <= 0 || userID <= 0 {
		return false, fmt.Errorf("invalid enrollment lookup payload")
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM enrollments WHERE course_id = $1 AND user_id = $2
)
`, courseID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}

	return exists, nil
}

func (r *EnrollmentRepo) ListCourseIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT course_id FROM enrollments WHERE user_id = $1 ORDER BY created_at DESC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrolled courses: %w", err)
	}
	defer rows.Close()

	var courseIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan enrollment row: %w", err)
		}
		courseIDs = append(courseIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollment rows: %w", err)
	}

	return courseIDs, nil
}
