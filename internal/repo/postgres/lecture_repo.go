package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrLectureNotFound = errors.New("lecture not found")

type LectureRepo struct {
	pool *pgxpool.Pool
}

type LectureRecord struct {
	ID        int64
	CourseID  int64
	Title     string
	VideoKey  *string
	IsPreview bool
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type LectureUpdate struct {
	Title     *string
	VideoKey  *string
	IsPreview *bool
	Position  *int
}

func NewLectureRepo(pool *pgxpool.Pool) *LectureRepo {
	return &LectureRepo{pool: pool}
}

func (r *LectureRepo) Create(ctx context.Context, courseID int64, title string) (LectureRecord, error) {
	if r.pool == nil {
		return LectureRecord{}, fmt.Errorf("postgres pool is nil")
	}
	title = strings.TrimSpace(title)
	if courseID <= 0 || title == "" {
		return LectureRecord{}, fmt.Errorf("invalid lecture create payload")
	}

	record, err := scanLecture(r.pool.QueryRow(ctx, `
INSERT INTO lectures (course_id, title, position, created_at, updated_at)
VALUES (
	$1,
	$2,
	COALESCE((SELECT MAX(position) + 1 FROM lectures WHERE course_id = $1), 0),
	NOW(),
	NOW()
)
RETURNING id, course_id, title, video_key, is_preview, position, created_at, updated_at
`, courseID, title))
	if err != nil {
		return LectureRecord{}, fmt.Errorf("create lecture: %w", err)
	}

	return record, nil
}

func (r *LectureRepo) FindByID(ctx context.Context, lectureID int64) (LectureRecord, error) {
	if r.pool == nil {
		return LectureRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if lectureID <= 0 {
		return LectureRecord{}, fmt.Errorf("invalid lecture id")
	}

	record, err := scanLecture(r.pool.QueryRow(ctx, `
SELECT id, course_id, title, video_key, is_preview, position, created_at, updated_at
FROM lectures
WHERE id = $1
LIMIT 1
`, lectureID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LectureRecord{}, ErrLectureNotFound
		}
		return LectureRecord{}, fmt.Errorf("find lecture by id: %w", err)
	}

	return record, nil
}

func (r *LectureRepo) Update(ctx context.Context, lectureID int64, update LectureUpdate) (LectureRecord, error) {
	if r.pool == nil {
		return LectureRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if lectureID <= 0 {
		return LectureRecord{}, fmt.Errorf("invalid lecture id")
	}

	record, err := scanLecture(r.pool.QueryRow(ctx, `
UPDATE lectures
SET
	title = COALESCE($2, title),
	video_key = COALESCE($3, video_key),
	is_preview = COALESCE($4, is_preview),
	position = COALESCE($5, position),
	updated_at = NOW()
WHERE id = $1
RETURNING id, course_id, title, video_key, is_preview, position, created_at, updated_at
`, lectureID, update.Title, update.VideoKey, update.IsPreview, update.Position))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LectureRecord{}, ErrLectureNotFound
		}
		return LectureRecord{}, fmt.Errorf("update lecture: %w", err)
	}

	return record, nil
}

func (r *LectureRepo) Delete(ctx context.Context, lectureID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if lectureID <= 0 {
		return fmt.Errorf("invalid lecture id")
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM lectures WHERE id = $1`, lectureID)
	if err != nil {
		return fmt.Errorf("delete lecture: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLectureNotFound
	}

	return nil
}

func (r *LectureRepo) ListByCourse(ctx context.Context, courseID int64) ([]LectureRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if courseID <= 0 {
		return nil, fmt.Errorf("invalid course id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, course_id, title, video_key, is_preview, position, created_at, updated_at
FROM lectures
WHERE course_id = $1
ORDER BY position, id
`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list lectures by course: %w", err)
	}
	defer rows.Close()

	var records []LectureRecord
	for rows.Next() {
		record, err := scanLecture(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lecture row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lecture rows: %w", err)
	}

	return records, nil
}

func (r *LectureRepo) CountByCourse(ctx context.Context, courseID int64) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if courseID <= 0 {
		return 0, fmt.Errorf("invalid course id")
	}

	var count int
	if err := r.pool.QueryRow(ctx, `
SELECT COUNT(*) FROM lectures WHERE course_id = $1
`, courseID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count lectures: %w", err)
	}

	return count, nil
}

func scanLecture(row pgx.Row) (LectureRecord, error) {
	var record LectureRecord
	if err := row.Scan(
		&record.ID,
		&record.CourseID,
		&record.Title,
		&record.VideoKey,
		&record.IsPreview,
		&record.Position,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return LectureRecord{}, err
	}
	return record, nil
}
