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

var ErrCourseNotFound = errors.New("course not found")

type CourseRepo struct {
	pool *pgxpool.Pool
}

type CourseRecord struct {
	ID           int64
	CreatorID    int64
	Title        string
	Subtitle     *string
	Description  *string
	Category     string
	Level        string
	Price        int64
	ThumbnailKey *string
	Published    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type CourseUpdate struct {
	Title        *string
	Subtitle     *string
	Description  *string
	Category     *string
	Level        *string
	Price        *int64
	ThumbnailKey *string
}

type CourseFilter struct {
	Query    string
	Category string
	Limit    int
}

func NewCourseRepo(pool *pgxpool.Pool) *CourseRepo {
	return &CourseRepo{pool: pool}
}

func (r *CourseRepo) Create(ctx context.Context, creatorID int64, title, category string) (CourseRecord, error) {
	if r.pool == nil {
		return CourseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	title = strings.TrimSpace(title)
	category = strings.TrimSpace(category)
	if creatorID <= 0 || title == "" || category == "" {
		return CourseRecord{}, fmt.Errorf("invalid course create payload")
	}

	record, err := scanCourse(r.pool.QueryRow(ctx, `
INSERT INTO courses (creator_id, title, category, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW())
RETURNING id, creator_id, title, subtitle, description, category, level, price, thumbnail_key, published, created_at, updated_at
`, creatorID, title, category))
	if err != nil {
		return CourseRecord{}, fmt.Errorf("create course: %w", err)
	}

	return record, nil
}

func (r *CourseRepo) FindByID(ctx context.Context, courseID int64) (CourseRecord, error) {
	if r.pool == nil {
		return CourseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if courseID <= 0 {
		return CourseRecord{}, fmt.Errorf("invalid course id")
	}

	record, err := scanCourse(r.pool.QueryRow(ctx, `
SELECT id, creator_id, title, subtitle, description, category, level, price, thumbnail_key, published, created_at, updated_at
FROM courses
WHERE id = $1
LIMIT 1
`, courseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CourseRecord{}, ErrCourseNotFound
		}
		return CourseRecord{}, fmt.Errorf("find course by id: %w", err)
	}

	return record, nil
}

func (r *CourseRepo) Update(ctx context.Context, courseID int64, update CourseUpdate) (CourseRecord, error) {
	if r.pool == nil {
		return CourseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if courseID <= 0 {
		return CourseRecord{}, fmt.Errorf("invalid course id")
	}

	record, err := scanCourse(r.pool.QueryRow(ctx, `
UPDATE courses
SET
	title = COALESCE($2, title),
	subtitle = COALESCE($3, subtitle),
	description = COALESCE($4, description),
	category = COALESCE($5, category),
	level = COALESCE($6, level),
	price = COALESCE($7, price),
	thumbnail_key = COALESCE($8, thumbnail_key),
	updated_at = NOW()
WHERE id = $1
RETURNING id, creator_id, title, subtitle, description, category, level, price, thumbnail_key, published, created_at, updated_at
`, courseID, update.Title, update.Subtitle, update.Description, update.Category, update.Level, update.Price, update.ThumbnailKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CourseRecord{}, ErrCourseNotFound
		}
		return CourseRecord{}, fmt.Errorf("update course: %w", err)
	}

	return record, nil
}

func (r *CourseRepo) SetPublished(ctx context.Context, courseID int64, published bool) (CourseRecord, error) {
	if r.pool == nil {
		return CourseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if courseID <= 0 {
		return CourseRecord{}, fmt.Errorf("invalid course id")
	}

	record, err := scanCourse(r.pool.QueryRow(ctx, `
UPDATE courses
SET published = $2, updated_at = NOW()
WHERE id = $1
RETURNING id, creator_id, title, subtitle, description, category, level, price, thumbnail_key, published, created_at, updated_at
`, courseID, published))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CourseRecord{}, ErrCourseNotFound
		}
		return CourseRecord{}, fmt.Errorf("set course published: %w", err)
	}

	return record, nil
}

func (r *CourseRepo) ListByCreator(ctx context.Context, creatorID int64) ([]CourseRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if creatorID <= 0 {
		return nil, fmt.Errorf("invalid creator id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, creator_id, title, subtitle, description, category, level, price, thumbnail_key, published, created_at, updated_at
FROM courses
WHERE creator_id = $1
ORDER BY created_at DESC
`, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list courses by creator: %w", err)
	}
	defer rows.Close()

	return collectCourses(rows)
}

func (r *CourseRepo) SearchPublished(ctx context.Context, filter CourseFilter) ([]CourseRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := "%" + strings.ToLower(strings.TrimSpace(filter.Query)) + "%"
	category := strings.TrimSpace(filter.Category)

	rows, err := r.pool.Query(ctx, `
SELECT id, creator_id, title, subtitle, description, category, level, price, thumbnail_key, published, created_at, updated_at
FROM courses
WHERE published = TRUE
  AND (LOWER(title) LIKE $1 OR LOWER(COALESCE(subtitle, '')) LIKE $1)
  AND ($2 = '' OR category = $2)
ORDER BY created_at DESC
LIMIT $3
`, query, category, limit)
	if err != nil {
		return nil, fmt.Errorf("search published courses: %w", err)
	}
	defer rows.Close()

	return collectCourses(rows)
}

func scanCourse(row pgx.Row) (CourseRecord, error) {
	var record CourseRecord
	if err := row.Scan(
		&record.ID,
		&record.CreatorID,
		&record.Title,
		&record.Subtitle,
		&record.Description,
		&record.Category,
		&record.Level,
		&record.Price,
		&record.ThumbnailKey,
		&record.Published,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return CourseRecord{}, err
	}
	return record, nil
}

func collectCourses(rows pgx.Rows) ([]CourseRecord, error) {
	var records []CourseRecord
	for rows.Next() {
		record, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate course rows: %w", err)
	}
	return records, nil
}
