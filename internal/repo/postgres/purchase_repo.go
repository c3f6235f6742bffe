package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrPurchaseNotFound  = errors.New("purchase not found")
	ErrSessionIDConflict = errors.New("session id already attached to another purchase")
)

const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusCompleted = "completed"
	PurchaseStatusFailed    = "failed"
)

type PurchaseRepo struct {
	pool *pgxpool.Pool
}

type PurchaseRecord struct {
	ID        int64
	CourseID  int64
	UserID    int64
	Amount    int64
	Status    string
	SessionID *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SaleRecord is a completed purchase joined with its course, as reported to
// the instructor dashboard.
type SaleRecord struct {
	PurchaseID  int64
	CourseID    int64
	UserID      int64
	Amount      int64
	CourseTitle string
	CoursePrice int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewPurchaseRepo(pool *pgxpool.Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

// CreatePending inserts the purchase record before any call to the payment
// gateway leaves the process. A gateway failure afterwards marks it failed;
// there is never an external session without a local record.
func (r *PurchaseRepo) CreatePending(ctx context.Context, courseID, userID, amount int64) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if courseID <= 0 || userID <= 0 || amount < 0 {
		return PurchaseRecord{}, fmt.Errorf("invalid purchase create payload")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
INSERT INTO purchases (course_id, user_id, amount, status, created_at, updated_at)
VALUES ($1, $2, $3, 'pending', NOW(), NOW())
RETURNING id, course_id, user_id, amount, status, session_id, created_at, updated_at
`, courseID, userID, amount))
	if err != nil {
		return PurchaseRecord{}, fmt.Errorf("create pending purchase: %w", err)
	}

	return record, nil
}

func (r *PurchaseRepo) AttachSession(ctx context.Context, purchaseID int64, sessionID string) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	sessionID = strings.TrimSpace(sessionID)
	if purchaseID <= 0 || sessionID == "" {
		return PurchaseRecord{}, fmt.Errorf("invalid attach session payload")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
UPDATE purchases
SET session_id = $2, updated_at = NOW()
WHERE id = $1
RETURNING id, course_id, user_id, amount, status, session_id, created_at, updated_at
`, purchaseID, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return PurchaseRecord{}, ErrSessionIDConflict
		}
		return PurchaseRecord{}, fmt.Errorf("attach purchase session: %w", err)
	}

	return record, nil
}

func (r *PurchaseRepo) MarkFailed(ctx context.Context, purchaseID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if purchaseID <= 0 {
		return fmt.Errorf("invalid purchase id")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE purchases
SET status = 'failed', updated_at = NOW()
WHERE id = $1
  AND status = 'pending'
`, purchaseID)
	if err != nil {
		return fmt.Errorf("mark purchase failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPurchaseNotFound
	}

	return nil
}

func (r *PurchaseRepo) FindBySession(ctx context.Context, sessionID string) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return PurchaseRecord{}, fmt.Errorf("invalid session id")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
SELECT id, course_id, user_id, amount, status, session_id, created_at, updated_at
FROM purchases
WHERE session_id = $1
LIMIT 1
`, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("find purchase by session: %w", err)
	}

	return record, nil
}

func (r *PurchaseRepo) FindForUserCourse(ctx context.Context, userID, courseID int64) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || courseID <= 0 {
		return PurchaseRecord{}, fmt.Errorf("invalid purchase lookup payload")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
SELECT id, course_id, user_id, amount, status, session_id, created_at, updated_at
FROM purchases
WHERE user_id = $1
  AND course_id = $2
ORDER BY created_at DESC
LIMIT 1
`, userID, courseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("find purchase for user and course: %w", err)
	}

	return record, nil
}

// MarkCompleted flips a purchase to completed at most once. The guarded
// update makes webhook redelivery and the defensive detail-fetch path
// converge on the same row without racing: whoever loses the race falls
// through to the reselect and reports changed=false.
func (r *PurchaseRepo) MarkCompleted(ctx context.Context, purchaseID int64) (PurchaseRecord, bool, error) {
	if r.pool == nil {
		return PurchaseRecord{}, false, fmt.Errorf("postgres pool is nil")
	}
	if purchaseID <= 0 {
		return PurchaseRecord{}, false, fmt.Errorf("invalid purchase id")
	}

	updated, err := scanPurchase(r.pool.QueryRow(ctx, `
UPDATE purchases
SET status = 'completed', updated_at = NOW()
WHERE id = $1
  AND status <> 'completed'
RETURNING id, course_id, user_id, amount, status, session_id, created_at, updated_at
`, purchaseID))
	if err == nil {
		return updated, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return PurchaseRecord{}, false, fmt.Errorf("mark purchase completed: %w", err)
	}

	existing, err := r.findByID(ctx, purchaseID)
	if err != nil {
		return PurchaseRecord{}, false, err
	}
	return existing, false, nil
}

// ListSalesByCourses returns completed purchases for the given courses. An
// empty course set short-circuits without touching the database.
func (r *PurchaseRepo) ListSalesByCourses(ctx context.Context, courseIDs []int64) ([]SaleRecord, error) {
	if len(courseIDs) == 0 {
		return []SaleRecord{}, nil
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT p.id, p.course_id, p.user_id, p.amount, c.title, c.price, p.created_at, p.updated_at
FROM purchases p
JOIN courses c ON c.id = p.course_id
WHERE p.course_id = ANY($1)
  AND p.status = 'completed'
ORDER BY p.created_at DESC
`, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("list sales by courses: %w", err)
	}
	defer rows.Close()

	sales := []SaleRecord{}
	for rows.Next() {
		var sale SaleRecord
		if err := rows.Scan(
			&sale.PurchaseID,
			&sale.CourseID,
			&sale.UserID,
			&sale.Amount,
			&sale.CourseTitle,
			&sale.CoursePrice,
			&sale.CreatedAt,
			&sale.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan sale row: %w", err)
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale rows: %w", err)
	}

	return sales, nil
}

func (r *PurchaseRepo) findByID(ctx context.Context, purchaseID int64) (PurchaseRecord, error) {
	record, err := scanPurchase(r.pool.QueryRow(ctx, `
SELECT id, course_id, user_id, amount, status, session_id, created_at, updated_at
FROM purchases
WHERE id = $1
LIMIT 1
`, purchaseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("find purchase by id: %w", err)
	}

	return record, nil
}

func scanPurchase(row pgx.Row) (PurchaseRecord, error) {
	var record PurchaseRecord
	if err := row.Scan(
		&record.ID,
		&record.CourseID,
		&record.UserID,
		&record.Amount,
		&record.Status,
		&record.SessionID,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return PurchaseRecord{}, err
	}
	return record, nil
}
