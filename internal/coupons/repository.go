package coupons

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const uniqueViolation = "23505"

const couponColumns = `
	id, code, description, discount_type, discount_value, min_order_amount,
	max_discount, starts_at, ends_at, usage_limit, used_count, is_active,
	created_at, updated_at`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func scanCoupon(s interface{ Scan(...any) error }) (domain.Coupon, error) {
	var (
		c           domain.Coupon
		description sql.NullString
		startsAt    sql.NullTime
		endsAt      sql.NullTime
		usageLimit  sql.NullInt64
	)
	err := s.Scan(
		&c.ID, &c.Code, &description, &c.DiscountType, &c.DiscountValue, &c.MinOrderAmount,
		&c.MaxDiscount, &startsAt, &endsAt, &usageLimit, &c.UsedCount, &c.IsActive,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return c, err
	}
	if description.Valid {
		c.Description = &description.String
	}
	if startsAt.Valid {
		c.StartsAt = &startsAt.Time
	}
	if endsAt.Valid {
		c.EndsAt = &endsAt.Time
	}
	if usageLimit.Valid {
		limit := int(usageLimit.Int64)
		c.UsageLimit = &limit
	}
	return c, nil
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]domain.Coupon, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	coupons := []domain.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, c)
	}

	return coupons, rows.Err()
}

// FindByCode expects an already normalized code. Archived coupons never match.
func (r *Repository) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	c, err := scanCoupon(r.db.QueryRowContext(ctx, `
		SELECT `+couponColumns+`
		FROM coupons
		WHERE code = $1 AND archived_at IS NULL
	`, code))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repository) ListActive(ctx context.Context) ([]domain.Coupon, error) {
	return r.query(ctx, `
		SELECT `+couponColumns+`
		FROM coupons
		WHERE is_active AND archived_at IS NULL
		ORDER BY created_at DESC
	`)
}

func (r *Repository) List(ctx context.Context) ([]domain.Coupon, error) {
	return r.query(ctx, `
		SELECT `+couponColumns+`
		FROM coupons
		WHERE archived_at IS NULL
		ORDER BY created_at DESC
	`)
}

// Upsert inserts c, or updates it when c.ID names a live coupon. used_count
// is never written here. It returns nil, nil when c.ID names an archived or
// unknown coupon.
func (r *Repository) Upsert(ctx context.Context, c *domain.Coupon) (*domain.Coupon, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	saved, err := scanCoupon(r.db.QueryRowContext(ctx, `
		INSERT INTO coupons (
			id, code, description, discount_type, discount_value, min_order_amount,
			max_discount, starts_at, ends_at, usage_limit, is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code,
			description = EXCLUDED.description,
			discount_type = EXCLUDED.discount_type,
			discount_value = EXCLUDED.discount_value,
			min_order_amount = EXCLUDED.min_order_amount,
			max_discount = EXCLUDED.max_discount,
			starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at,
			usage_limit = EXCLUDED.usage_limit,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
		WHERE coupons.archived_at IS NULL
		RETURNING `+couponColumns,
		c.ID, c.Code, c.Description, c.DiscountType, c.DiscountValue, c.MinOrderAmount,
		c.MaxDiscount, c.StartsAt, c.EndsAt, c.UsageLimit, c.IsActive,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, domain.Invalid("Coupon code %s already exists", c.Code)
		}
		return nil, err
	}
	return &saved, nil
}

// Archive retires a coupon. Orders keep their coupon_code snapshot; the code
// stops resolving and becomes free for reuse.
func (r *Repository) Archive(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE coupons SET archived_at = NOW(), is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND archived_at IS NULL
	`, id)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

// IncrementUsage bumps used_count only if it still equals observed and the
// limit allows it. Zero rows affected means another checkout got there first
// and is reported as domain.ErrConflict.
func (r *Repository) IncrementUsage(ctx context.Context, id string, observed int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE coupons SET used_count = used_count + 1, updated_at = NOW()
		WHERE id = $1
		  AND used_count = $2
		  AND (usage_limit IS NULL OR used_count < usage_limit)
	`, id, observed)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}
