package promo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var (
	ErrCodeNotFound = errors.New("promo code not found")
	// ErrUsageCapTaken reports a failed cap re-check on the usage counter.
	// The counter is bumped inside the booking's promo-apply transaction and
	// never decremented on removal.
	ErrUsageCapTaken = errors.New("promo code usage cap reached")
)

const promoColumns = `id, code, discount_type, discount_value, min_order_amount, max_uses, current_uses, valid_from, valid_to, is_active, created_at`

type Repository interface {
	GetByCode(ctx context.Context, code string) (*PromoCode, error)
	Create(ctx context.Context, p *PromoCode) (*PromoCode, error)
	List(ctx context.Context) ([]PromoCode, error)
	Deactivate(ctx context.Context, id int) error
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByCode(ctx context.Context, code string) (*PromoCode, error) {
	var p PromoCode
	err := r.db.GetContext(ctx, &p,
		`SELECT `+promoColumns+` FROM promo_codes WHERE LOWER(code) = LOWER($1)`,
		code,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) Create(ctx context.Context, p *PromoCode) (*PromoCode, error) {
	created := &PromoCode{}
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO promo_codes (code, discount_type, discount_value, min_order_amount, max_uses, valid_from, valid_to, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+promoColumns,
		p.Code, p.DiscountType, p.DiscountValue, p.MinOrderAmount, p.MaxUses, p.ValidFrom, p.ValidTo, p.IsActive,
	).StructScan(created)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *repository) List(ctx context.Context) ([]PromoCode, error) {
	codes := []PromoCode{}
	err := r.db.SelectContext(ctx, &codes,
		`SELECT `+promoColumns+` FROM promo_codes ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *repository) Deactivate(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE promo_codes SET is_active = FALSE WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCodeNotFound
	}
	return nil
}
