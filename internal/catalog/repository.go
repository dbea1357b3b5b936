package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrPackageNotFound = errors.New("package not found")

type Repository interface {
	GetByPackageID(ctx context.Context, packageID string) (*Package, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByPackageID(ctx context.Context, packageID string) (*Package, error) {
	query := `
		SELECT package_id, name, vat, price_option, fixed_price, price_tiers, date_from, date_to, status
		FROM packages
		WHERE package_id = $1 AND status = 'active'
	`

	var pkg Package
	err := r.db.GetContext(ctx, &pkg, query, packageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPackageNotFound
	}
	if err != nil {
		return nil, err
	}

	return &pkg, nil
}
