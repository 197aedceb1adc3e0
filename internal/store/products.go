package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Product is the products table row.
type Product struct {
	ID          pgtype.UUID
	Name        string
	Slug        string
	UnitPrice   decimal.Decimal
	WeightGrams int32
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

const productColumns = `id, name, slug, unit_price, weight_grams, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.UnitPrice, &p.WeightGrams, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// CreateProductParams carries the insertable product fields.
type CreateProductParams struct {
	Name        string
	Slug        string
	UnitPrice   decimal.Decimal
	WeightGrams int32
}

// CreateProduct inserts a product.
func (s *Store) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO products (name, slug, unit_price, weight_grams)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name,
			unit_price = EXCLUDED.unit_price, weight_grams = EXCLUDED.weight_grams,
			updated_at = now()
		RETURNING `+productColumns,
		arg.Name, arg.Slug, arg.UnitPrice, arg.WeightGrams,
	)
	return scanProduct(row)
}

// ListProducts returns the catalogue page.
func (s *Store) ListProducts(ctx context.Context, limit, offset int32) ([]Product, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+productColumns+` FROM products
		ORDER BY name ASC
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProductsByIDs batch-fetches products so order creation prices lines from
// authoritative current unit prices.
func (s *Store) GetProductsByIDs(ctx context.Context, ids []pgtype.UUID) ([]Product, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+productColumns+` FROM products WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
