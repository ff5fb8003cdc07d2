package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore reads product prices from the product_prices table.
type PostgresStore struct {
	db DB
}

// NewPostgresStore wraps a pool.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectPrices = `
SELECT product_id, net::text, gross::text, tax_id, weight::text
FROM product_prices
WHERE product_id = ANY($1)`

// Prices implements PriceLookup.
func (s *PostgresStore) Prices(ctx context.Context, productIDs []string) (map[string]ProductPrice, error) {
	ids := uniqueIDs(productIDs)
	if len(ids) == 0 {
		return map[string]ProductPrice{}, nil
	}
	rows, err := s.db.Query(ctx, selectPrices, ids)
	if err != nil {
		return nil, fmt.Errorf("query product prices: %w", err)
	}
	out := make(map[string]ProductPrice, len(ids))
	for rows.Next() {
		var (
			id, taxID         string
			net, gross, weight string
		)
		if err := rows.Scan(&id, &net, &gross, &taxID, &weight); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan product price: %w", err)
		}
		p, err := parsePrice(id, net, gross, taxID, weight)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out[id] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read product prices: %w", err)
	}
	if err := checkComplete(ids, out); err != nil {
		return nil, err
	}
	return out, nil
}

const upsertPrice = `
INSERT INTO product_prices (product_id, net, gross, tax_id, weight, updated_at)
VALUES ($1, $2::numeric, $3::numeric, $4, $5::numeric, now())
ON CONFLICT (product_id) DO UPDATE
SET net = EXCLUDED.net, gross = EXCLUDED.gross, tax_id = EXCLUDED.tax_id,
    weight = EXCLUDED.weight, updated_at = now()`

// Upsert writes prices, replacing existing rows.
func (s *PostgresStore) Upsert(ctx context.Context, prices ...ProductPrice) error {
	for _, p := range prices {
		if p.ProductID == "" {
			return fmt.Errorf("upsert product price: empty product id")
		}
		if _, err := s.db.Exec(ctx, upsertPrice, p.ProductID, p.Net.String(), p.Gross.String(), p.TaxID, p.Weight.String()); err != nil {
			return fmt.Errorf("upsert product price %s: %w", p.ProductID, err)
		}
	}
	return nil
}

func parsePrice(id, net, gross, taxID, weight string) (ProductPrice, error) {
	p := ProductPrice{ProductID: id, TaxID: taxID}
	var err error
	if p.Net, err = decimal.NewFromString(net); err != nil {
		return ProductPrice{}, fmt.Errorf("product %s net price: %w", id, err)
	}
	if p.Gross, err = decimal.NewFromString(gross); err != nil {
		return ProductPrice{}, fmt.Errorf("product %s gross price: %w", id, err)
	}
	if p.Weight, err = decimal.NewFromString(weight); err != nil {
		return ProductPrice{}, fmt.Errorf("product %s weight: %w", id, err)
	}
	return p, nil
}
