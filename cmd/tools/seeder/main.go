// Command seeder loads a demo catalogue and a couple of vouchers so the API
// is usable immediately after migrations.
package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-toystore/internal/config"
	"github.com/noah-isme/backend-toystore/internal/obs"
	"github.com/noah-isme/backend-toystore/internal/store"
	"github.com/noah-isme/backend-toystore/internal/voucher"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger("console", "info")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	pool, err := store.NewPool(ctx, store.PoolConfig{
		DatabaseURL:     cfg.DatabaseURL,
		ApplicationName: "toystore-seeder",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	st := store.New(pool)

	products := []store.CreateProductParams{
		{Name: "Wooden Train Set", Slug: "wooden-train-set", UnitPrice: decimal.NewFromInt(250000), WeightGrams: 1200},
		{Name: "Plush Dinosaur", Slug: "plush-dinosaur", UnitPrice: decimal.NewFromInt(120000), WeightGrams: 400},
		{Name: "Building Blocks 200pc", Slug: "building-blocks-200pc", UnitPrice: decimal.NewFromInt(340000), WeightGrams: 1800},
		{Name: "Toy Robot", Slug: "toy-robot", UnitPrice: decimal.NewFromInt(480000), WeightGrams: 650},
		{Name: "Puzzle Map World", Slug: "puzzle-map-world", UnitPrice: decimal.NewFromInt(90000), WeightGrams: 300},
	}
	for _, p := range products {
		if _, err := st.CreateProduct(ctx, p); err != nil {
			logger.Fatal().Err(err).Str("slug", p.Slug).Msg("seed product")
		}
	}

	now := time.Now()
	vouchers := []store.CreateVoucherParams{
		{
			Code:          "TOY20",
			Kind:          string(voucher.KindPercent),
			Value:         decimal.NewFromInt(20),
			MaxDiscount:   decimal.NullDecimal{Decimal: decimal.NewFromInt(50000), Valid: true},
			MinOrderValue: decimal.NewFromInt(200000),
			StartsAt:      now.AddDate(0, 0, -1),
			EndsAt:        now.AddDate(0, 1, 0),
			TotalQuota:    pgtype.Int4{Int32: 100, Valid: true},
			PerUserLimit:  pgtype.Int4{Int32: 1, Valid: true},
			Status:        string(voucher.StatusActive),
		},
		{
			Code:          "WELCOME50K",
			Kind:          string(voucher.KindFixedAmount),
			Value:         decimal.NewFromInt(50000),
			MinOrderValue: decimal.NewFromInt(150000),
			StartsAt:      now.AddDate(0, 0, -1),
			EndsAt:        now.AddDate(0, 3, 0),
			Status:        string(voucher.StatusActive),
		},
	}
	for _, v := range vouchers {
		if _, err := st.CreateVoucher(ctx, v); err != nil {
			logger.Error().Err(err).Str("code", v.Code).Msg("seed voucher (may already exist)")
		}
	}

	logger.Info().Int("products", len(products)).Int("vouchers", len(vouchers)).Msg("seed complete")
}
