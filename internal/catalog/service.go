// Package catalog serves the product listing.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-toystore/internal/store"
)

// Querier captures the store methods the catalogue reads.
type Querier interface {
	ListProducts(ctx context.Context, limit, offset int32) ([]store.Product, error)
}

// Service orchestrates product queries and caching.
type Service struct {
	Q     Querier
	Cache *Cache
}

// ProductView is one product as rendered to clients.
type ProductView struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	WeightGrams int32           `json:"weightGrams"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// List returns one catalogue page, served from cache when fresh.
func (s *Service) List(ctx context.Context, limit, offset int32) ([]ProductView, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("catalog service not configured")
	}
	key := fmt.Sprintf("products:%d:%d", limit, offset)
	var cached []ProductView
	if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	rows, err := s.Q.ListProducts(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]ProductView, 0, len(rows))
	for _, row := range rows {
		view := ProductView{
			ID:          uuid.UUID(row.ID.Bytes),
			Name:        row.Name,
			Slug:        row.Slug,
			UnitPrice:   row.UnitPrice,
			WeightGrams: row.WeightGrams,
		}
		if row.UpdatedAt.Valid {
			view.UpdatedAt = row.UpdatedAt.Time
		}
		out = append(out, view)
	}
	_ = s.Cache.SetJSON(ctx, key, out)
	return out, nil
}
