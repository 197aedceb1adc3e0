// Package shipping quotes delivery fees for an order.
package shipping

import (
	"context"

	"github.com/noah-isme/backend-toystore/internal/money"
)

// Quote is the fee the pricing pipeline charges as its shipping stage.
type Quote struct {
	Fee    money.Money
	Method string
}

// Quoter produces a shipping quote for an order context. The pricing pipeline
// treats the result as an opaque fee.
type Quoter interface {
	Quote(ctx context.Context, totalWeightGrams int64) (Quote, error)
}

// FlatQuoter charges a single configured fee regardless of weight.
type FlatQuoter struct {
	Fee    money.Money
	Method string
}

// Quote implements Quoter.
func (q FlatQuoter) Quote(_ context.Context, _ int64) (Quote, error) {
	return Quote{Fee: q.Fee, Method: q.Method}, nil
}
