// Package pricing computes order totals through an ordered stage pipeline.
package pricing

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-toystore/internal/money"
)

var (
	// ErrNoLineItems is returned when the pipeline runs without any line item.
	ErrNoLineItems = errors.New("pricing: at least one line item is required")
	// ErrInvalidQty is returned for line items with a quantity below one.
	ErrInvalidQty = errors.New("pricing: quantity must be at least 1")
	// ErrNegativePrice is returned for line items carrying a negative unit price.
	ErrNegativePrice = errors.New("pricing: unit price must not be negative")
	// ErrInvalidRate is returned when the VAT rate falls outside [0, 1].
	ErrInvalidRate = errors.New("pricing: vat rate must be within [0, 1]")
	// ErrNegativeFee is returned for a negative shipping fee.
	ErrNegativeFee = errors.New("pricing: shipping fee must not be negative")
)

// LineItem is one cart line priced by the pipeline. Immutable once passed in.
type LineItem struct {
	ProductID uuid.UUID
	Name      string
	UnitPrice money.Money
	Qty       int
}

// LineTotal returns unit price times quantity.
func (li LineItem) LineTotal() money.Money {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Qty)))
}

// Context carries pipeline state between stages. ProductSubtotal is fixed by
// the subtotal stage and carried untouched through every later stage:
// percentage vouchers apply to the pre-VAT product subtotal, never to the
// accumulated running total.
type Context struct {
	ProductSubtotal money.Money
	Running         money.Money
	Breakdown       Breakdown
}

// Stage adds one charge or discount to the context and records its breakdown
// line. Stages return errors only for contract violations, never for
// business-rule rejections.
type Stage func(Context) (Context, error)

// VatLine records the VAT contribution.
type VatLine struct {
	Rate   decimal.Decimal `json:"rate"`
	Amount money.Money     `json:"amount"`
}

// ShippingLine records the shipping charge.
type ShippingLine struct {
	Fee    money.Money `json:"fee"`
	Method string      `json:"method"`
}

// VoucherLine records the voucher outcome, applied or not.
type VoucherLine struct {
	Code     string      `json:"code"`
	Discount money.Money `json:"discountAmount"`
	Applied  bool        `json:"applied"`
	Message  string      `json:"message,omitempty"`
}

// Breakdown is the per-stage contribution list plus the payable total. It is
// built fresh per pricing request and never mutated after being returned.
type Breakdown struct {
	Subtotal   money.Money   `json:"subtotal"`
	Vat        *VatLine      `json:"vat,omitempty"`
	Shipping   *ShippingLine `json:"shipping,omitempty"`
	Voucher    *VoucherLine  `json:"voucher,omitempty"`
	GrandTotal money.Money   `json:"grandTotal"`
}

// Pipeline composes stages in a fixed order: subtotal, VAT, shipping, voucher.
type Pipeline struct {
	Stages []Stage
	// Scale is the number of fractional digits kept when the breakdown is
	// finalised. Intermediate stage values retain full precision.
	Scale int32
}

// Run executes the stages and finalises the breakdown. The grand total is
// floored at zero and all recorded amounts are rounded half-up at Scale.
func (p Pipeline) Run() (Breakdown, error) {
	ctx := Context{
		ProductSubtotal: money.Zero(),
		Running:         money.Zero(),
	}
	var err error
	for _, stage := range p.Stages {
		ctx, err = stage(ctx)
		if err != nil {
			return Breakdown{}, err
		}
	}
	b := ctx.Breakdown
	b.Subtotal = money.RoundHalfUp(b.Subtotal, p.Scale)
	if b.Vat != nil {
		b.Vat.Amount = money.RoundHalfUp(b.Vat.Amount, p.Scale)
	}
	if b.Shipping != nil {
		b.Shipping.Fee = money.RoundHalfUp(b.Shipping.Fee, p.Scale)
	}
	if b.Voucher != nil {
		b.Voucher.Discount = money.RoundHalfUp(b.Voucher.Discount, p.Scale)
	}
	b.GrandTotal = money.RoundHalfUp(money.Max(ctx.Running, money.Zero()), p.Scale)
	return b, nil
}
