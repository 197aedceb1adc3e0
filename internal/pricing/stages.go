package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-toystore/internal/money"
)

// Subtotal sums the line items and fixes the product subtotal for the rest of
// the pipeline.
func Subtotal(items []LineItem) Stage {
	return func(ctx Context) (Context, error) {
		if len(items) == 0 {
			return ctx, ErrNoLineItems
		}
		total := money.Zero()
		for _, it := range items {
			if it.Qty < 1 {
				return ctx, fmt.Errorf("%w: product %s", ErrInvalidQty, it.ProductID)
			}
			if it.UnitPrice.IsNegative() {
				return ctx, fmt.Errorf("%w: product %s", ErrNegativePrice, it.ProductID)
			}
			total = total.Add(it.LineTotal())
		}
		ctx.ProductSubtotal = total
		ctx.Running = total
		ctx.Breakdown.Subtotal = total
		return ctx, nil
	}
}

// VAT charges the flat tax rate against the product subtotal. The rate is a
// fraction in [0, 1].
func VAT(rate decimal.Decimal) Stage {
	return func(ctx Context) (Context, error) {
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return ctx, ErrInvalidRate
		}
		amount := ctx.ProductSubtotal.Mul(rate)
		ctx.Running = ctx.Running.Add(amount)
		ctx.Breakdown.Vat = &VatLine{Rate: rate, Amount: amount}
		return ctx, nil
	}
}

// Shipping adds the externally supplied fee. The pipeline treats the fee as an
// opaque amount; how it was quoted is the shipping collaborator's business.
func Shipping(fee money.Money, method string) Stage {
	return func(ctx Context) (Context, error) {
		if fee.IsNegative() {
			return ctx, ErrNegativeFee
		}
		ctx.Running = ctx.Running.Add(fee)
		ctx.Breakdown.Shipping = &ShippingLine{Fee: fee, Method: method}
		return ctx, nil
	}
}

// Voucher applies an eligibility verdict computed upstream by the validator.
// A rejected voucher passes the running total through unchanged and records
// the rejection message; an applied discount is clamped to the running total
// so the payable amount can never go negative.
func Voucher(code string, applied bool, discount money.Money, reason string) Stage {
	return func(ctx Context) (Context, error) {
		line := &VoucherLine{Code: code, Applied: applied, Message: reason, Discount: money.Zero()}
		if applied {
			granted := money.Min(discount, ctx.Running)
			granted = money.Max(granted, money.Zero())
			ctx.Running = ctx.Running.Sub(granted)
			line.Discount = granted
			line.Message = ""
		}
		ctx.Breakdown.Voucher = line
		return ctx, nil
	}
}
