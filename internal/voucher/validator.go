package voucher

import (
	"fmt"
	"time"

	"github.com/noah-isme/backend-toystore/internal/money"
)

// Rejection reasons surfaced to the checkout UI.
const (
	ReasonNotFound       = "voucher code not found"
	ReasonPaused         = "voucher is paused"
	ReasonExpired        = "voucher has expired"
	ReasonNotYetValid    = "voucher is not yet valid"
	ReasonQuotaExhausted = "voucher quota exhausted"
	ReasonPerUserLimit   = "personal redemption limit reached"
)

// Evaluate checks a voucher's applicability against the order context without
// mutating any state. Checks run in a fixed order and the first failing one
// wins. perUserUsed is the customer's committed redemption count for this
// voucher; pass zero for anonymous checkouts.
//
// Evaluate never touches counters: consuming quota is the ledger's job, after
// the order is durably committed.
func Evaluate(v *Voucher, now time.Time, orderSubtotal money.Money, perUserUsed int64) Verdict {
	if v == nil || !v.Enabled {
		return rejected("", ReasonNotFound)
	}
	switch v.Status {
	case StatusPaused:
		return rejected(v.Code, ReasonPaused)
	case StatusExpired:
		return rejected(v.Code, ReasonExpired)
	}
	// The date window overrides a stale active status.
	if now.Before(v.StartsAt) {
		return rejected(v.Code, ReasonNotYetValid)
	}
	if now.After(v.EndsAt) {
		return rejected(v.Code, ReasonExpired)
	}
	if v.TotalQuota != nil && v.RedeemedCount >= *v.TotalQuota {
		return rejected(v.Code, ReasonQuotaExhausted)
	}
	if v.PerUserLimit != nil && perUserUsed >= int64(*v.PerUserLimit) {
		return rejected(v.Code, ReasonPerUserLimit)
	}
	if orderSubtotal.LessThan(v.MinOrderValue) {
		return rejected(v.Code, fmt.Sprintf("order subtotal below minimum of %s", v.MinOrderValue.String()))
	}
	return Verdict{Code: v.Code, Applied: true, Discount: computeDiscount(v, orderSubtotal)}
}

// computeDiscount derives the discount from the voucher rule. Percent vouchers
// apply to the pre-VAT product subtotal and honour the optional cap; the final
// clamp against the running total belongs to the pricing stage.
func computeDiscount(v *Voucher, subtotal money.Money) money.Money {
	if v.Kind == KindPercent {
		discount := money.Percent(subtotal, v.Value)
		if v.MaxDiscount != nil {
			discount = money.Min(discount, *v.MaxDiscount)
		}
		return discount
	}
	return v.Value
}

func rejected(code, reason string) Verdict {
	return Verdict{Code: code, Discount: money.Zero(), Reason: reason}
}
