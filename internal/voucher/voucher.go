// Package voucher implements discount voucher evaluation and redemption.
package voucher

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-toystore/internal/money"
)

// Kind discriminates how the discount value is interpreted.
type Kind string

// Voucher discount kinds.
const (
	KindPercent     Kind = "percent"
	KindFixedAmount Kind = "fixed_amount"
)

// Status is the admin-controlled lifecycle state. The date window remains
// authoritative at evaluation time even when the stored status is stale.
type Status string

// Voucher lifecycle states.
const (
	StatusActive  Status = "active"
	StatusPaused  Status = "paused"
	StatusExpired Status = "expired"
)

// Voucher captures one promotional rule. Codes are stored upper-cased and
// matched case-insensitively.
type Voucher struct {
	ID            uuid.UUID
	Code          string
	Kind          Kind
	Value         decimal.Decimal
	MaxDiscount   *money.Money
	MinOrderValue money.Money
	StartsAt      time.Time
	EndsAt        time.Time
	TotalQuota    *int32
	RedeemedCount int32
	PerUserLimit  *int32
	Status        Status
	Enabled       bool
}

// Verdict is the validator's read-only eligibility decision for one order
// context. A rejection carries a human-readable reason and leaves Applied
// false; it is never surfaced as an error.
type Verdict struct {
	Code     string      `json:"code"`
	Applied  bool        `json:"applied"`
	Discount money.Money `json:"discount"`
	Reason   string      `json:"reason,omitempty"`
}

// RedemptionRecord is one durably committed quota consumption, tied 1:1 to a
// persisted order.
type RedemptionRecord struct {
	ID         uuid.UUID   `json:"id"`
	VoucherID  uuid.UUID   `json:"voucherId"`
	OrderID    uuid.UUID   `json:"orderId"`
	CustomerID *uuid.UUID  `json:"customerId,omitempty"`
	Discount   money.Money `json:"discount"`
	RedeemedAt time.Time   `json:"redeemedAt"`
}
