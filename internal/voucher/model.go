package voucher

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-toystore/internal/store"
)

// FromRow converts a stored voucher row into the domain shape used for
// evaluation.
func FromRow(row store.Voucher) Voucher {
	v := Voucher{
		ID:            uuid.UUID(row.ID.Bytes),
		Code:          row.Code,
		Kind:          Kind(row.Kind),
		Value:         row.Value,
		MinOrderValue: row.MinOrderValue,
		RedeemedCount: row.RedeemedCount,
		Status:        Status(row.Status),
		Enabled:       row.Enabled,
	}
	if row.MaxDiscount.Valid {
		capped := row.MaxDiscount.Decimal
		v.MaxDiscount = &capped
	}
	if row.StartsAt.Valid {
		v.StartsAt = row.StartsAt.Time
	}
	if row.EndsAt.Valid {
		v.EndsAt = row.EndsAt.Time
	}
	if row.TotalQuota.Valid {
		quota := row.TotalQuota.Int32
		v.TotalQuota = &quota
	}
	if row.PerUserLimit.Valid {
		limit := row.PerUserLimit.Int32
		v.PerUserLimit = &limit
	}
	return v
}

// View is the JSON representation exposed by the API.
type View struct {
	ID            uuid.UUID  `json:"id"`
	Code          string     `json:"code"`
	Kind          Kind       `json:"kind"`
	Value         string     `json:"value"`
	MaxDiscount   *string    `json:"maxDiscount,omitempty"`
	MinOrderValue string     `json:"minOrderValue"`
	StartsAt      time.Time  `json:"startsAt"`
	EndsAt        time.Time  `json:"endsAt"`
	TotalQuota    *int32     `json:"totalQuota,omitempty"`
	RedeemedCount int32      `json:"redeemedCount"`
	PerUserLimit  *int32     `json:"perUserLimit,omitempty"`
	Status        Status     `json:"status"`
	Enabled       bool       `json:"enabled"`
}

// ViewOf renders a voucher for API responses.
func ViewOf(v Voucher) View {
	out := View{
		ID:            v.ID,
		Code:          v.Code,
		Kind:          v.Kind,
		Value:         v.Value.String(),
		MinOrderValue: v.MinOrderValue.String(),
		StartsAt:      v.StartsAt,
		EndsAt:        v.EndsAt,
		TotalQuota:    v.TotalQuota,
		RedeemedCount: v.RedeemedCount,
		PerUserLimit:  v.PerUserLimit,
		Status:        v.Status,
		Enabled:       v.Enabled,
	}
	if v.MaxDiscount != nil {
		capped := v.MaxDiscount.String()
		out.MaxDiscount = &capped
	}
	return out
}

// PgUUID converts a uuid.UUID into its pgtype form.
func PgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
