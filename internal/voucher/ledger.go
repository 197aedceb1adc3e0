package voucher

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-toystore/internal/money"
	"github.com/noah-isme/backend-toystore/internal/store"
)

// ErrQuotaExceeded is returned when the atomic increment finds the quota
// already consumed. A passing earlier validation does not prevent this: the
// gap between time-of-check and time-of-use is expected under concurrent
// checkouts.
var ErrQuotaExceeded = errors.New("voucher quota exceeded")

// LedgerStore captures the store methods the ledger mutates.
type LedgerStore interface {
	IncrementRedeemedCount(ctx context.Context, id pgtype.UUID) (int64, error)
	InsertRedemption(ctx context.Context, arg store.InsertRedemptionParams) (store.Redemption, error)
}

// TryRedeem consumes one unit of the voucher's quota and records the
// redemption. The quota check and the increment are a single conditional
// UPDATE, so two checkouts racing for the last unit cannot both succeed.
//
// The caller must pass a transaction-bound store: the increment has to commit
// or roll back together with the order row it belongs to. There is no
// compensating action.
func TryRedeem(ctx context.Context, s LedgerStore, voucherID, orderID uuid.UUID, customerID *uuid.UUID, discount money.Money) (RedemptionRecord, error) {
	affected, err := s.IncrementRedeemedCount(ctx, PgUUID(voucherID))
	if err != nil {
		return RedemptionRecord{}, err
	}
	if affected == 0 {
		return RedemptionRecord{}, ErrQuotaExceeded
	}
	params := store.InsertRedemptionParams{
		VoucherID: PgUUID(voucherID),
		OrderID:   PgUUID(orderID),
		Discount:  discount,
	}
	if customerID != nil {
		params.CustomerID = PgUUID(*customerID)
	}
	row, err := s.InsertRedemption(ctx, params)
	if err != nil {
		return RedemptionRecord{}, err
	}
	rec := RedemptionRecord{
		ID:        uuid.UUID(row.ID.Bytes),
		VoucherID: uuid.UUID(row.VoucherID.Bytes),
		OrderID:   uuid.UUID(row.OrderID.Bytes),
		Discount:  row.Discount,
	}
	if row.CustomerID.Valid {
		cid := uuid.UUID(row.CustomerID.Bytes)
		rec.CustomerID = &cid
	}
	if row.RedeemedAt.Valid {
		rec.RedeemedAt = row.RedeemedAt.Time
	}
	return rec, nil
}
