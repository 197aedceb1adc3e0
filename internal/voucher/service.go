package voucher

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-toystore/internal/money"
	"github.com/noah-isme/backend-toystore/internal/store"
)

// Querier captures the store methods required by the voucher service.
type Querier interface {
	GetVoucherByCode(ctx context.Context, code string) (store.Voucher, error)
	CountRedemptionsByCustomer(ctx context.Context, voucherID, customerID pgtype.UUID) (int64, error)
	ListActiveVouchers(ctx context.Context, now time.Time) ([]store.Voucher, error)
}

// Service evaluates vouchers against live data. All reads here are
// evaluation-time lookups; counter mutation lives in the ledger.
type Service struct {
	Q     Querier
	Cache *Cache
	Now   func() time.Time
}

const activeCacheKey = "vouchers:active"

// Lookup fetches the voucher for a code. A missing code returns nil without
// error so callers can build a rejection verdict.
func (s *Service) Lookup(ctx context.Context, code string) (*Voucher, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("voucher service not configured")
	}
	row, err := s.Q.GetVoucherByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	v := FromRow(row)
	return &v, nil
}

// Preview runs the read-only validator for the given order subtotal and
// returns the verdict. Business-rule rejections come back as verdicts, not
// errors; only infrastructure failures error out.
func (s *Service) Preview(ctx context.Context, code string, customerID *uuid.UUID, subtotal money.Money) (Verdict, error) {
	v, err := s.Lookup(ctx, code)
	if err != nil {
		return Verdict{}, err
	}
	var perUserUsed int64
	if v != nil && v.PerUserLimit != nil && customerID != nil {
		perUserUsed, err = s.Q.CountRedemptionsByCustomer(ctx, PgUUID(v.ID), PgUUID(*customerID))
		if err != nil {
			return Verdict{}, err
		}
	}
	return Evaluate(v, s.now(), subtotal, perUserUsed), nil
}

// Active lists currently redeemable vouchers, served from cache when fresh.
func (s *Service) Active(ctx context.Context) ([]View, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("voucher service not configured")
	}
	var cached []View
	if ok, err := s.Cache.GetJSON(ctx, activeCacheKey, &cached); err == nil && ok {
		return cached, nil
	}
	rows, err := s.Q.ListActiveVouchers(ctx, s.now())
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(rows))
	for _, row := range rows {
		out = append(out, ViewOf(FromRow(row)))
	}
	_ = s.Cache.SetJSON(ctx, activeCacheKey, out)
	return out, nil
}

// InvalidateActive drops the cached active listing after an admin mutation.
func (s *Service) InvalidateActive(ctx context.Context) {
	s.Cache.Delete(ctx, activeCacheKey)
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
