package voucher

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-toystore/internal/money"
	"github.com/noah-isme/backend-toystore/internal/store"
)

type stubQuerier struct {
	byCode      map[string]store.Voucher
	active      []store.Voucher
	counts      map[uuid.UUID]int64
	countCalls  int
	activeCalls int
}

func (s *stubQuerier) GetVoucherByCode(_ context.Context, code string) (store.Voucher, error) {
	if row, ok := s.byCode[code]; ok {
		return row, nil
	}
	return store.Voucher{}, pgx.ErrNoRows
}

func (s *stubQuerier) CountRedemptionsByCustomer(_ context.Context, _, customerID pgtype.UUID) (int64, error) {
	s.countCalls++
	return s.counts[uuid.UUID(customerID.Bytes)], nil
}

func (s *stubQuerier) ListActiveVouchers(_ context.Context, _ time.Time) ([]store.Voucher, error) {
	s.activeCalls++
	return s.active, nil
}

func storedVoucher(code string) store.Voucher {
	return store.Voucher{
		ID:            pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Code:          code,
		Kind:          string(KindPercent),
		Value:         decimal.NewFromInt(20),
		MinOrderValue: decimal.NewFromInt(200000),
		StartsAt:      pgtype.Timestamptz{Time: evalNow.AddDate(0, 0, -7), Valid: true},
		EndsAt:        pgtype.Timestamptz{Time: evalNow.AddDate(0, 0, 7), Valid: true},
		Status:        string(StatusActive),
		Enabled:       true,
	}
}

func fixedNow() time.Time { return evalNow }

func TestLookupMissingCodeReturnsNil(t *testing.T) {
	svc := &Service{Q: &stubQuerier{byCode: map[string]store.Voucher{}}, Now: fixedNow}
	v, err := svc.Lookup(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if v != nil {
		t.Fatalf("expected nil voucher, got %+v", v)
	}
}

func TestPreviewAppliesKnownVoucher(t *testing.T) {
	q := &stubQuerier{byCode: map[string]store.Voucher{"TOY20": storedVoucher("TOY20")}}
	svc := &Service{Q: q, Now: fixedNow}

	verdict, err := svc.Preview(context.Background(), "TOY20", nil, money.FromUnits(500000))
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !verdict.Applied {
		t.Fatalf("rejected: %q", verdict.Reason)
	}
	if !verdict.Discount.Equal(money.FromUnits(100000)) {
		t.Fatalf("discount = %s", verdict.Discount)
	}
}

func TestPreviewUnknownCodeIsVerdictNotError(t *testing.T) {
	svc := &Service{Q: &stubQuerier{byCode: map[string]store.Voucher{}}, Now: fixedNow}
	verdict, err := svc.Preview(context.Background(), "NOPE", nil, money.FromUnits(500000))
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if verdict.Applied || verdict.Reason != ReasonNotFound {
		t.Fatalf("verdict = %+v", verdict)
	}
}

func TestPreviewCountsPerUserOnlyWhenNeeded(t *testing.T) {
	row := storedVoucher("TOY20")
	q := &stubQuerier{byCode: map[string]store.Voucher{"TOY20": row}}
	svc := &Service{Q: q, Now: fixedNow}
	customer := uuid.New()

	// No per-user limit configured: the count query is skipped entirely.
	if _, err := svc.Preview(context.Background(), "TOY20", &customer, money.FromUnits(500000)); err != nil {
		t.Fatalf("preview: %v", err)
	}
	if q.countCalls != 0 {
		t.Fatalf("count calls = %d, want 0", q.countCalls)
	}

	row.PerUserLimit = pgtype.Int4{Int32: 1, Valid: true}
	q.byCode["TOY20"] = row
	q.counts = map[uuid.UUID]int64{customer: 1}
	verdict, err := svc.Preview(context.Background(), "TOY20", &customer, money.FromUnits(500000))
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if q.countCalls != 1 {
		t.Fatalf("count calls = %d, want 1", q.countCalls)
	}
	if verdict.Reason != ReasonPerUserLimit {
		t.Fatalf("reason = %q", verdict.Reason)
	}
}

func TestActiveUsesCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	q := &stubQuerier{active: []store.Voucher{storedVoucher("TOY20")}}
	svc := &Service{Q: q, Cache: NewCache(client, time.Minute), Now: fixedNow}

	first, err := svc.Active(context.Background())
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	second, err := svc.Active(context.Background())
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if q.activeCalls != 1 {
		t.Fatalf("store hit %d times, want 1", q.activeCalls)
	}
	if len(first) != 1 || len(second) != 1 || first[0].Code != second[0].Code {
		t.Fatalf("listings differ: %+v vs %+v", first, second)
	}

	svc.InvalidateActive(context.Background())
	if _, err := svc.Active(context.Background()); err != nil {
		t.Fatalf("active: %v", err)
	}
	if q.activeCalls != 2 {
		t.Fatalf("store hit %d times after invalidation, want 2", q.activeCalls)
	}
}

func TestPreviewPropagatesStoreError(t *testing.T) {
	svc := &Service{Q: failingQuerier{}, Now: fixedNow}
	if _, err := svc.Preview(context.Background(), "TOY20", nil, money.FromUnits(500000)); err == nil {
		t.Fatal("expected error")
	}
}

type failingQuerier struct{}

func (failingQuerier) GetVoucherByCode(context.Context, string) (store.Voucher, error) {
	return store.Voucher{}, errors.New("connection refused")
}

func (failingQuerier) CountRedemptionsByCustomer(context.Context, pgtype.UUID, pgtype.UUID) (int64, error) {
	return 0, errors.New("connection refused")
}

func (failingQuerier) ListActiveVouchers(context.Context, time.Time) ([]store.Voucher, error) {
	return nil, errors.New("connection refused")
}
