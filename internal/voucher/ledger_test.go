package voucher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-toystore/internal/money"
	"github.com/noah-isme/backend-toystore/internal/store"
)

type stubLedger struct {
	affected   int64
	incErr     error
	insertErr  error
	increments int
	inserted   []store.InsertRedemptionParams
}

func (s *stubLedger) IncrementRedeemedCount(_ context.Context, _ pgtype.UUID) (int64, error) {
	s.increments++
	return s.affected, s.incErr
}

func (s *stubLedger) InsertRedemption(_ context.Context, arg store.InsertRedemptionParams) (store.Redemption, error) {
	if s.insertErr != nil {
		return store.Redemption{}, s.insertErr
	}
	s.inserted = append(s.inserted, arg)
	return store.Redemption{
		ID:         pgtype.UUID{Bytes: uuid.New(), Valid: true},
		VoucherID:  arg.VoucherID,
		OrderID:    arg.OrderID,
		CustomerID: arg.CustomerID,
		Discount:   arg.Discount,
		RedeemedAt: pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}, nil
}

func TestTryRedeemRecordsRedemption(t *testing.T) {
	ledger := &stubLedger{affected: 1}
	voucherID, orderID := uuid.New(), uuid.New()
	customerID := uuid.New()

	rec, err := TryRedeem(context.Background(), ledger, voucherID, orderID, &customerID, money.FromUnits(50000))
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if ledger.increments != 1 {
		t.Fatalf("increments = %d", ledger.increments)
	}
	if rec.VoucherID != voucherID || rec.OrderID != orderID {
		t.Fatalf("record = %+v", rec)
	}
	if rec.CustomerID == nil || *rec.CustomerID != customerID {
		t.Fatalf("customer = %v", rec.CustomerID)
	}
	if !rec.Discount.Equal(money.FromUnits(50000)) {
		t.Fatalf("discount = %s", rec.Discount)
	}
}

func TestTryRedeemZeroAffectedRowsIsQuotaExceeded(t *testing.T) {
	ledger := &stubLedger{affected: 0}
	_, err := TryRedeem(context.Background(), ledger, uuid.New(), uuid.New(), nil, money.FromUnits(1000))
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
	if len(ledger.inserted) != 0 {
		t.Fatal("redemption inserted despite exhausted quota")
	}
}

func TestTryRedeemPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection reset")
	if _, err := TryRedeem(context.Background(), &stubLedger{incErr: boom}, uuid.New(), uuid.New(), nil, money.Zero()); !errors.Is(err, boom) {
		t.Fatalf("increment err = %v", err)
	}
	if _, err := TryRedeem(context.Background(), &stubLedger{affected: 1, insertErr: boom}, uuid.New(), uuid.New(), nil, money.Zero()); !errors.Is(err, boom) {
		t.Fatalf("insert err = %v", err)
	}
}

// contendedLedger serialises the conditional increment the way the row lock
// on the vouchers table does, so concurrent TryRedeem calls contend for real.
type contendedLedger struct {
	mu       sync.Mutex
	quota    int32
	redeemed int32
	inserted int
}

func (l *contendedLedger) IncrementRedeemedCount(_ context.Context, _ pgtype.UUID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.redeemed >= l.quota {
		return 0, nil
	}
	l.redeemed++
	return 1, nil
}

func (l *contendedLedger) InsertRedemption(_ context.Context, arg store.InsertRedemptionParams) (store.Redemption, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inserted++
	return store.Redemption{
		ID:        pgtype.UUID{Bytes: uuid.New(), Valid: true},
		VoucherID: arg.VoucherID,
		OrderID:   arg.OrderID,
		Discount:  arg.Discount,
	}, nil
}

func TestTryRedeemLastUnitUnderContention(t *testing.T) {
	ledger := &contendedLedger{quota: 1}
	voucherID := uuid.New()

	const checkouts = 2
	errs := make(chan error, checkouts)
	var wg sync.WaitGroup
	for i := 0; i < checkouts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := TryRedeem(context.Background(), ledger, voucherID, uuid.New(), nil, money.FromUnits(50000))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, exhausted int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrQuotaExceeded):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || exhausted != 1 {
		t.Fatalf("succeeded = %d, exhausted = %d, want exactly one of each", succeeded, exhausted)
	}
	if ledger.redeemed != 1 {
		t.Fatalf("redeemed count = %d, want 1", ledger.redeemed)
	}
	if ledger.inserted != 1 {
		t.Fatalf("redemptions inserted = %d, want 1", ledger.inserted)
	}
}

func TestTryRedeemAnonymousCustomer(t *testing.T) {
	ledger := &stubLedger{affected: 1}
	rec, err := TryRedeem(context.Background(), ledger, uuid.New(), uuid.New(), nil, money.FromUnits(1))
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if rec.CustomerID != nil {
		t.Fatalf("customer = %v, want nil", rec.CustomerID)
	}
	if len(ledger.inserted) != 1 || ledger.inserted[0].CustomerID.Valid {
		t.Fatalf("inserted customer should be NULL: %+v", ledger.inserted)
	}
}
