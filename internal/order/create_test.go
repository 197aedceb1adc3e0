package order

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-toystore/internal/money"
	"github.com/noah-isme/backend-toystore/internal/store"
	"github.com/noah-isme/backend-toystore/internal/voucher"
)

var orderNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// fakeTx scripts the statements order creation issues inside its transaction.
// It satisfies both pgx.Tx and the store's DBTX, so the real query layer runs
// against it unchanged.
type fakeTx struct {
	products      []store.Product
	voucherRow    *store.Voucher
	orderRow      store.Order
	listRows      []store.Order
	quotaAffected int64

	committed     bool
	rolledBack    bool
	itemsInserted int
	redemptions   int
}

type fakeBeginner struct{ tx *fakeTx }

func (b fakeBeginner) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	return b.tx, nil
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) { return f, nil }

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if f.committed {
		return pgx.ErrTxClosed
	}
	f.rolledBack = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("unexpected CopyFrom")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }

func (f *fakeTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("unexpected Prepare")
}

func (f *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "INSERT INTO order_items"):
		f.itemsInserted++
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.Contains(sql, "redeemed_count + 1"):
		return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", f.quotaAffected)), nil
	default:
		return pgconn.CommandTag{}, fmt.Errorf("unexpected exec: %s", sql)
	}
}

func (f *fakeTx) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	switch {
	case strings.Contains(sql, "FROM products"):
		rows := make([][]any, 0, len(f.products))
		for _, p := range f.products {
			rows = append(rows, []any{p.ID, p.Name, p.Slug, p.UnitPrice, p.WeightGrams, p.CreatedAt, p.UpdatedAt})
		}
		return &fakeRows{rows: rows}, nil
	case strings.Contains(sql, "FROM orders"):
		rows := make([][]any, 0, len(f.listRows))
		for _, o := range f.listRows {
			rows = append(rows, orderVals(o))
		}
		return &fakeRows{rows: rows}, nil
	default:
		return nil, fmt.Errorf("unexpected query: %s", sql)
	}
}

func (f *fakeTx) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	switch {
	case strings.Contains(sql, "FROM vouchers WHERE code"):
		if f.voucherRow == nil {
			return fakeRow{err: pgx.ErrNoRows}
		}
		v := *f.voucherRow
		return fakeRow{vals: []any{
			v.ID, v.Code, v.Kind, v.Value, v.MaxDiscount, v.MinOrderValue,
			v.StartsAt, v.EndsAt, v.TotalQuota, v.RedeemedCount, v.PerUserLimit,
			v.Status, v.Enabled, v.CreatedAt, v.UpdatedAt,
		}}
	case strings.Contains(sql, "INSERT INTO orders"):
		return fakeRow{vals: orderVals(f.orderRow)}
	case strings.Contains(sql, "INSERT INTO voucher_redemptions"):
		f.redemptions++
		return fakeRow{vals: []any{
			pgtype.UUID{Bytes: uuid.New(), Valid: true},
			f.voucherRow.ID,
			f.orderRow.ID,
			pgtype.UUID{},
			money.FromUnits(50000),
			pgtype.Timestamptz{Time: orderNow, Valid: true},
		}}
	case strings.Contains(sql, "count(*)"):
		return fakeRow{vals: []any{int64(0)}}
	default:
		return fakeRow{err: fmt.Errorf("unexpected query row: %s", sql)}
	}
}

func (f *fakeTx) Conn() *pgx.Conn { return nil }

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return fmt.Errorf("scan arity: %d destinations for %d values", len(dest), len(r.vals))
	}
	for i, v := range r.vals {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx <= len(r.rows)
}
func (r *fakeRows) Scan(dest ...any) error {
	return fakeRow{vals: r.rows[r.idx-1]}.Scan(dest...)
}
func (r *fakeRows) Values() ([]any, error) { return r.rows[r.idx-1], nil }
func (r *fakeRows) RawValues() [][]byte    { return nil }
func (r *fakeRows) Conn() *pgx.Conn        { return nil }

func orderVals(o store.Order) []any {
	return []any{
		o.ID, o.CustomerID, o.Status, o.Currency, o.PricingSubtotal, o.PricingVatRate,
		o.PricingVat, o.PricingShipping, o.ShippingMethod, o.PricingDiscount, o.PricingTotal,
		o.VoucherCode, o.VoucherMessage, o.Notes, o.CreatedAt,
	}
}

func testProductRow(id uuid.UUID) store.Product {
	return store.Product{
		ID:          pgtype.UUID{Bytes: id, Valid: true},
		Name:        "Wooden Train Set",
		Slug:        "wooden-train-set",
		UnitPrice:   money.FromUnits(500000),
		WeightGrams: 1200,
	}
}

func testVoucherRow() store.Voucher {
	return store.Voucher{
		ID:            pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Code:          "TOY20",
		Kind:          "percent",
		Value:         decimal.NewFromInt(20),
		MaxDiscount:   decimal.NullDecimal{Decimal: money.FromUnits(50000), Valid: true},
		MinOrderValue: money.FromUnits(200000),
		StartsAt:      pgtype.Timestamptz{Time: orderNow.AddDate(0, -1, 0), Valid: true},
		EndsAt:        pgtype.Timestamptz{Time: orderNow.AddDate(0, 1, 0), Valid: true},
		TotalQuota:    pgtype.Int4{Int32: 1, Valid: true},
		Status:        "active",
		Enabled:       true,
	}
}

func testService(tx *fakeTx) *Service {
	return &Service{
		Pool:     fakeBeginner{tx: tx},
		S:        store.New(tx),
		Pricer:   testPricer(),
		Currency: "IDR",
		Now:      func() time.Time { return orderNow },
	}
}

func TestCreateCommitsOrderWithRedemption(t *testing.T) {
	productID := uuid.New()
	tx := &fakeTx{
		products:      []store.Product{testProductRow(productID)},
		quotaAffected: 1,
		orderRow: store.Order{
			ID:       pgtype.UUID{Bytes: uuid.New(), Valid: true},
			Status:   "created",
			Currency: "IDR",
		},
	}
	vrow := testVoucherRow()
	tx.voucherRow = &vrow

	out, err := testService(tx).Create(context.Background(), Input{
		Items:       []ItemInput{{ProductID: productID, Qty: 1}},
		VoucherCode: "TOY20",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !tx.committed {
		t.Fatal("transaction not committed")
	}
	if tx.itemsInserted != 1 {
		t.Fatalf("items inserted = %d", tx.itemsInserted)
	}
	if tx.redemptions != 1 {
		t.Fatalf("redemptions recorded = %d", tx.redemptions)
	}
	if !out.Breakdown.GrandTotal.Equal(money.FromUnits(530000)) {
		t.Fatalf("grand total = %s, want 530000", out.Breakdown.GrandTotal)
	}
	if out.Breakdown.Voucher == nil || !out.Breakdown.Voucher.Applied {
		t.Fatalf("voucher line = %+v", out.Breakdown.Voucher)
	}
	if out.Status != "created" {
		t.Fatalf("status = %q", out.Status)
	}
}

func TestCreateQuotaRaceRollsBack(t *testing.T) {
	productID := uuid.New()
	tx := &fakeTx{
		products:      []store.Product{testProductRow(productID)},
		quotaAffected: 0,
		orderRow: store.Order{
			ID:       pgtype.UUID{Bytes: uuid.New(), Valid: true},
			Status:   "created",
			Currency: "IDR",
		},
	}
	vrow := testVoucherRow()
	tx.voucherRow = &vrow

	_, err := testService(tx).Create(context.Background(), Input{
		Items:       []ItemInput{{ProductID: productID, Qty: 1}},
		VoucherCode: "TOY20",
	})
	if !errors.Is(err, voucher.ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
	if tx.committed {
		t.Fatal("transaction committed despite exhausted quota")
	}
	if !tx.rolledBack {
		t.Fatal("transaction not rolled back")
	}
	if tx.redemptions != 0 {
		t.Fatalf("redemptions recorded = %d", tx.redemptions)
	}
}

func TestCreateHandlerMapsQuotaExhaustionToConflict(t *testing.T) {
	productID := uuid.New()
	tx := &fakeTx{
		products:      []store.Product{testProductRow(productID)},
		quotaAffected: 0,
		orderRow: store.Order{
			ID:       pgtype.UUID{Bytes: uuid.New(), Valid: true},
			Status:   "created",
			Currency: "IDR",
		},
	}
	vrow := testVoucherRow()
	tx.voucherRow = &vrow
	h := Handler{Svc: testService(tx), Validate: validator.New()}

	body, err := json.Marshal(map[string]any{
		"items":       []map[string]any{{"productId": productID.String(), "qty": 1}},
		"voucherCode": "TOY20",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	rr := httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body)))

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "VOUCHER_QUOTA_EXCEEDED") {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestListByCustomerReturnsHistory(t *testing.T) {
	customerID := uuid.New()
	newer := store.Order{
		ID:              pgtype.UUID{Bytes: uuid.New(), Valid: true},
		CustomerID:      pgtype.UUID{Bytes: customerID, Valid: true},
		Status:          "created",
		Currency:        "IDR",
		PricingSubtotal: money.FromUnits(500000),
		PricingTotal:    money.FromUnits(530000),
		CreatedAt:       pgtype.Timestamptz{Time: orderNow, Valid: true},
	}
	older := newer
	older.ID = pgtype.UUID{Bytes: uuid.New(), Valid: true}
	older.PricingTotal = money.FromUnits(140000)
	older.CreatedAt = pgtype.Timestamptz{Time: orderNow.AddDate(0, 0, -7), Valid: true}

	tx := &fakeTx{listRows: []store.Order{newer, older}}
	h := Handler{Svc: testService(tx)}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?customerId="+customerID.String(), nil)
	rr := httptest.NewRecorder()
	h.List(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Data []Output `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("orders = %d, want 2", len(resp.Data))
	}
	if !resp.Data[0].Breakdown.GrandTotal.Equal(money.FromUnits(530000)) {
		t.Fatalf("first total = %s", resp.Data[0].Breakdown.GrandTotal)
	}
	if !resp.Data[0].CreatedAt.After(resp.Data[1].CreatedAt) {
		t.Fatal("orders not newest first")
	}
}

func TestListRequiresCustomerID(t *testing.T) {
	h := Handler{Svc: testService(&fakeTx{})}

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/v1/orders?customerId=not-a-uuid", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}
