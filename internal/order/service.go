// Package order creates and prices customer orders.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-toystore/internal/money"
	"github.com/noah-isme/backend-toystore/internal/obs"
	"github.com/noah-isme/backend-toystore/internal/pricing"
	"github.com/noah-isme/backend-toystore/internal/shipping"
	"github.com/noah-isme/backend-toystore/internal/store"
	"github.com/noah-isme/backend-toystore/internal/voucher"
)

var (
	// ErrEmptyOrder is returned when the request carries no line items.
	ErrEmptyOrder = errors.New("order: at least one line item is required")
	// ErrUnknownProduct is returned when a requested product does not exist.
	ErrUnknownProduct = errors.New("order: unknown product")
)

// Input is one order creation request. Unit prices are never accepted from the
// client; lines are priced from the catalogue inside the order transaction.
type Input struct {
	Items       []ItemInput
	VoucherCode string
	CustomerID  *uuid.UUID
	Notes       string
}

// ItemInput is one requested order line.
type ItemInput struct {
	ProductID uuid.UUID
	Qty       int
}

// Output is the persisted order plus its price breakdown.
type Output struct {
	ID        uuid.UUID         `json:"id"`
	Status    string            `json:"status"`
	Currency  string            `json:"currency"`
	Breakdown pricing.Breakdown `json:"breakdown"`
	Items     []ItemView        `json:"items"`
	Notes     string            `json:"notes,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// ItemView is one priced order line as returned to clients.
type ItemView struct {
	ProductID uuid.UUID   `json:"productId"`
	Name      string      `json:"name"`
	UnitPrice money.Money `json:"unitPrice"`
	Qty       int         `json:"qty"`
	LineTotal money.Money `json:"lineTotal"`
}

// Pricer resolves the final price of an order context. It owns the stage
// order; callers supply the lines and the voucher verdict inputs.
type Pricer struct {
	VATRate decimal.Decimal
	Quoter  shipping.Quoter
	Scale   int32
}

// Price runs the pricing pipeline over the given lines. The voucher stage is
// present only when a code was submitted; the verdict decides whether it
// grants a discount or records a rejection.
func (p Pricer) Price(ctx context.Context, items []pricing.LineItem, weightGrams int64, verdict *voucher.Verdict) (pricing.Breakdown, error) {
	stages := []pricing.Stage{pricing.Subtotal(items)}
	if p.VATRate.IsPositive() {
		stages = append(stages, pricing.VAT(p.VATRate))
	}
	if p.Quoter != nil {
		quote, err := p.Quoter.Quote(ctx, weightGrams)
		if err != nil {
			return pricing.Breakdown{}, fmt.Errorf("quote shipping: %w", err)
		}
		stages = append(stages, pricing.Shipping(quote.Fee, quote.Method))
	}
	if verdict != nil {
		stages = append(stages, pricing.Voucher(verdict.Code, verdict.Applied, verdict.Discount, verdict.Reason))
	}
	return pricing.Pipeline{Stages: stages, Scale: p.Scale}.Run()
}

// TxBeginner starts order transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Service persists orders. Pricing, voucher evaluation and quota consumption
// all happen inside one transaction so the stored breakdown, the order rows
// and the redeemed counter commit or roll back together.
type Service struct {
	Pool     TxBeginner
	S        *store.Store
	Pricer   Pricer
	Currency string
	Now      func() time.Time
}

// Create prices and persists one order.
func (s *Service) Create(ctx context.Context, in Input) (Output, error) {
	if s == nil || s.Pool == nil || s.S == nil {
		return Output{}, errors.New("order service not configured")
	}
	if len(in.Items) == 0 {
		return Output{}, ErrEmptyOrder
	}
	start := time.Now()

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Output{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	qtx := s.S.WithTx(tx)

	lines, weight, err := s.resolveLines(ctx, qtx, in.Items)
	if err != nil {
		return Output{}, err
	}
	productSubtotal := money.Zero()
	for _, line := range lines {
		productSubtotal = productSubtotal.Add(line.LineTotal())
	}

	var verdict *voucher.Verdict
	var voucherID *uuid.UUID
	if in.VoucherCode != "" {
		verdict, voucherID, err = s.evaluateVoucher(ctx, qtx, in.VoucherCode, in.CustomerID, productSubtotal)
		if err != nil {
			return Output{}, err
		}
	}

	breakdown, err := s.Pricer.Price(ctx, lines, weight, verdict)
	if err != nil {
		return Output{}, err
	}

	orderRow, err := qtx.CreateOrder(ctx, orderParams(in, breakdown, s.Currency, s.Pricer.VATRate))
	if err != nil {
		return Output{}, err
	}
	orderID := uuid.UUID(orderRow.ID.Bytes)

	views := make([]ItemView, 0, len(lines))
	for _, line := range lines {
		lineTotal := money.RoundHalfUp(line.LineTotal(), s.Pricer.Scale)
		err = qtx.CreateOrderItem(ctx, store.CreateOrderItemParams{
			OrderID:   orderRow.ID,
			ProductID: voucher.PgUUID(line.ProductID),
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Qty:       int32(line.Qty),
			LineTotal: lineTotal,
		})
		if err != nil {
			return Output{}, err
		}
		views = append(views, ItemView{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Qty:       line.Qty,
			LineTotal: lineTotal,
		})
	}

	if verdict != nil && verdict.Applied && voucherID != nil {
		_, err = voucher.TryRedeem(ctx, qtx, *voucherID, orderID, in.CustomerID, breakdown.Voucher.Discount)
		if err != nil {
			if obs.VoucherRedemptionTotal != nil {
				obs.VoucherRedemptionTotal.WithLabelValues("rejected").Inc()
			}
			return Output{}, err
		}
		if obs.VoucherRedemptionTotal != nil {
			obs.VoucherRedemptionTotal.WithLabelValues("redeemed").Inc()
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Output{}, err
	}
	if obs.OrderPricingLatency != nil {
		obs.OrderPricingLatency.Observe(obs.DurationMillis(time.Since(start)))
	}

	out := Output{
		ID:        orderID,
		Status:    orderRow.Status,
		Currency:  orderRow.Currency,
		Breakdown: breakdown,
		Items:     views,
		Notes:     in.Notes,
	}
	if orderRow.CreatedAt.Valid {
		out.CreatedAt = orderRow.CreatedAt.Time
	}
	return out, nil
}

// Get loads one persisted order with its lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Output, error) {
	row, err := s.S.GetOrderByID(ctx, voucher.PgUUID(id))
	if err != nil {
		return Output{}, err
	}
	items, err := s.S.ListOrderItems(ctx, row.ID)
	if err != nil {
		return Output{}, err
	}
	return outputFromRows(row, items), nil
}

// ListByCustomer returns a customer's order history, newest first. The
// listing carries the persisted breakdowns without line items.
func (s *Service) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int32) ([]Output, error) {
	rows, err := s.S.ListOrdersByCustomer(ctx, voucher.PgUUID(customerID), limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]Output, 0, len(rows))
	for _, row := range rows {
		out = append(out, outputFromRows(row, nil))
	}
	return out, nil
}

func (s *Service) resolveLines(ctx context.Context, qtx *store.Store, items []ItemInput) ([]pricing.LineItem, int64, error) {
	ids := make([]pgtype.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, voucher.PgUUID(it.ProductID))
	}
	products, err := qtx.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	byID := make(map[uuid.UUID]store.Product, len(products))
	for _, p := range products {
		byID[uuid.UUID(p.ID.Bytes)] = p
	}
	lines := make([]pricing.LineItem, 0, len(items))
	var weight int64
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: %s", ErrUnknownProduct, it.ProductID)
		}
		lines = append(lines, pricing.LineItem{
			ProductID: it.ProductID,
			Name:      p.Name,
			UnitPrice: p.UnitPrice,
			Qty:       it.Qty,
		})
		weight += int64(p.WeightGrams) * int64(it.Qty)
	}
	return lines, weight, nil
}

func (s *Service) evaluateVoucher(ctx context.Context, qtx *store.Store, code string, customerID *uuid.UUID, subtotal money.Money) (*voucher.Verdict, *uuid.UUID, error) {
	vsvc := &voucher.Service{Q: qtx, Now: s.Now}
	v, err := vsvc.Lookup(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	var perUserUsed int64
	if v != nil && v.PerUserLimit != nil && customerID != nil {
		perUserUsed, err = qtx.CountRedemptionsByCustomer(ctx, voucher.PgUUID(v.ID), voucher.PgUUID(*customerID))
		if err != nil {
			return nil, nil, err
		}
	}
	verdict := voucher.Evaluate(v, s.now(), subtotal, perUserUsed)
	if v == nil {
		verdict.Code = code
		return &verdict, nil, nil
	}
	return &verdict, &v.ID, nil
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func orderParams(in Input, b pricing.Breakdown, currency string, vatRate decimal.Decimal) store.CreateOrderParams {
	params := store.CreateOrderParams{
		Status:          "created",
		Currency:        currency,
		PricingSubtotal: b.Subtotal,
		PricingVat:      money.Zero(),
		PricingShipping: money.Zero(),
		PricingDiscount: money.Zero(),
		PricingTotal:    b.GrandTotal,
	}
	if in.CustomerID != nil {
		params.CustomerID = voucher.PgUUID(*in.CustomerID)
	}
	if in.Notes != "" {
		params.Notes = pgtype.Text{String: in.Notes, Valid: true}
	}
	if b.Vat != nil {
		params.PricingVatRate = decimal.NullDecimal{Decimal: vatRate, Valid: true}
		params.PricingVat = b.Vat.Amount
	}
	if b.Shipping != nil {
		params.PricingShipping = b.Shipping.Fee
		params.ShippingMethod = pgtype.Text{String: b.Shipping.Method, Valid: true}
	}
	if b.Voucher != nil {
		params.PricingDiscount = b.Voucher.Discount
		params.VoucherCode = pgtype.Text{String: b.Voucher.Code, Valid: true}
		if b.Voucher.Message != "" {
			params.VoucherMessage = pgtype.Text{String: b.Voucher.Message, Valid: true}
		}
	}
	return params
}

func outputFromRows(row store.Order, items []store.OrderItem) Output {
	b := pricing.Breakdown{
		Subtotal:   row.PricingSubtotal,
		GrandTotal: row.PricingTotal,
	}
	if row.PricingVatRate.Valid {
		b.Vat = &pricing.VatLine{Rate: row.PricingVatRate.Decimal, Amount: row.PricingVat}
	}
	if row.ShippingMethod.Valid {
		b.Shipping = &pricing.ShippingLine{Fee: row.PricingShipping, Method: row.ShippingMethod.String}
	}
	if row.VoucherCode.Valid {
		b.Voucher = &pricing.VoucherLine{
			Code:     row.VoucherCode.String,
			Discount: row.PricingDiscount,
			Applied:  row.VoucherMessage.String == "",
			Message:  row.VoucherMessage.String,
		}
	}
	out := Output{
		ID:        uuid.UUID(row.ID.Bytes),
		Status:    row.Status,
		Currency:  row.Currency,
		Breakdown: b,
	}
	if row.Notes.Valid {
		out.Notes = row.Notes.String
	}
	if row.CreatedAt.Valid {
		out.CreatedAt = row.CreatedAt.Time
	}
	views := make([]ItemView, 0, len(items))
	for _, it := range items {
		views = append(views, ItemView{
			ProductID: uuid.UUID(it.ProductID.Bytes),
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Qty:       int(it.Qty),
			LineTotal: it.LineTotal,
		})
	}
	out.Items = views
	return out
}
