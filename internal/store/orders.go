package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Order is the orders table row. The pricing_* columns persist the breakdown
// for audit and history.
type Order struct {
	ID              pgtype.UUID
	CustomerID      pgtype.UUID
	Status          string
	Currency        string
	PricingSubtotal decimal.Decimal
	PricingVatRate  decimal.NullDecimal
	PricingVat      decimal.Decimal
	PricingShipping decimal.Decimal
	ShippingMethod  pgtype.Text
	PricingDiscount decimal.Decimal
	PricingTotal    decimal.Decimal
	VoucherCode     pgtype.Text
	VoucherMessage  pgtype.Text
	Notes           pgtype.Text
	CreatedAt       pgtype.Timestamptz
}

// OrderItem is the order_items table row.
type OrderItem struct {
	ID        pgtype.UUID
	OrderID   pgtype.UUID
	ProductID pgtype.UUID
	Name      string
	UnitPrice decimal.Decimal
	Qty       int32
	LineTotal decimal.Decimal
}

const orderColumns = `id, customer_id, status, currency, pricing_subtotal, pricing_vat_rate,
	pricing_vat, pricing_shipping, shipping_method, pricing_discount, pricing_total,
	voucher_code, voucher_message, notes, created_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.Status, &o.Currency, &o.PricingSubtotal, &o.PricingVatRate,
		&o.PricingVat, &o.PricingShipping, &o.ShippingMethod, &o.PricingDiscount, &o.PricingTotal,
		&o.VoucherCode, &o.VoucherMessage, &o.Notes, &o.CreatedAt,
	)
	return o, err
}

// CreateOrderParams carries the insertable order fields.
type CreateOrderParams struct {
	CustomerID      pgtype.UUID
	Status          string
	Currency        string
	PricingSubtotal decimal.Decimal
	PricingVatRate  decimal.NullDecimal
	PricingVat      decimal.Decimal
	PricingShipping decimal.Decimal
	ShippingMethod  pgtype.Text
	PricingDiscount decimal.Decimal
	PricingTotal    decimal.Decimal
	VoucherCode     pgtype.Text
	VoucherMessage  pgtype.Text
	Notes           pgtype.Text
}

// CreateOrder inserts the order row with its persisted breakdown.
func (s *Store) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO orders (customer_id, status, currency, pricing_subtotal, pricing_vat_rate,
			pricing_vat, pricing_shipping, shipping_method, pricing_discount, pricing_total,
			voucher_code, voucher_message, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+orderColumns,
		arg.CustomerID, arg.Status, arg.Currency, arg.PricingSubtotal, arg.PricingVatRate,
		arg.PricingVat, arg.PricingShipping, arg.ShippingMethod, arg.PricingDiscount,
		arg.PricingTotal, arg.VoucherCode, arg.VoucherMessage, arg.Notes,
	)
	return scanOrder(row)
}

// CreateOrderItemParams carries one order line.
type CreateOrderItemParams struct {
	OrderID   pgtype.UUID
	ProductID pgtype.UUID
	Name      string
	UnitPrice decimal.Decimal
	Qty       int32
	LineTotal decimal.Decimal
}

// CreateOrderItem inserts one order line.
func (s *Store) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_items (order_id, product_id, name, unit_price, qty, line_total)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		arg.OrderID, arg.ProductID, arg.Name, arg.UnitPrice, arg.Qty, arg.LineTotal,
	)
	return err
}

// GetOrderByID fetches one order.
func (s *Store) GetOrderByID(ctx context.Context, id pgtype.UUID) (Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// ListOrderItems returns the lines of one order.
func (s *Store) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, product_id, name, unit_price, qty, line_total
		FROM order_items WHERE order_id = $1`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.UnitPrice, &it.Qty, &it.LineTotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ListOrdersByCustomer returns a customer's orders, newest first.
func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID pgtype.UUID, limit, offset int32) ([]Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		customerID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
