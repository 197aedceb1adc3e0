package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Voucher is the vouchers table row.
type Voucher struct {
	ID            pgtype.UUID
	Code          string
	Kind          string
	Value         decimal.Decimal
	MaxDiscount   decimal.NullDecimal
	MinOrderValue decimal.Decimal
	StartsAt      pgtype.Timestamptz
	EndsAt        pgtype.Timestamptz
	TotalQuota    pgtype.Int4
	RedeemedCount int32
	PerUserLimit  pgtype.Int4
	Status        string
	Enabled       bool
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

// Redemption is the voucher_redemptions table row.
type Redemption struct {
	ID         pgtype.UUID
	VoucherID  pgtype.UUID
	OrderID    pgtype.UUID
	CustomerID pgtype.UUID
	Discount   decimal.Decimal
	RedeemedAt pgtype.Timestamptz
}

const voucherColumns = `id, code, kind, value, max_discount, min_order_value, starts_at, ends_at,
	total_quota, redeemed_count, per_user_limit, status, enabled, created_at, updated_at`

func scanVoucher(row pgx.Row) (Voucher, error) {
	var v Voucher
	err := row.Scan(
		&v.ID, &v.Code, &v.Kind, &v.Value, &v.MaxDiscount, &v.MinOrderValue,
		&v.StartsAt, &v.EndsAt, &v.TotalQuota, &v.RedeemedCount, &v.PerUserLimit,
		&v.Status, &v.Enabled, &v.CreatedAt, &v.UpdatedAt,
	)
	return v, err
}

// CreateVoucherParams carries the insertable voucher fields.
type CreateVoucherParams struct {
	Code          string
	Kind          string
	Value         decimal.Decimal
	MaxDiscount   decimal.NullDecimal
	MinOrderValue decimal.Decimal
	StartsAt      time.Time
	EndsAt        time.Time
	TotalQuota    pgtype.Int4
	PerUserLimit  pgtype.Int4
	Status        string
}

// CreateVoucher inserts a voucher. The code is stored upper-cased; the unique
// index on code makes creation case-insensitively unique.
func (s *Store) CreateVoucher(ctx context.Context, arg CreateVoucherParams) (Voucher, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO vouchers (code, kind, value, max_discount, min_order_value, starts_at, ends_at,
			total_quota, per_user_limit, status)
		VALUES (upper($1), $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+voucherColumns,
		arg.Code, arg.Kind, arg.Value, arg.MaxDiscount, arg.MinOrderValue,
		arg.StartsAt, arg.EndsAt, arg.TotalQuota, arg.PerUserLimit, arg.Status,
	)
	return scanVoucher(row)
}

// UpdateVoucherParams carries the mutable voucher fields.
type UpdateVoucherParams struct {
	ID            pgtype.UUID
	Kind          string
	Value         decimal.Decimal
	MaxDiscount   decimal.NullDecimal
	MinOrderValue decimal.Decimal
	StartsAt      time.Time
	EndsAt        time.Time
	TotalQuota    pgtype.Int4
	PerUserLimit  pgtype.Int4
}

// UpdateVoucher mutates rule fields; code, status and counters are managed by
// dedicated statements.
func (s *Store) UpdateVoucher(ctx context.Context, arg UpdateVoucherParams) (Voucher, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE vouchers
		SET kind = $2, value = $3, max_discount = $4, min_order_value = $5,
			starts_at = $6, ends_at = $7, total_quota = $8, per_user_limit = $9,
			updated_at = now()
		WHERE id = $1
		RETURNING `+voucherColumns,
		arg.ID, arg.Kind, arg.Value, arg.MaxDiscount, arg.MinOrderValue,
		arg.StartsAt, arg.EndsAt, arg.TotalQuota, arg.PerUserLimit,
	)
	return scanVoucher(row)
}

// SetVoucherStatus transitions the lifecycle state.
func (s *Store) SetVoucherStatus(ctx context.Context, id pgtype.UUID, status string) (Voucher, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE vouchers SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+voucherColumns,
		id, status,
	)
	return scanVoucher(row)
}

// DisableVoucher soft-deletes a voucher. The delete is refused once any
// redemption exists; zero affected rows signals that refusal (or a missing
// row, which the caller distinguishes).
func (s *Store) DisableVoucher(ctx context.Context, id pgtype.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE vouchers SET enabled = FALSE, updated_at = now()
		WHERE id = $1 AND enabled AND redeemed_count = 0`,
		id,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GetVoucherByCode fetches one voucher by case-insensitive code.
func (s *Store) GetVoucherByCode(ctx context.Context, code string) (Voucher, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+voucherColumns+` FROM vouchers WHERE code = upper($1)`,
		code,
	)
	return scanVoucher(row)
}

// ListVouchers returns vouchers for the admin listing, newest first.
func (s *Store) ListVouchers(ctx context.Context, limit, offset int32) ([]Voucher, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+voucherColumns+` FROM vouchers
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVouchers(rows)
}

// ListActiveVouchers returns vouchers currently redeemable: enabled, active,
// inside the date window, with quota remaining.
func (s *Store) ListActiveVouchers(ctx context.Context, now time.Time) ([]Voucher, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+voucherColumns+` FROM vouchers
		WHERE enabled AND status = 'active'
			AND starts_at <= $1 AND ends_at >= $1
			AND (total_quota IS NULL OR redeemed_count < total_quota)
		ORDER BY ends_at ASC`,
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVouchers(rows)
}

func collectVouchers(rows pgx.Rows) ([]Voucher, error) {
	var out []Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// IncrementRedeemedCount performs the atomic compare-and-increment against
// the shared quota counter. The conditional WHERE clause makes the quota
// check and the increment one statement; the returned affected-row count is
// zero when the quota is already exhausted. Concurrent redemptions of the
// same voucher are linearised by the row lock this update takes.
func (s *Store) IncrementRedeemedCount(ctx context.Context, id pgtype.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE vouchers
		SET redeemed_count = redeemed_count + 1, updated_at = now()
		WHERE id = $1 AND enabled
			AND (total_quota IS NULL OR redeemed_count < total_quota)`,
		id,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertRedemptionParams carries one redemption row.
type InsertRedemptionParams struct {
	VoucherID  pgtype.UUID
	OrderID    pgtype.UUID
	CustomerID pgtype.UUID
	Discount   decimal.Decimal
}

// InsertRedemption records a committed quota consumption.
func (s *Store) InsertRedemption(ctx context.Context, arg InsertRedemptionParams) (Redemption, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO voucher_redemptions (voucher_id, order_id, customer_id, discount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, voucher_id, order_id, customer_id, discount, redeemed_at`,
		arg.VoucherID, arg.OrderID, arg.CustomerID, arg.Discount,
	)
	var r Redemption
	err := row.Scan(&r.ID, &r.VoucherID, &r.OrderID, &r.CustomerID, &r.Discount, &r.RedeemedAt)
	return r, err
}

// CountRedemptionsByCustomer returns how many times the customer has redeemed
// the voucher across committed orders.
func (s *Store) CountRedemptionsByCustomer(ctx context.Context, voucherID, customerID pgtype.UUID) (int64, error) {
	row := s.db.QueryRow(ctx, `
		SELECT count(*) FROM voucher_redemptions
		WHERE voucher_id = $1 AND customer_id = $2`,
		voucherID, customerID,
	)
	var count int64
	err := row.Scan(&count)
	return count, err
}
