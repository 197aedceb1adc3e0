package voucher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-toystore/internal/common"
	"github.com/noah-isme/backend-toystore/internal/obs"
	"github.com/noah-isme/backend-toystore/internal/store"
)

// AdminQuerier captures the store methods behind the admin endpoints.
type AdminQuerier interface {
	CreateVoucher(ctx context.Context, arg store.CreateVoucherParams) (store.Voucher, error)
	UpdateVoucher(ctx context.Context, arg store.UpdateVoucherParams) (store.Voucher, error)
	SetVoucherStatus(ctx context.Context, id pgtype.UUID, status string) (store.Voucher, error)
	DisableVoucher(ctx context.Context, id pgtype.UUID) (int64, error)
	GetVoucherByCode(ctx context.Context, code string) (store.Voucher, error)
	ListVouchers(ctx context.Context, limit, offset int32) ([]store.Voucher, error)
}

// Handler exposes voucher management and preview endpoints.
type Handler struct {
	Q        AdminQuerier
	Svc      *Service
	Validate *validator.Validate
}

type voucherPayload struct {
	Code          string           `json:"code" validate:"required,max=64"`
	Kind          string           `json:"kind" validate:"required,oneof=percent fixed_amount"`
	Value         decimal.Decimal  `json:"value"`
	MaxDiscount   *decimal.Decimal `json:"maxDiscount"`
	MinOrderValue decimal.Decimal  `json:"minOrderValue"`
	StartsAt      time.Time        `json:"startsAt" validate:"required"`
	EndsAt        time.Time        `json:"endsAt" validate:"required"`
	TotalQuota    *int32           `json:"totalQuota" validate:"omitempty,gt=0"`
	PerUserLimit  *int32           `json:"perUserLimit" validate:"omitempty,gt=0"`
}

type applyRequest struct {
	Code          string          `json:"code"`
	OrderSubtotal decimal.Decimal `json:"orderSubtotal"`
	CustomerID    *string         `json:"customerId"`
}

type statusPayload struct {
	Status string `json:"status" validate:"required,oneof=active paused expired"`
}

// Apply runs the validator only, without consuming quota, and returns the
// verdict with its computed discount for UI preview.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher service not configured", nil)
		return
	}
	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	if req.OrderSubtotal.IsNegative() {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "orderSubtotal must not be negative", nil)
		return
	}
	var customerID *uuid.UUID
	if req.CustomerID != nil && strings.TrimSpace(*req.CustomerID) != "" {
		parsed, err := uuid.Parse(strings.TrimSpace(*req.CustomerID))
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid customer id", nil)
			return
		}
		customerID = &parsed
	}
	verdict, err := h.Svc.Preview(r.Context(), req.Code, customerID, req.OrderSubtotal)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to evaluate voucher", nil)
		return
	}
	if obs.VoucherPreviewTotal != nil {
		result := "rejected"
		if verdict.Applied {
			result = "applied"
		}
		obs.VoucherPreviewTotal.WithLabelValues(result).Inc()
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": verdict})
}

// Active lists vouchers currently open for redemption.
func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher service not configured", nil)
		return
	}
	vouchers, err := h.Svc.Active(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list vouchers", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": vouchers})
}

// Create inserts a new voucher rule.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decodePayload(w, r)
	if !ok {
		return
	}
	created, err := h.Q.CreateVoucher(r.Context(), store.CreateVoucherParams{
		Code:          strings.ToUpper(strings.TrimSpace(payload.Code)),
		Kind:          payload.Kind,
		Value:         payload.Value,
		MaxDiscount:   toNullDecimal(payload.MaxDiscount),
		MinOrderValue: payload.MinOrderValue,
		StartsAt:      payload.StartsAt,
		EndsAt:        payload.EndsAt,
		TotalQuota:    toInt4(payload.TotalQuota),
		PerUserLimit:  toInt4(payload.PerUserLimit),
		Status:        string(StatusActive),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "voucher code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create voucher", nil)
		return
	}
	h.Svc.InvalidateActive(r.Context())
	common.JSON(w, http.StatusCreated, map[string]any{"data": ViewOf(FromRow(created))})
}

// Get returns one voucher by code.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	row, ok := h.loadByCode(w, r)
	if !ok {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ViewOf(FromRow(row))})
}

// List returns the admin voucher listing.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := common.LimitOffset(r, 20, 100)
	rows, err := h.Q.ListVouchers(r.Context(), limit, offset)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list vouchers", nil)
		return
	}
	out := make([]View, 0, len(rows))
	for _, row := range rows {
		out = append(out, ViewOf(FromRow(row)))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Update replaces the rule fields of an existing voucher.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.loadByCode(w, r)
	if !ok {
		return
	}
	payload, ok := h.decodePayload(w, r)
	if !ok {
		return
	}
	updated, err := h.Q.UpdateVoucher(r.Context(), store.UpdateVoucherParams{
		ID:            existing.ID,
		Kind:          payload.Kind,
		Value:         payload.Value,
		MaxDiscount:   toNullDecimal(payload.MaxDiscount),
		MinOrderValue: payload.MinOrderValue,
		StartsAt:      payload.StartsAt,
		EndsAt:        payload.EndsAt,
		TotalQuota:    toInt4(payload.TotalQuota),
		PerUserLimit:  toInt4(payload.PerUserLimit),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "voucher not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update voucher", nil)
		return
	}
	h.Svc.InvalidateActive(r.Context())
	common.JSON(w, http.StatusOK, map[string]any{"data": ViewOf(FromRow(updated))})
}

// PatchStatus pauses, resumes or expires a voucher. Expired is terminal.
func (h *Handler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.loadByCode(w, r)
	if !ok {
		return
	}
	var payload statusPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	if Status(existing.Status) == StatusExpired {
		common.JSONError(w, http.StatusConflict, "CONFLICT", "expired vouchers cannot transition", nil)
		return
	}
	updated, err := h.Q.SetVoucherStatus(r.Context(), existing.ID, payload.Status)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update voucher status", nil)
		return
	}
	h.Svc.InvalidateActive(r.Context())
	common.JSON(w, http.StatusOK, map[string]any{"data": ViewOf(FromRow(updated))})
}

// Delete soft-deletes a voucher. Vouchers that have been redeemed are kept
// for audit and cannot be deleted.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.loadByCode(w, r)
	if !ok {
		return
	}
	if existing.RedeemedCount > 0 {
		common.JSONError(w, http.StatusConflict, "CONFLICT", "voucher has redemptions and cannot be deleted", nil)
		return
	}
	affected, err := h.Q.DisableVoucher(r.Context(), existing.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete voucher", nil)
		return
	}
	if affected == 0 {
		common.JSONError(w, http.StatusConflict, "CONFLICT", "voucher already disabled or redeemed", nil)
		return
	}
	h.Svc.InvalidateActive(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) loadByCode(w http.ResponseWriter, r *http.Request) (store.Voucher, bool) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher queries not configured", nil)
		return store.Voucher{}, false
	}
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return store.Voucher{}, false
	}
	row, err := h.Q.GetVoucherByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "voucher not found", nil)
			return store.Voucher{}, false
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load voucher", nil)
		return store.Voucher{}, false
	}
	return row, true
}

func (h *Handler) decodePayload(w http.ResponseWriter, r *http.Request) (voucherPayload, bool) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher queries not configured", nil)
		return voucherPayload{}, false
	}
	var payload voucherPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return voucherPayload{}, false
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return voucherPayload{}, false
	}
	if err := checkRule(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return voucherPayload{}, false
	}
	return payload, true
}

func (h *Handler) validate(v any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(v)
}

// checkRule enforces the value constraints validator tags cannot express.
// Out-of-range percentages are rejected here, at write time, rather than
// clamped at redemption.
func checkRule(p voucherPayload) error {
	if !p.Value.IsPositive() {
		return errors.New("value must be positive")
	}
	if p.Kind == string(KindPercent) && p.Value.GreaterThan(decimal.NewFromInt(100)) {
		return errors.New("percent value must not exceed 100")
	}
	if p.MaxDiscount != nil && !p.MaxDiscount.IsPositive() {
		return errors.New("maxDiscount must be positive")
	}
	if p.MinOrderValue.IsNegative() {
		return errors.New("minOrderValue must not be negative")
	}
	if p.EndsAt.Before(p.StartsAt) {
		return errors.New("endsAt must not precede startsAt")
	}
	return nil
}

func toNullDecimal(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *v, Valid: true}
}

func toInt4(v *int32) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: *v, Valid: true}
}
