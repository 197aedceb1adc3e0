package order

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-toystore/internal/common"
	"github.com/noah-isme/backend-toystore/internal/obs"
	"github.com/noah-isme/backend-toystore/internal/pricing"
	"github.com/noah-isme/backend-toystore/internal/voucher"
)

// Handler exposes the order HTTP surface.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type itemPayload struct {
	ProductID string `json:"productId" validate:"required,uuid4"`
	Qty       int    `json:"qty" validate:"required,min=1"`
}

type createPayload struct {
	Items       []itemPayload `json:"items" validate:"required,min=1,dive"`
	VoucherCode string        `json:"voucherCode"`
	CustomerID  *string       `json:"customerId" validate:"omitempty,uuid4"`
	Notes       string        `json:"notes" validate:"omitempty,max=500"`
}

// Create handles POST /orders.
func (h Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
			return
		}
	}

	in := Input{VoucherCode: payload.VoucherCode, Notes: payload.Notes}
	for _, item := range payload.Items {
		pid, err := uuid.Parse(item.ProductID)
		if err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid productId", nil)
			return
		}
		in.Items = append(in.Items, ItemInput{ProductID: pid, Qty: item.Qty})
	}
	if payload.CustomerID != nil {
		cid, err := uuid.Parse(*payload.CustomerID)
		if err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid customerId", nil)
			return
		}
		in.CustomerID = &cid
	}

	out, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		if obs.OrdersCreatedTotal != nil {
			obs.OrdersCreatedTotal.WithLabelValues("error").Inc()
		}
		writeCreateError(w, err)
		return
	}
	if obs.OrdersCreatedTotal != nil {
		obs.OrdersCreatedTotal.WithLabelValues("created").Inc()
	}
	common.JSONData(w, http.StatusCreated, out)
}

// List handles GET /orders. The listing is scoped to one customer.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("customerId")
	if raw == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "customerId is required", nil)
		return
	}
	cid, err := uuid.Parse(raw)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid customerId", nil)
		return
	}
	limit, offset := common.LimitOffset(r, 20, 100)
	out, err := h.Svc.ListByCustomer(r.Context(), cid, limit, offset)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, out)
}

// Get handles GET /orders/{id}.
func (h Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	out, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, out)
}

func writeCreateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, voucher.ErrQuotaExceeded):
		common.JSONError(w, http.StatusConflict, "VOUCHER_QUOTA_EXCEEDED", "voucher quota exhausted", nil)
	case errors.Is(err, ErrUnknownProduct):
		common.JSONError(w, http.StatusUnprocessableEntity, "PRODUCT_UNKNOWN", err.Error(), nil)
	case errors.Is(err, ErrEmptyOrder),
		errors.Is(err, pricing.ErrNoLineItems),
		errors.Is(err, pricing.ErrInvalidQty),
		errors.Is(err, pricing.ErrNegativePrice):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
	default:
		common.WriteError(w, err)
	}
}
