package catalog

import (
	"net/http"

	"github.com/noah-isme/backend-toystore/internal/common"
)

// Handler exposes the catalogue HTTP surface.
type Handler struct {
	Svc *Service
}

// List handles GET /products.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := common.LimitOffset(r, 20, 100)
	out, err := h.Svc.List(r.Context(), limit, offset)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, out)
}
