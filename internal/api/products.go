package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gridwire/meshcore/internal/product"
)

// handleGetProduct returns a single product's registration record.
//
// There is no list endpoint: product.Registry deliberately exposes no
// List primitive (it mirrors the original's getProduct(id)-only access
// pattern), so the admin surface can only resolve products one ID at a
// time, the same way a device's invoke path does internally.
func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	if s.productRegistry == nil {
		writeInternalError(w, "product registry not configured")
		return
	}

	id := chi.URLParam(r, "id")
	op, err := s.productRegistry.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrProductNotFound) {
			writeNotFound(w, "product not found")
			return
		}
		writeInternalError(w, "failed to get product")
		return
	}

	info, err := op.Info(r.Context())
	if err != nil {
		writeInternalError(w, "failed to get product")
		return
	}
	writeJSON(w, http.StatusOK, info)
}
