package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// ListProperties - GET /api/properties
func (h *Handler) ListProperties(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := h.currentUser(w, r); !ok {
		return
	}
	properties, err := h.importer.Store().GetAll(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"properties": properties,
		"count":      len(properties),
	})
}

// GetProperty - GET /api/properties/{id}
func (h *Handler) GetProperty(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := h.currentUser(w, r); !ok {
		return
	}
	property, err := h.importer.Store().Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"property": property,
	})
}
