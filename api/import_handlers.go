package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/evalIA/property-import-service/internal/models"
	"github.com/evalIA/property-import-service/internal/services"
	"github.com/evalIA/property-import-service/internal/storage"
	"github.com/evalIA/property-import-service/internal/templates"
)

// DocumentTypeInfo is one entry of the document type listing
type DocumentTypeInfo struct {
	DocumentType models.DocumentType `json:"documentType"`
	Label        string              `json:"label"`
	Description  string              `json:"description"`
	MultiRecord  bool                `json:"multiRecord"`
	Fields       []string            `json:"fields"`
}

// ListDocumentTypes - GET /api/document-types
func (h *Handler) ListDocumentTypes(w http.ResponseWriter, r *http.Request) {
	all := templates.All()
	out := make([]DocumentTypeInfo, 0, len(all))
	for _, t := range all {
		out = append(out, DocumentTypeInfo{
			DocumentType: t.DocumentType,
			Label:        t.Label,
			Description:  t.Description,
			MultiRecord:  t.MultiRecord,
			Fields:       t.FieldNames(),
		})
	}
	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"documentTypes": out,
	})
}

func (h *Handler) maxUploadBytes() int64 {
	return int64(h.config.Server.MaxUploadMB) * 1024 * 1024
}

// CreateImport - POST /api/imports
// Multipart: file, documentType, optional provider and model.
func (h *Handler) CreateImport(w http.ResponseWriter, r *http.Request) {
	claims, user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes())
	if err := r.ParseMultipartForm(h.maxUploadBytes()); err != nil {
		h.sendError(w, http.StatusBadRequest, fmt.Sprintf("file too large (max %d MB) or invalid form data", h.config.Server.MaxUploadMB))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "no file provided (use the 'file' field)")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	docType, ok := models.ParseDocumentType(r.FormValue("documentType"))
	if !ok {
		h.sendError(w, http.StatusBadRequest, fmt.Sprintf("unknown document type %q", r.FormValue("documentType")))
		return
	}

	creds, err := h.resolveCredentials(user, r.FormValue("provider"), r.FormValue("model"))
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.importer.ProcessDocument(r.Context(), claims.UserID, services.DocumentFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, docType, creds)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	snap := session.Snapshot()
	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success": snap.Status != models.StatusFailed,
		"session": snap,
	})
}

// ListImports - GET /api/imports
func (h *Handler) ListImports(w http.ResponseWriter, r *http.Request) {
	claims, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	sessions := h.importer.Sessions().ListByUser(claims.UserID)
	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetImport - GET /api/imports/{id}
func (h *Handler) GetImport(w http.ResponseWriter, r *http.Request) {
	claims, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	session, err := h.importer.Session(claims.UserID, mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	snap := session.Snapshot()
	response := map[string]interface{}{
		"success": true,
		"session": snap,
	}
	if snap.StoragePath != "" && storage.Enabled() {
		if url, err := storage.GetPresignedURL(r.Context(), snap.StoragePath); err == nil {
			response["documentUrl"] = url
		}
	}
	h.sendJSON(w, http.StatusOK, response)
}

// DeleteImport - DELETE /api/imports/{id}
func (h *Handler) DeleteImport(w http.ResponseWriter, r *http.Request) {
	claims, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if _, err := h.importer.DeleteSession(r.Context(), claims.UserID, mux.Vars(r)["id"]); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "import deleted",
	})
}

// ResolveExtractionRequest is the body of PUT /api/imports/{id}/extractions/{index}
type ResolveExtractionRequest struct {
	Action   models.ExtractionAction `json:"action"`
	TargetID string                  `json:"targetId"`
}

// ResolveExtraction - PUT /api/imports/{id}/extractions/{index}
func (h *Handler) ResolveExtraction(w http.ResponseWriter, r *http.Request) {
	session, index, ok := h.extractionFromPath(w, r)
	if !ok {
		return
	}

	var req ResolveExtractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.importer.ResolveAction(session, index, req.Action, req.TargetID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"session": session.Snapshot(),
	})
}

// CompleteExtraction - POST /api/imports/{id}/extractions/{index}/complete
func (h *Handler) CompleteExtraction(w http.ResponseWriter, r *http.Request) {
	session, index, ok := h.extractionFromPath(w, r)
	if !ok {
		return
	}

	propertyID, err := h.importer.CreatePropertyFromImport(r.Context(), session, index)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"propertyId": propertyID,
		"session":    session.Snapshot(),
	})
}

func (h *Handler) extractionFromPath(w http.ResponseWriter, r *http.Request) (*models.ImportSession, int, bool) {
	claims, _, ok := h.currentUser(w, r)
	if !ok {
		return nil, 0, false
	}
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid extraction index")
		return nil, 0, false
	}
	session, err := h.importer.Session(claims.UserID, vars["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return nil, 0, false
	}
	return session, index, true
}
