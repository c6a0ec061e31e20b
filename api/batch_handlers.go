package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/evalIA/property-import-service/internal/models"
	"github.com/evalIA/property-import-service/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// StartBatch - POST /api/batches
// Multipart: files (repeated), documentTypes (one per file, or one for all),
// mergeMode ("new" or "existing"), targetId, optional provider and model.
func (h *Handler) StartBatch(w http.ResponseWriter, r *http.Request) {
	claims, user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	maxFiles := int64(h.config.Import.MaxBatchFiles)
	if maxFiles <= 0 {
		maxFiles = 1
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes()*maxFiles)
	if err := r.ParseMultipartForm(h.maxUploadBytes()); err != nil {
		h.sendError(w, http.StatusBadRequest, "batch too large or invalid form data")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		h.sendError(w, http.StatusBadRequest, "no files provided (use the 'files' field)")
		return
	}
	types := r.MultipartForm.Value["documentTypes"]
	if len(types) != 1 && len(types) != len(headers) {
		h.sendError(w, http.StatusBadRequest, fmt.Sprintf("expected 1 or %d documentTypes, got %d", len(headers), len(types)))
		return
	}

	files := make([]models.BatchFile, 0, len(headers))
	for i, fh := range headers {
		if fh.Size > h.maxUploadBytes() {
			h.sendError(w, http.StatusBadRequest, fmt.Sprintf("file %q exceeds %d MB", fh.Filename, h.config.Server.MaxUploadMB))
			return
		}
		f, err := fh.Open()
		if err != nil {
			h.sendError(w, http.StatusBadRequest, fmt.Sprintf("failed to open %q", fh.Filename))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.sendError(w, http.StatusInternalServerError, "failed to read file")
			return
		}

		docType := types[0]
		if len(types) > 1 {
			docType = types[i]
		}
		files = append(files, models.BatchFile{
			FileName:     fh.Filename,
			ContentType:  fh.Header.Get("Content-Type"),
			DocumentType: models.DocumentType(docType),
			Data:         data,
		})
	}

	creds, err := h.resolveCredentials(user, r.FormValue("provider"), r.FormValue("model"))
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	mode := models.MergeMode(r.FormValue("mergeMode"))
	if mode == "" {
		mode = models.MergeNew
	}
	if err := h.batches.StartBatch(r.Context(), claims.UserID, files, mode, r.FormValue("targetId"), creds); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.sendJSON(w, http.StatusAccepted, map[string]interface{}{
		"success":  true,
		"progress": h.batches.Progress(claims.UserID),
	})
}

// GetBatchProgress - GET /api/batches/current
func (h *Handler) GetBatchProgress(w http.ResponseWriter, r *http.Request) {
	claims, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"progress": h.batches.Progress(claims.UserID),
	})
}

// CancelBatch - DELETE /api/batches/current
// The file in flight finishes; the remaining files are not started.
func (h *Handler) CancelBatch(w http.ResponseWriter, r *http.Request) {
	claims, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if !h.batches.Cancel(claims.UserID) {
		h.sendError(w, http.StatusNotFound, "no batch running")
		return
	}
	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "batch will stop after the current file",
	})
}

// GetBatchReport - GET /api/batches/current/report
func (h *Handler) GetBatchReport(w http.ResponseWriter, r *http.Request) {
	claims, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if h.batches.Progress(claims.UserID).IsProcessing {
		h.writeServiceError(w, fmt.Errorf("%w: batch still processing", services.ErrBatchAlreadyRunning))
		return
	}

	data, err := h.batches.Report(r.Context(), claims.UserID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	filename := fmt.Sprintf("batch-report-%s.xlsx", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
