package reports

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// HandlePDF handles GET /v1/users/{userId}/recommendations/{id}/pdf
func (h *Handlers) HandlePDF(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, FormatPDF)
}

// HandleCSV handles GET /v1/users/{userId}/recommendations/{id}/csv
func (h *Handlers) HandleCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, FormatCSV)
}

func (h *Handlers) export(w http.ResponseWriter, r *http.Request, format string) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "Invalid recommendation ID")
		return
	}

	export, err := h.service.Export(r.Context(), r.PathValue("userId"), id, format)
	if err != nil {
		switch {
		case errors.Is(err, ErrReportNotFound):
			writeError(w, http.StatusNotFound, "not_found", "Recommendation not found")
		case errors.Is(err, ErrInvalidFormat):
			writeError(w, http.StatusBadRequest, "invalid_format", "Format must be 'pdf' or 'csv'")
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to render report")
		}
		return
	}

	if export.RedirectURL != "" {
		http.Redirect(w, r, export.RedirectURL, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
