package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	middleware "github.com/markdave123-py/drivesync/internal/api/middlewares"
	"github.com/markdave123-py/drivesync/internal/core"
	"github.com/markdave123-py/drivesync/internal/core/logging"
	"github.com/markdave123-py/drivesync/internal/models"
	"github.com/markdave123-py/drivesync/internal/services"
)

type FileHandler struct {
	files *services.FileService
}

func NewFileHandler(files *services.FileService) *FileHandler {
	return &FileHandler{files: files}
}

type ignoreRequest struct {
	Ignore *bool `json:"ignore"`
}

// ListFiles serves GET /api/files?status=a,b&limit=&offset=.
func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter core.FileFilter

	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st, err := models.ParseStatus(strings.TrimSpace(s))
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}
	var ok bool
	if filter.Limit, ok = intParam(w, q.Get("limit")); !ok {
		return
	}
	if filter.Offset, ok = intParam(w, q.Get("offset")); !ok {
		return
	}

	files, err := h.files.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *FileHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	f, err := h.files.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *FileHandler) SetIgnore(w http.ResponseWriter, r *http.Request) {
	var req ignoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Ignore == nil {
		http.Error(w, `invalid body, expected {"ignore": bool}`, http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	f, err := h.files.SetIgnore(r.Context(), id, *req.Ignore)
	if err != nil {
		writeError(w, err)
		return
	}
	logging.Logger().Info("FileHandler: ignore flag set", "file", id, "ignore", *req.Ignore, "by", middleware.SubjectFromContext(r.Context()))
	writeJSON(w, http.StatusOK, f)
}

func (h *FileHandler) RetryFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f, err := h.files.Retry(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	logging.Logger().Info("FileHandler: file queued for retry", "file", id, "by", middleware.SubjectFromContext(r.Context()))
	writeJSON(w, http.StatusOK, f)
}

func (h *FileHandler) LatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.files.LatestRun(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func intParam(w http.ResponseWriter, raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		http.Error(w, "invalid integer "+strconv.Quote(raw), http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrNotRetryable), core.IsCode(err, core.ErrCodeInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logging.Logger().Error("request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
