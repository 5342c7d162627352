// Package api exposes the crawl service over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/logging"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/report"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/service"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/task"
)

const maxRequestBody = 1 << 20

type crawlRequest struct {
	URL       string `json:"url"`
	MaxPages  int    `json:"max_pages"`
	LargeSite bool   `json:"large_site"`
	SizeHint  int    `json:"size_hint"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves the task endpoints.
type Handler struct {
	service *service.Service
	logger  *zap.Logger
	mux     *http.ServeMux
}

// New builds the routes for svc.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	logger = logging.OrNop(logger)

	h := &Handler{service: svc, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /crawl", h.startCrawl)
	h.mux.HandleFunc("GET /tasks", h.listTasks)
	h.mux.HandleFunc("GET /tasks/{id}", h.getStatus)
	h.mux.HandleFunc("POST /tasks/{id}/cancel", h.cancelCrawl)
	h.mux.HandleFunc("GET /tasks/{id}/sitemap.xml", h.downloadSitemap)
	h.mux.HandleFunc("GET /tasks/{id}/report", h.downloadReport)
	h.mux.HandleFunc("POST /tasks/{id}/analysis", h.analyze)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) startCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)

		return
	}

	created, err := h.service.StartCrawl(r.Context(), req.URL, service.StartOptions{
		MaxPages:  req.MaxPages,
		LargeSite: req.LargeSite,
		SizeHint:  req.SizeHint,
	})
	if err != nil {
		h.writeServiceError(w, err)

		return
	}

	h.writeJSON(w, http.StatusAccepted, created)
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err)

		return
	}

	h.writeJSON(w, http.StatusOK, tasks)
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	current, err := h.service.GetStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)

		return
	}

	h.writeJSON(w, http.StatusOK, current)
}

func (h *Handler) cancelCrawl(w http.ResponseWriter, r *http.Request) {
	if err := h.service.CancelCrawl(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, err)

		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) downloadSitemap(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.DownloadSitemap(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)

		return
	}

	h.writeBody(w, "application/xml; charset=utf-8", "", data)
}

func (h *Handler) downloadReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	data, reportType, err := h.service.DownloadReport(r.Context(), id, r.URL.Query().Get("type"))
	if err != nil {
		h.writeServiceError(w, err)

		return
	}

	h.writeBody(w, reportType.ContentType(), "report-"+id+"."+string(reportType), data)
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Analyze(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)

		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, task.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidURL), errors.Is(err, report.ErrUnknownType):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotCompleted), errors.Is(err, task.ErrInvalidTransition):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}

	h.writeError(w, status, err)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(value); err != nil {
		h.logger.Warn("write response", zap.Error(err))
	}
}

func (h *Handler) writeBody(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if filename != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	}
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(data); err != nil {
		h.logger.Warn("write response", zap.Error(err))
	}
}
