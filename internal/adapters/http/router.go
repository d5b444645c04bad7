package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/mkorchagin/photostock/internal/core/domain"
	"github.com/mkorchagin/photostock/internal/core/ports"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// catalogExporter renders the catalog to a spreadsheet on disk and
// reports how many rows it wrote.
type catalogExporter interface {
	Export(ctx context.Context, path string, status domain.ProcessingStatus) (int, error)
}

// Router serves the read-only catalog browse API on top of the image
// read model. Thumbnails are streamed straight from disk using the
// path recorded on the image row.
type Router struct {
	images         ports.ImageReader
	exporter       catalogExporter
	metricsHandler http.Handler
}

func NewRouter(images ports.ImageReader, exporter catalogExporter, metricsHandler http.Handler) *Router {
	return &Router{
		images:         images,
		exporter:       exporter,
		metricsHandler: metricsHandler,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/images", rt.listImages)
	mux.HandleFunc("/v1/images/", rt.getImageByID)
	mux.HandleFunc("/v1/stats", rt.stats)
	mux.HandleFunc("/v1/thumbnails/", rt.serveThumbnail)
	if rt.exporter != nil {
		mux.HandleFunc("/v1/export", rt.exportCatalog)
	}
	if rt.metricsHandler != nil {
		mux.Handle("/metrics", rt.metricsHandler)
	}
	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) listImages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil || limit < 1 || limit > maxListLimit {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	status, ok := parseStatus(r.URL.Query().Get("status"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown status filter")
		return
	}

	images, err := rt.images.List(r.Context(), limit, offset, status)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	if images == nil {
		images = []domain.Image{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"images": images,
		"limit":  limit,
		"offset": offset,
	})
}

func (rt *Router) getImageByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, ok := pathID(r.URL.Path, "/v1/images/")
	if !ok {
		writeError(w, http.StatusBadRequest, "image id must be a positive integer")
		return
	}

	img, err := rt.images.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, img)
}

func (rt *Router) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	counts, err := rt.images.CountByStatus(r.Context())
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	total := 0
	byStatus := make(map[string]int, len(counts))
	for status, count := range counts {
		byStatus[string(status)] = count
		total += count
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":     total,
		"by_status": byStatus,
	})
}

func (rt *Router) serveThumbnail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, ok := pathID(r.URL.Path, "/v1/thumbnails/")
	if !ok {
		writeError(w, http.StatusBadRequest, "image id must be a positive integer")
		return
	}

	img, err := rt.images.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	if img.ThumbnailPath == "" {
		writeError(w, http.StatusNotFound, "image has no thumbnail")
		return
	}
	if _, err := os.Stat(img.ThumbnailPath); err != nil {
		writeError(w, http.StatusNotFound, "thumbnail file is missing")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	http.ServeFile(w, r, img.ThumbnailPath)
}

func (rt *Router) exportCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status, ok := parseStatus(r.URL.Query().Get("status"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown status filter")
		return
	}

	tmp, err := os.CreateTemp("", "catalog-*.xlsx")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cannot create export file")
		return
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	rows, err := rt.exporter.Export(r.Context(), tmpPath, status)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="catalog.xlsx"`)
	w.Header().Set("X-Export-Rows", strconv.Itoa(rows))
	http.ServeFile(w, r, tmpPath)
}

func parseStatus(raw string) (domain.ProcessingStatus, bool) {
	switch domain.ProcessingStatus(strings.TrimSpace(raw)) {
	case "", domain.StatusPending, domain.StatusProcessing, domain.StatusCompleted, domain.StatusFailed:
		return domain.ProcessingStatus(strings.TrimSpace(raw)), true
	default:
		return "", false
	}
}

func pathID(path, prefix string) (int64, bool) {
	raw := strings.TrimPrefix(path, prefix)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
