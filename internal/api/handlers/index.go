package handlers

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dvloznov/persona-coach/internal/api/middleware"
	"github.com/dvloznov/persona-coach/internal/gcs"
	"github.com/dvloznov/persona-coach/internal/jobs"
	"github.com/rs/zerolog"
)

// Scraper saves a page's text under a directory.
type Scraper interface {
	Scrape(ctx context.Context, rawURL, dir string) (string, error)
}

// IndexHandler serves the knowledge-base endpoints that enqueue indexing work.
type IndexHandler struct {
	publisher jobs.Publisher
	scraper   Scraper
	scrapeDir string
	log       zerolog.Logger
}

// NewIndexHandler creates an index handler. scraper may be nil, which disables
// POST /api/scrape. scrapeDir also bounds POST /api/index: besides gs:// URIs,
// only files under a local scrapeDir may be indexed.
func NewIndexHandler(publisher jobs.Publisher, scraper Scraper, scrapeDir string, log zerolog.Logger) *IndexHandler {
	return &IndexHandler{
		publisher: publisher,
		scraper:   scraper,
		scrapeDir: scrapeDir,
		log:       log,
	}
}

type indexRequest struct {
	Source string `json:"source" validate:"required"`
}

type scrapeRequest struct {
	URL   string `json:"url" validate:"required,http_url"`
	Index bool   `json:"index"`
}

// EnqueueIndexing handles POST /api/index
func (h *IndexHandler) EnqueueIndexing(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if msg, ok := decodeJSON(w, r, &req); !ok {
		middleware.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	source, ok := h.resolveSource(req.Source)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "source must be a gs:// URI or a file under the knowledge-base directory")
		return
	}

	job, err := h.enqueue(r.Context(), source)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue indexing job")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"source": job.Source,
		"status": string(job.Status),
	})
}

// ScrapePage handles POST /api/scrape. With "index": true the saved text is
// queued for indexing.
func (h *IndexHandler) ScrapePage(w http.ResponseWriter, r *http.Request) {
	if h.scraper == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Scraping not available")
		return
	}

	var req scrapeRequest
	if msg, ok := decodeJSON(w, r, &req); !ok {
		middleware.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	location, err := h.scraper.Scrape(r.Context(), req.URL, h.scrapeDir)
	if err != nil {
		h.log.Error().Err(err).Str("url", req.URL).Msg("Failed to scrape page")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to scrape page")
		return
	}

	resp := map[string]string{"location": location}
	if !req.Index {
		middleware.WriteJSON(w, http.StatusOK, resp)
		return
	}

	job, err := h.enqueue(r.Context(), location)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue indexing job")
		return
	}
	resp["job_id"] = job.JobID
	resp["status"] = string(job.Status)
	middleware.WriteJSON(w, http.StatusAccepted, resp)
}

func (h *IndexHandler) enqueue(ctx context.Context, source string) (*jobs.IndexDocumentJob, error) {
	job := &jobs.IndexDocumentJob{Source: source}
	if err := h.publisher.PublishIndexDocument(ctx, job); err != nil {
		h.log.Error().Err(err).Str("source", source).Msg("Failed to enqueue indexing job")
		return nil, err
	}

	h.log.Info().Str("job_id", job.JobID).Str("source", source).Msg("Indexing job enqueued")
	return job, nil
}

// resolveSource accepts gs:// object URIs and relative paths that stay inside a
// local scrapeDir. A path may name the directory ("data/guide.pdf") or be
// relative to it ("guide.pdf"); either way the joined path is returned.
func (h *IndexHandler) resolveSource(source string) (string, bool) {
	source = strings.TrimSpace(source)
	if gcs.IsURI(source) {
		_, _, err := gcs.ParseURI(source)
		return source, err == nil
	}
	if h.scrapeDir == "" || gcs.IsURI(h.scrapeDir) || filepath.IsAbs(source) {
		return "", false
	}

	root := filepath.Clean(h.scrapeDir)
	path := filepath.Clean(source)
	if !within(root, path) {
		path = filepath.Join(root, path)
	}
	if !within(root, path) {
		return "", false
	}
	return path, true
}

// within reports whether path names an entry strictly below root.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
