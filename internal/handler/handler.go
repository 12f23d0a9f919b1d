package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/atlekbai/query_graph/internal/dialect"
	"github.com/atlekbai/query_graph/internal/document"
	"github.com/atlekbai/query_graph/internal/engine"
	"github.com/atlekbai/query_graph/internal/schema"
)

// maxBodyBytes caps request documents.
const maxBodyBytes = 1 << 20

var (
	errBadDocument = errors.New("invalid query document")
	errBadDialect  = errors.New("invalid dialect")
)

type Handler struct {
	dialect dialect.Dialect
	cache   *schema.Cache
	logger  *slog.Logger
}

// New returns a handler rendering for d. cache may be nil when no catalog is
// configured.
func New(d dialect.Dialect, cache *schema.Cache, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{dialect: d, cache: cache, logger: logger}
}

// Render handles POST /v1/render
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	doc, err := document.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DOCUMENT", "Invalid query document", err.Error())
		return
	}

	q, err := h.render(doc, r.URL.Query().Get("dialect"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type batchResult struct {
	Name  string         `json:"name,omitempty"`
	Query *engine.Query  `json:"query,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// RenderBatch handles POST /v1/render/batch. Documents are rendered
// concurrently; each result carries either its query or its error.
func (h *Handler) RenderBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := document.DecodeBatch(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DOCUMENT", "Invalid batch", err.Error())
		return
	}
	dialectName := r.URL.Query().Get("dialect")

	results := make([]batchResult, len(batch.Documents))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range batch.Documents {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc := &batch.Documents[i]
			results[i].Name = doc.Name
			q, err := h.render(doc, dialectName)
			if err != nil {
				_, resp := classify(err)
				results[i].Error = &resp
				return nil
			}
			results[i].Query = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "CANCELED", "Batch canceled", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// Object handles GET /v1/catalog/{object}
func (h *Handler) Object(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "object")
	var obj *schema.ObjectDef
	if h.cache != nil {
		obj = h.cache.Get(name)
	}
	if obj == nil {
		writeError(w, http.StatusNotFound, "OBJECT_NOT_FOUND",
			"Object not found",
			"No catalog object named '"+name+"'")
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	objects := 0
	if h.cache != nil {
		objects = h.cache.ObjectCount()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"dialect": h.dialect.Name,
		"objects": objects,
	})
}

// render picks the dialect (query parameter, then document, then the
// handler's own) and builds doc.
func (h *Handler) render(doc *document.Document, dialectName string) (*engine.Query, error) {
	if dialectName == "" {
		dialectName = doc.Dialect
	}
	d := h.dialect
	if dialectName != "" && dialectName != d.Name {
		var err error
		if d, err = dialect.Lookup(dialectName); err != nil {
			return nil, fmt.Errorf("%w: %w", errBadDialect, err)
		}
	}

	req, err := doc.Request()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBadDocument, err)
	}

	opts := []engine.Option{engine.WithLogger(h.logger)}
	if h.cache != nil {
		opts = append(opts, engine.WithCatalog(h.cache))
	}
	q, err := engine.New(d, opts...).BuildSelect(req)
	if err != nil {
		h.logger.Debug("render failed", "document", doc.Name, "error", err)
		return nil, err
	}
	return q, nil
}
