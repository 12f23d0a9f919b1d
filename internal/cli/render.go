package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/atlekbai/query_graph/internal/config"
	"github.com/atlekbai/query_graph/internal/dialect"
	"github.com/atlekbai/query_graph/internal/document"
	"github.com/atlekbai/query_graph/internal/engine"
	"github.com/atlekbai/query_graph/internal/param"
	"github.com/atlekbai/query_graph/internal/schema"
)

const watchDebounce = 100 * time.Millisecond

type renderOptions struct {
	format string // table or json
	watch  bool
}

func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render <document>...",
		Short: "Render query documents",
		Long: `Render one or more query documents and print the SQL with its parameters.

The dialect comes from --dialect unless a document names its own. With --watch
the documents are rendered again whenever one of them changes.`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, rootOpts, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "table", "output format (table|json)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "re-render when a document changes")

	return cmd
}

func runRender(cmd *cobra.Command, rootOpts *RootOptions, opts *renderOptions, files []string) error {
	if opts.format != "table" && opts.format != "json" {
		return fmt.Errorf("invalid format %q: must be table or json", opts.format)
	}
	cfg, logger, err := rootOpts.settings()
	if err != nil {
		return err
	}
	r, err := newRenderer(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	results := r.renderAll(cmd.Context(), files)
	if err := printResults(out, opts.format, results); err != nil {
		return err
	}
	if opts.watch {
		return r.watch(cmd.Context(), files, func(results []renderResult) {
			if err := printResults(out, opts.format, results); err != nil {
				logger.Error("print failed", "error", err)
			}
		})
	}
	if n := failures(results); n > 0 {
		return fmt.Errorf("%d of %d documents failed to render", n, len(results))
	}
	return nil
}

type renderResult struct {
	File  string        `json:"file"`
	Name  string        `json:"name,omitempty"`
	Query *engine.Query `json:"query,omitempty"`
	Error string        `json:"error,omitempty"`
}

type renderer struct {
	dialect dialect.Dialect
	cache   *schema.Cache
	logger  *slog.Logger
}

func newRenderer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*renderer, error) {
	d, err := cfg.SQLDialect()
	if err != nil {
		return nil, err
	}
	cache, err := loadCatalog(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return &renderer{dialect: d, cache: cache, logger: logger}, nil
}

// loadCatalog returns nil when no catalog driver is configured.
func loadCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*schema.Cache, error) {
	if cfg.Catalog.Driver == "" {
		return nil, nil
	}
	cache, err := schema.LoadFrom(ctx, cfg.Catalog.Driver, cfg.Catalog.DSN)
	if err != nil {
		return nil, err
	}
	logger.Info("catalog loaded", "driver", cfg.Catalog.Driver, "objects", cache.ObjectCount())
	return cache, nil
}

// renderAll renders files concurrently. Results keep the order of files.
func (r *renderer) renderAll(ctx context.Context, files []string) []renderResult {
	results := make([]renderResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, file := range files {
		g.Go(func() error {
			results[i] = r.renderFile(ctx, file)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *renderer) renderFile(ctx context.Context, file string) renderResult {
	res := renderResult{File: file}
	if err := ctx.Err(); err != nil {
		res.Error = err.Error()
		return res
	}
	doc, err := document.Load(file)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Name = doc.Name
	q, err := r.render(doc)
	if err != nil {
		r.logger.Debug("render failed", "file", file, "error", err)
		res.Error = err.Error()
		return res
	}
	res.Query = q
	return res
}

func (r *renderer) render(doc *document.Document) (*engine.Query, error) {
	d := r.dialect
	if doc.Dialect != "" && doc.Dialect != d.Name {
		var err error
		if d, err = dialect.Lookup(doc.Dialect); err != nil {
			return nil, err
		}
	}
	req, err := doc.Request()
	if err != nil {
		return nil, err
	}
	opts := []engine.Option{engine.WithLogger(r.logger)}
	if r.cache != nil {
		opts = append(opts, engine.WithCatalog(r.cache))
	}
	return engine.New(d, opts...).BuildSelect(req)
}

// watch re-renders files after each burst of writes to any of them, until
// ctx is done.
func (r *renderer) watch(ctx context.Context, files []string, emit func([]renderResult)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Editors often replace files on save, so the directories are watched.
	watched := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	r.logger.Info("watching documents", "files", len(files))

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !watched[abs] {
				continue
			}
			r.logger.Debug("document changed", "file", event.Name)
			pending = time.After(watchDebounce)

		case <-pending:
			pending = nil
			emit(r.renderAll(ctx, files))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Error("watcher error", "error", err)
		}
	}
}

func failures(results []renderResult) int {
	n := 0
	for _, r := range results {
		if r.Error != "" {
			n++
		}
	}
	return n
}

func printResults(w io.Writer, format string, results []renderResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Document", "SQL", "Parameters", "Client limit"})
	for _, r := range results {
		name := r.File
		if r.Name != "" {
			name = r.Name
		}
		if r.Error != "" {
			t.AppendRow(table.Row{name, "error: " + r.Error, "", ""})
			continue
		}
		limit := ""
		if r.Query.RequiresClientSideLimit {
			limit = fmt.Sprint(r.Query.ClientSideLimit)
		}
		t.AppendRow(table.Row{name, r.Query.SQL, formatParameters(r.Query.Parameters), limit})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d documents, %d failed)\n", len(results), failures(results))
	return nil
}

func formatParameters(ps []param.Parameter) string {
	lines := make([]string, len(ps))
	for i, p := range ps {
		lines[i] = fmt.Sprintf("%s %s = %v", p.Name, p.Type, p.Value)
	}
	return strings.Join(lines, "\n")
}
