// Package engine assembles an annotated query graph into a single SELECT
// statement with dialect-specific DISTINCT, row-limit and parameter decisions.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/atlekbai/query_graph/internal/alias"
	"github.com/atlekbai/query_graph/internal/dialect"
	"github.com/atlekbai/query_graph/internal/graph"
	"github.com/atlekbai/query_graph/internal/param"
	"github.com/atlekbai/query_graph/internal/resolve"
)

// Engine builds statements for one dialect. It holds no per-build state and
// may be shared between goroutines; graphs passed to it may not.
type Engine struct {
	dialect  dialect.Dialect
	resolver *resolve.Resolver
	joins    JoinRenderer
	logger   *slog.Logger
}

type Option func(*Engine)

// WithLogger sets the logger used for build decisions.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithCatalog resolves plain fields against c.
func WithCatalog(c resolve.Catalog) Option {
	return func(e *Engine) {
		e.resolver = resolve.New(c)
	}
}

// WithJoinRenderer replaces the default join-text renderer.
func WithJoinRenderer(r JoinRenderer) Option {
	return func(e *Engine) {
		if r != nil {
			e.joins = r
		}
	}
}

// New returns an engine for d.
func New(d dialect.Dialect, opts ...Option) *Engine {
	e := &Engine{
		dialect:  d,
		resolver: resolve.New(nil),
		joins:    DefaultJoins{},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dialect returns the dialect the engine renders for.
func (e *Engine) Dialect() dialect.Dialect { return e.dialect }

// SelectRequest is everything a SELECT is built from. Only Fields is required.
type SelectRequest struct {
	Fields          []*graph.Field
	Filter          *graph.PredicateExpression
	Relations       *graph.RelationCollection
	Sorter          *graph.SortExpression
	GroupBy         *graph.GroupByCollection
	Limit           int64
	AllowDuplicates bool
}

// Query is a finished statement.
type Query struct {
	SQL        string            `json:"sql"`
	Parameters []param.Parameter `json:"parameters"`

	// RequiresClientSideLimit is set when the row limit could not be written
	// into the statement; the caller must stop reading after ClientSideLimit rows.
	RequiresClientSideLimit bool  `json:"requires_client_side_limit"`
	ClientSideLimit         int64 `json:"client_side_limit,omitempty"`
}

// Args returns the parameter values in placeholder order.
func (q *Query) Args() []any {
	args := make([]any, len(q.Parameters))
	for i, p := range q.Parameters {
		args[i] = p.Value
	}
	return args
}

// BuildSelect validates req, annotates its graph in place and renders it.
func (e *Engine) BuildSelect(req SelectRequest) (*Query, error) {
	if len(req.Fields) == 0 {
		return nil, &ValidationError{Reason: "no fields selected"}
	}
	if err := validateGroupBy(req.Fields, req.GroupBy); err != nil {
		return nil, err
	}

	w := e.resolver.NewWalker()
	descriptors := w.Fields(req.Fields)
	w.PredicateExpression(req.Filter)
	w.Relations(req.Relations)
	w.Sorter(req.Sorter)
	w.GroupBy(req.GroupBy)
	e.logger.Debug("graph annotated", "fields", w.Resolved())

	b := &build{
		engine:  e,
		walker:  w,
		aliases: alias.New(req.Relations),
		params:  param.NewFactory(e.dialect),
	}
	st, err := b.selectStatement(statement{
		fields:          req.Fields,
		descriptors:     descriptors,
		filter:          req.Filter,
		relations:       req.Relations,
		sorter:          req.Sorter,
		groupBy:         req.GroupBy,
		limit:           req.Limit,
		allowDuplicates: req.AllowDuplicates,
	})
	if err != nil {
		return nil, err
	}
	return e.finish(st, req.Limit)
}

// finish rewrites "?" markers into the dialect's placeholders and names the
// parameters in order.
func (e *Engine) finish(st *rendered, limit int64) (*Query, error) {
	sql, err := e.dialect.Format().ReplacePlaceholders(st.sql)
	if err != nil {
		return nil, fmt.Errorf("replace placeholders: %w", err)
	}
	q := &Query{
		SQL:        sql,
		Parameters: make([]param.Parameter, 0, len(st.args)),
	}
	factory := param.NewFactory(e.dialect)
	for i, a := range st.args {
		p, ok := a.(param.Parameter)
		if !ok {
			p = factory.Create(a)
		}
		p.Name = e.dialect.ParameterName(i + 1)
		q.Parameters = append(q.Parameters, p)
	}
	if st.clientLimit {
		q.RequiresClientSideLimit = true
		q.ClientSideLimit = limit
	}
	return q, nil
}

// validateGroupBy requires every non-aggregated selected field to be grouped
// on when a group-by is present.
func validateGroupBy(fields []*graph.Field, g *graph.GroupByCollection) error {
	if g.Len() == 0 {
		return nil
	}
	for _, f := range fields {
		if f.Aggregate != graph.AggNone {
			continue
		}
		if !g.Contains(f) {
			return &ValidationError{
				Field:  f.Owner() + "." + f.Name,
				Reason: "is selected but not part of the group-by",
			}
		}
	}
	return nil
}
