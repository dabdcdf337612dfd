// Package query serves ranked, paginated and enriched user queries from the index.
//
// An empty query browses active users by recency. A non-empty query fetches
// the active users whose name or email contains the term, scores them in
// memory, and pages over the scored list. Index failures never surface to
// callers: they are logged and an empty page is returned. Only cancellation
// is reported as an error.
package query

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/syntrixbase/userindex/internal/index"
	"github.com/syntrixbase/userindex/internal/metrics"
	"github.com/syntrixbase/userindex/internal/query/config"
	"github.com/syntrixbase/userindex/pkg/model"
)

const (
	ModeBrowse = "browse"
	ModeSearch = "search"
)

// Searcher queries the index.
type Searcher interface {
	Search(ctx context.Context, q index.Query) (*index.SearchResult, error)
}

// Resolver turns a picture reference into a signed URL, or nil.
type Resolver interface {
	Resolve(ctx context.Context, ref string) *string
}

// Request is a query. Page and Limit are clamped, never rejected.
type Request struct {
	Query string `schema:"query"`
	Page  int    `schema:"page"`
	Limit int    `schema:"limit"`
}

type Engine struct {
	cfg      config.Config
	searcher Searcher
	resolver Resolver
	logger   *slog.Logger
}

func NewEngine(cfg config.Config, searcher Searcher, resolver Resolver, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.ApplyDefaults()
	return &Engine{
		cfg:      cfg,
		searcher: searcher,
		resolver: resolver,
		logger:   logger.With("component", "query"),
	}
}

// Search runs a browse or search query.
func (e *Engine) Search(ctx context.Context, req Request) (*model.UserPage, error) {
	page, limit := e.paginate(req.Page, req.Limit)
	term := normalize(req.Query)

	mode := ModeSearch
	if term == "" {
		mode = ModeBrowse
	}
	start := time.Now()
	defer func() {
		metrics.QueryDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}()

	var (
		hits  []scored
		total int64
		err   error
	)
	if mode == ModeBrowse {
		hits, total, err = e.browse(ctx, page, limit)
	} else {
		hits, total, err = e.search(ctx, term, page, limit)
	}
	if err != nil {
		if model.IsCanceled(err) {
			return nil, model.ErrCanceled
		}
		e.logger.Error("Query failed, returning empty page", "mode", mode, "error", err)
		return model.EmptyPage(), nil
	}

	users, err := e.enrich(ctx, hits)
	if err != nil {
		return nil, model.ErrCanceled
	}
	return &model.UserPage{Users: users, Total: total}, nil
}

func (e *Engine) paginate(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxLimit {
		limit = e.cfg.MaxLimit
	}
	return page, limit
}

func active() *bool {
	v := false
	return &v
}

type scored struct {
	hit   index.Hit
	score int
}

func (e *Engine) browse(ctx context.Context, page, limit int) ([]scored, int64, error) {
	res, err := e.searcher.Search(ctx, index.Query{
		Deleted: active(),
		SortBy:  []string{"-" + index.FieldUpdatedAt, "_id"},
		From:    (page - 1) * limit,
		Size:    limit,
	})
	if err != nil {
		return nil, 0, err
	}

	hits := make([]scored, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, scored{hit: h})
	}
	return hits, res.Total, nil
}

func (e *Engine) search(ctx context.Context, term string, page, limit int) ([]scored, int64, error) {
	res, err := e.searcher.Search(ctx, index.Query{
		Deleted:        active(),
		Contains:       term,
		ContainsFields: []string{index.FieldFullNameLower, index.FieldEmailLower},
		SortBy:         []string{"-" + index.FieldUpdatedAt, "_id"},
		Size:           e.cfg.CandidateCap,
	})
	if err != nil {
		return nil, 0, err
	}
	if res.Total > int64(len(res.Hits)) {
		e.logger.Debug("Candidate set truncated", "matches", res.Total, "cap", e.cfg.CandidateCap)
	}

	ranked := make([]scored, 0, len(res.Hits))
	for _, h := range res.Hits {
		if h.Doc.Deleted {
			continue
		}
		if s := Score(term, h.Doc.FullName, h.Doc.Email); s > 0 {
			ranked = append(ranked, scored{hit: h, score: s})
		}
	}
	metrics.QueryCandidates.Observe(float64(len(ranked)))

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].hit.Doc.UpdatedAt.After(ranked[j].hit.Doc.UpdatedAt)
	})

	total := int64(len(ranked))
	offset := (page - 1) * limit
	if offset >= len(ranked) {
		return nil, total, nil
	}
	return ranked[offset:min(offset+limit, len(ranked))], total, nil
}

// enrich builds the result entries, resolving picture references
// concurrently. An entry whose reference is absent or cannot be resolved
// gets a nil URL.
func (e *Engine) enrich(ctx context.Context, hits []scored) ([]model.UserEntry, error) {
	users := make([]model.UserEntry, len(hits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.EnrichConcurrency)
	for i, h := range hits {
		users[i] = model.UserEntry{
			ID:        h.hit.ID,
			Name:      h.hit.Doc.FullName,
			Email:     h.hit.Doc.Email,
			CreatedAt: h.hit.Doc.CreatedAt,
			UpdatedAt: h.hit.Doc.UpdatedAt,
			Score:     h.score,
		}
		if h.hit.Doc.Pic == "" || e.resolver == nil {
			continue
		}
		g.Go(func() error {
			users[i].SignedPicURL = e.resolver.Resolve(gctx, h.hit.Doc.Pic)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
