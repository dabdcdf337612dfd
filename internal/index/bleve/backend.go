// Package bleve stores the users index in a bleve/v2 index.
package bleve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/syntrixbase/userindex/internal/index"
)

// Backend is an index.Backend on bleve. An empty path keeps the index in
// memory, which is what tests and ephemeral deployments use.
type Backend struct {
	mu     sync.RWMutex
	idx    bleve.Index
	path   string
	closed bool
	logger *slog.Logger
}

var _ index.Backend = (*Backend)(nil)

func New(path string, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{path: path, logger: logger.With("component", "bleve")}
}

func (b *Backend) Exists(_ context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false, index.ErrIndexClosed
	}
	if b.idx != nil {
		return true, nil
	}
	if b.path == "" {
		return false, nil
	}

	idx, err := bleve.Open(b.path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return false, nil
	}
	if err != nil {
		// A damaged index is reported missing so Create can rebuild it.
		if isCorruptionError(err) {
			b.logger.Warn("Index unreadable, will recreate", "path", b.path, "error", err)
			return false, nil
		}
		return false, fmt.Errorf("open index %s: %w", b.path, err)
	}
	b.idx = idx
	return true, nil
}

func (b *Backend) Create(_ context.Context, m index.Mapping) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return index.ErrIndexClosed
	}
	if b.idx != nil {
		return nil
	}

	im, err := buildMapping(m)
	if err != nil {
		return err
	}

	if b.path == "" {
		idx, err := bleve.NewMemOnly(im)
		if err != nil {
			return fmt.Errorf("create in-memory index: %w", err)
		}
		b.idx = idx
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	idx, err := bleve.Open(b.path)
	switch {
	case err == nil:
	case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
		idx, err = bleve.New(b.path, im)
	case isCorruptionError(err):
		b.logger.Warn("Removing corrupted index", "path", b.path, "error", err)
		if rmErr := os.RemoveAll(b.path); rmErr != nil {
			return fmt.Errorf("remove corrupted index %s: %w (open error: %v)", b.path, rmErr, err)
		}
		idx, err = bleve.New(b.path, im)
	}
	if err != nil {
		return fmt.Errorf("create index %s: %w", b.path, err)
	}

	b.idx = idx
	b.logger.Info("Opened index", "path", b.path)
	return nil
}

func (b *Backend) Index(_ context.Context, id string, doc *index.Document) error {
	idx, unlock, err := b.acquire()
	if err != nil {
		return err
	}
	defer unlock()

	if err := idx.Index(id, toFields(doc)); err != nil {
		return fmt.Errorf("index document %s: %w", id, err)
	}
	return nil
}

func (b *Backend) Delete(_ context.Context, id string) error {
	idx, unlock, err := b.acquire()
	if err != nil {
		return err
	}
	defer unlock()

	if err := idx.Delete(id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

func (b *Backend) Search(ctx context.Context, q index.Query) (*index.SearchResult, error) {
	idx, unlock, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer unlock()

	req := bleve.NewSearchRequestOptions(buildQuery(q), q.Size, q.From, false)
	if len(q.SortBy) > 0 {
		req.SortBy(q.SortBy)
	}
	req.Fields = []string{
		index.FieldFullName,
		index.FieldEmail,
		index.FieldPic,
		index.FieldDeleted,
		index.FieldCreatedAt,
		index.FieldUpdatedAt,
		index.FieldCreatedAtExact,
		index.FieldUpdatedAtExact,
	}

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	out := &index.SearchResult{
		Hits:  make([]index.Hit, 0, len(res.Hits)),
		Total: int64(res.Total),
	}
	for _, h := range res.Hits {
		out.Hits = append(out.Hits, index.Hit{ID: h.ID, Doc: fromFields(h.Fields)})
	}
	return out, nil
}

func (b *Backend) Count(_ context.Context) (uint64, error) {
	idx, unlock, err := b.acquire()
	if err != nil {
		return 0, err
	}
	defer unlock()
	return idx.DocCount()
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.idx == nil {
		return nil
	}
	err := b.idx.Close()
	b.idx = nil
	return err
}

// acquire read-locks the backend and returns the open index.
func (b *Backend) acquire() (bleve.Index, func(), error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, nil, index.ErrIndexClosed
	}
	if b.idx == nil {
		b.mu.RUnlock()
		return nil, nil, index.ErrIndexNotFound
	}
	return b.idx, b.mu.RUnlock, nil
}

func buildMapping(m index.Mapping) (*mapping.IndexMappingImpl, error) {
	doc := bleve.NewDocumentStaticMapping()
	for _, f := range m.Fields {
		var fm *mapping.FieldMapping
		switch f.Type {
		case index.FieldText:
			fm = bleve.NewTextFieldMapping()
		case index.FieldKeyword:
			fm = bleve.NewKeywordFieldMapping()
		case index.FieldBoolean:
			fm = bleve.NewBooleanFieldMapping()
		case index.FieldDateTime:
			fm = bleve.NewDateTimeFieldMapping()
		case index.FieldStored:
			fm = bleve.NewKeywordFieldMapping()
			fm.Index = false
			fm.DocValues = false
		default:
			return nil, fmt.Errorf("field %s: unsupported type %d", f.Name, f.Type)
		}
		fm.Store = f.Store
		fm.IncludeInAll = false
		doc.AddFieldMappingsAt(f.Name, fm)
	}

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.IndexDynamic = false
	im.StoreDynamic = false
	im.DocValuesDynamic = false
	return im, nil
}

func toFields(d *index.Document) map[string]any {
	return map[string]any{
		index.FieldFullName:      d.FullName,
		index.FieldFullNameLower: strings.ToLower(d.FullName),
		index.FieldEmail:         d.Email,
		index.FieldEmailLower:    strings.ToLower(d.Email),
		index.FieldPic:           d.Pic,
		index.FieldDeleted:       d.Deleted,
		index.FieldCreatedAt:     d.CreatedAt.UTC(),
		index.FieldUpdatedAt:     d.UpdatedAt.UTC(),

		index.FieldCreatedAtExact: d.CreatedAt.UTC().Format(time.RFC3339Nano),
		index.FieldUpdatedAtExact: d.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromFields(fields map[string]any) index.Document {
	var d index.Document
	d.FullName, _ = fields[index.FieldFullName].(string)
	d.Email, _ = fields[index.FieldEmail].(string)
	d.Pic, _ = fields[index.FieldPic].(string)
	d.Deleted, _ = fields[index.FieldDeleted].(bool)
	d.CreatedAt = exactTime(fields, index.FieldCreatedAtExact, index.FieldCreatedAt)
	d.UpdatedAt = exactTime(fields, index.FieldUpdatedAtExact, index.FieldUpdatedAt)
	return d
}

// exactTime prefers the verbatim timestamp and falls back to the datetime
// field for documents written before the exact fields existed.
func exactTime(fields map[string]any, exact, coarse string) time.Time {
	if t := parseTime(fields[exact]); !t.IsZero() {
		return t
	}
	return parseTime(fields[coarse])
}

func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC()
			}
		}
	}
	return time.Time{}
}

func buildQuery(q index.Query) query.Query {
	var must []query.Query

	if q.Deleted != nil {
		bq := bleve.NewBoolFieldQuery(*q.Deleted)
		bq.SetField(index.FieldDeleted)
		must = append(must, bq)
	}

	if q.Contains != "" && len(q.ContainsFields) > 0 {
		pattern := ".*" + regexp.QuoteMeta(strings.ToLower(q.Contains)) + ".*"
		var anyOf []query.Query
		for _, field := range q.ContainsFields {
			rq := bleve.NewRegexpQuery(pattern)
			rq.SetField(field)
			anyOf = append(anyOf, rq)
		}
		must = append(must, bleve.NewDisjunctionQuery(anyOf...))
	}

	switch len(must) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return must[0]
	default:
		return bleve.NewConjunctionQuery(must...)
	}
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, bleve.ErrorIndexMetaCorrupt) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment")
}
