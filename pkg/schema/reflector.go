// Package schema discovers the live column set of a company's tables and caches it.
package schema

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
)

// ColumnSet is the set of live column names of one table. Lookups ignore case.
type ColumnSet struct {
	columns map[string]string
}

// NewColumnSet builds a set from introspected column names. Blank names are ignored.
func NewColumnSet(names ...string) ColumnSet {
	set := ColumnSet{columns: make(map[string]string, len(names))}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		set.columns[strings.ToLower(name)] = name
	}
	return set
}

// Has reports whether column exists, ignoring case
func (s ColumnSet) Has(column string) bool {
	_, ok := s.columns[strings.ToLower(column)]
	return ok
}

// Len returns the number of columns
func (s ColumnSet) Len() int {
	return len(s.columns)
}

// Names returns the columns as introspected
func (s ColumnSet) Names() []string {
	names := make([]string, 0, len(s.columns))
	for _, name := range s.columns {
		names = append(names, name)
	}
	return names
}

// ColumnSource runs the dialect introspection query for a table.
type ColumnSource interface {
	TableColumns(ctx context.Context, table string) ([]string, error)
}

type cacheKey struct {
	companyID int64
	table     string
}

func (k cacheKey) String() string {
	return strconv.FormatInt(k.companyID, 10) + ":" + k.table
}

type cacheEntry struct {
	columns  ColumnSet
	loadedAt time.Time
}

// Reflector caches column sets per (company, table).
type Reflector struct {
	ttl    time.Duration
	logger ectologger.Logger
	now    func() time.Time

	mu    sync.RWMutex
	cache map[cacheKey]cacheEntry

	// concurrent misses on the same key share one introspection query
	loads singleflight.Group
}

// NewReflector creates a reflector. A ttl of zero keeps entries for the life of the process.
func NewReflector(ttl time.Duration, logger ectologger.Logger) *Reflector {
	return &Reflector{
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		cache:  make(map[cacheKey]cacheEntry),
	}
}

// Columns returns the cached column set for the table or introspects it through src.
func (r *Reflector) Columns(ctx context.Context, companyID int64, table string, src ColumnSource) (ColumnSet, error) {
	key := cacheKey{companyID: companyID, table: strings.ToLower(table)}

	if columns, ok := r.lookup(key); ok {
		metrics.RecordCacheLookup("schema", true)
		return columns, nil
	}
	metrics.RecordCacheLookup("schema", false)

	v, err, _ := r.loads.Do(key.String(), func() (any, error) {
		return r.load(ctx, key, table, src)
	})
	if err != nil {
		return ColumnSet{}, err
	}
	return v.(ColumnSet), nil
}

func (r *Reflector) load(ctx context.Context, key cacheKey, table string, src ColumnSource) (ColumnSet, error) {
	// another caller may have filled the entry while this one waited for the flight
	if columns, ok := r.lookup(key); ok {
		return columns, nil
	}

	names, err := src.TableColumns(ctx, table)
	if err != nil {
		return ColumnSet{}, apperrors.Wrapf(apperrors.KindTransport, err, "failed to introspect table %s", table).AddCompany(key.companyID)
	}

	columns := NewColumnSet(names...)
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"company_id": strconv.FormatInt(key.companyID, 10),
		"table":      table,
		"columns":    columns.Len(),
	}).Debug("Loaded table columns")

	// An empty result is not cached so a table created later becomes visible.
	if columns.Len() > 0 {
		r.mu.Lock()
		r.cache[key] = cacheEntry{columns: columns, loadedAt: r.now()}
		r.mu.Unlock()
	}

	return columns, nil
}

func (r *Reflector) lookup(key cacheKey) (ColumnSet, bool) {
	r.mu.RLock()
	entry, ok := r.cache[key]
	r.mu.RUnlock()
	if !ok {
		return ColumnSet{}, false
	}
	if r.ttl > 0 && r.now().Sub(entry.loadedAt) >= r.ttl {
		return ColumnSet{}, false
	}
	return entry.columns, true
}

// Invalidate drops the cached columns of one table
func (r *Reflector) Invalidate(companyID int64, table string) {
	r.mu.Lock()
	delete(r.cache, cacheKey{companyID: companyID, table: strings.ToLower(table)})
	r.mu.Unlock()
}

// InvalidateCompany drops every cached table of a company
func (r *Reflector) InvalidateCompany(companyID int64) {
	r.mu.Lock()
	for key := range r.cache {
		if key.companyID == companyID {
			delete(r.cache, key)
		}
	}
	r.mu.Unlock()
}

// InvalidateAll clears the cache
func (r *Reflector) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[cacheKey]cacheEntry)
	r.mu.Unlock()
}
