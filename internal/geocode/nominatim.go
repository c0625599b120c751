// Package geocode provides place-search suggestions for the explore search
// box.
package geocode

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/muesli/gominatim"
)

// minInterval keeps us within Nominatim's one request per second policy.
const minInterval = time.Second

type Suggestion struct {
	Name  string  `json:"display_name"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Class string  `json:"class,omitempty"`
	Type  string  `json:"type,omitempty"`
}

var (
	serverOnce sync.Once

	searchFn = func(q string, limit int) ([]gominatim.SearchResult, error) {
		query := gominatim.SearchQuery{Q: q, Limit: limit}
		return query.Get()
	}
)

// Nominatim looks places up through gominatim, caching every successful
// answer (including empty ones) in SQLite.
type Nominatim struct {
	cache  *sql.DB
	logger *slog.Logger

	throttleMu sync.Mutex
	last       time.Time
}

// NewNominatim points gominatim at server. cache may be nil.
func NewNominatim(server string, cache *sql.DB) *Nominatim {
	serverOnce.Do(func() {
		gominatim.SetServer(server)
	})
	return &Nominatim{cache: cache, logger: slog.Default().With("component", "geocode")}
}

func (n *Nominatim) Search(ctx context.Context, q string, limit int) ([]Suggestion, error) {
	q = strings.TrimSpace(q)
	if q == "" || limit <= 0 {
		return nil, nil
	}
	key := strings.ToLower(q) + "|" + strconv.Itoa(limit)

	if out, ok := n.cached(ctx, key); ok {
		return out, nil
	}

	if err := n.wait(ctx); err != nil {
		return nil, err
	}

	type result struct {
		res []gominatim.SearchResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := searchFn(q, limit)
		done <- result{res, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-done:
	}
	if r.err != nil {
		return nil, r.err
	}

	out := make([]Suggestion, 0, len(r.res))
	for _, res := range r.res {
		if res.DisplayName == "" {
			continue
		}
		lat, _ := strconv.ParseFloat(res.Lat, 64)
		lon, _ := strconv.ParseFloat(res.Lon, 64)
		out = append(out, Suggestion{Name: res.DisplayName, Lat: lat, Lon: lon, Class: res.Class, Type: res.Type})
		if len(out) >= limit {
			break
		}
	}
	n.store(ctx, key, out)
	return out, nil
}

func (n *Nominatim) wait(ctx context.Context) error {
	n.throttleMu.Lock()
	defer n.throttleMu.Unlock()
	if delta := time.Since(n.last); delta < minInterval {
		t := time.NewTimer(minInterval - delta)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	n.last = time.Now()
	return nil
}

func (n *Nominatim) cached(ctx context.Context, key string) ([]Suggestion, bool) {
	if n.cache == nil {
		return nil, false
	}
	var raw string
	err := n.cache.QueryRowContext(ctx, `SELECT json FROM geocode_cache WHERE query = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		n.logger.Warn("geocode cache read failed", "query", key, "error", err)
		return nil, false
	}
	var out []Suggestion
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		n.logger.Warn("geocode cache entry unreadable, ignoring", "query", key, "error", err)
		return nil, false
	}
	return out, true
}

func (n *Nominatim) store(ctx context.Context, key string, out []Suggestion) {
	if n.cache == nil {
		return
	}
	b, err := json.Marshal(out)
	if err != nil {
		return
	}
	if _, err := n.cache.ExecContext(ctx,
		`INSERT OR REPLACE INTO geocode_cache(query, json, fetched_at) VALUES(?, ?, CURRENT_TIMESTAMP)`,
		key, string(b)); err != nil {
		n.logger.Warn("geocode cache write failed", "query", key, "error", err)
	}
}
