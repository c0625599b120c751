// Package journey decides whether a view renders the viewport-filtered
// collection or one trip's waypoints.
package journey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/metrics"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/shared/generation"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/social"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/trip"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/waypoint"
)

const opJourney = "journey"

var (
	// ErrSuperseded is returned by Enter when a later Enter, Exit or tab
	// change made its result obsolete. Nothing was applied.
	ErrSuperseded = errors.New("journey request superseded")
	// ErrTabUnavailable is returned by Enter on a tab without journey mode.
	ErrTabUnavailable = errors.New("journey mode unavailable on this tab")
	ErrUnknownTab     = errors.New("unknown tab")
)

type Tab string

const (
	TabEntries   Tab = "entries"
	TabJourneys  Tab = "journeys"
	TabFollowing Tab = "following"
	TabFollowers Tab = "followers"
)

func ParseTab(s string) (Tab, error) {
	switch t := Tab(s); t {
	case TabEntries, TabJourneys, TabFollowing, TabFollowers:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTab, s)
	}
}

// AllowsJourney reports whether journey mode may stay active on t.
func (t Tab) AllowsJourney() bool {
	return t == TabEntries || t == TabJourneys
}

type TripSource interface {
	GetTrip(ctx context.Context, id string) (trip.Trip, error)
}

type PostSource interface {
	GetPost(ctx context.Context, id string) (social.Post, error)
}

// State is the journey overlay. While Active, Waypoints is the only render
// source.
type State struct {
	Active    bool              `json:"active"`
	TripID    string            `json:"trip_id,omitempty"`
	Title     string            `json:"title,omitempty"`
	Waypoints []waypoint.Record `json:"waypoints,omitempty"`
}

func (s State) clone() State {
	s.Waypoints = slices.Clone(s.Waypoints)
	return s
}

type Reconciler struct {
	trips       TripSource
	posts       PostSource
	concurrency int
	now         func() time.Time
	logger      *slog.Logger

	gens *generation.Tracker

	mu    sync.Mutex
	tab   Tab
	state State
}

// NewReconciler starts on the entries tab with journey mode off.
// concurrency bounds the parallel post fetches of one enrichment.
func NewReconciler(trips TripSource, posts PostSource, concurrency int) *Reconciler {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Reconciler{
		trips:       trips,
		posts:       posts,
		concurrency: concurrency,
		now:         time.Now,
		logger:      slog.Default().With("component", "journey"),
		gens:        generation.NewTracker(),
		tab:         TabEntries,
	}
}

func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.clone()
}

func (r *Reconciler) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Active
}

func (r *Reconciler) Tab() Tab {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tab
}

// Enter fetches the trip, enriches its waypoints with post details, sorts
// them by effective date and activates journey mode. Entering again, even for
// the same trip, refetches and replaces. Enter blocks until the fetch is done;
// if anything superseded it meanwhile the result is dropped and ErrSuperseded
// returned.
func (r *Reconciler) Enter(ctx context.Context, tripID string) (State, error) {
	r.mu.Lock()
	if !r.tab.AllowsJourney() {
		r.mu.Unlock()
		return State{}, ErrTabUnavailable
	}
	ctx, tok := r.gens.Begin(ctx, opJourney)
	r.mu.Unlock()
	defer r.gens.Finish(tok)

	t, err := r.trips.GetTrip(ctx, tripID)
	metrics.ObserveFetch(opJourney, err)
	if err != nil {
		if !r.gens.Current(tok) {
			return State{}, ErrSuperseded
		}
		return State{}, fmt.Errorf("enter journey %s: %w", tripID, err)
	}

	records := r.enrich(ctx, waypoint.NormalizeAll(t.Waypoints, r.now()))
	SortByDate(records)

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.gens.Accept(tok) {
		r.logger.Debug("dropping superseded journey", "trip_id", tripID)
		return State{}, ErrSuperseded
	}
	r.state = State{Active: true, TripID: t.ID, Title: t.Title, Waypoints: records}
	if r.state.TripID == "" {
		r.state.TripID = tripID
	}
	return r.state.clone(), nil
}

// enrich replaces each post-backed waypoint's summary with the full post.
// Failures leave that waypoint as it was.
func (r *Reconciler) enrich(ctx context.Context, records []waypoint.Record) []waypoint.Record {
	if r.posts == nil {
		return records
	}
	var failed atomic.Int64
	iter.Iterator[waypoint.Record]{MaxGoroutines: r.concurrency}.ForEach(records, func(rec *waypoint.Record) {
		if !rec.HasPost() {
			return
		}
		post, err := r.posts.GetPost(ctx, rec.Post.ID)
		metrics.ObserveFetch("enrich", err)
		if err != nil {
			failed.Add(1)
			metrics.EnrichFailures.Inc()
			r.logger.Debug("enrichment failed", "post_id", rec.Post.ID, "error", err)
			return
		}
		rec.Post = post.Summary()
		if !rec.Renderable() && (post.Lat != 0 || post.Lon != 0) {
			rec.Lat, rec.Lon = post.Lat, post.Lon
		}
	})
	if n := failed.Load(); n > 0 {
		r.logger.Warn("journey partially enriched", "failed", n, "total", len(records))
	}
	return records
}

// Exit clears journey mode and drops any Enter still in flight. It reports
// whether journey mode was active.
func (r *Reconciler) Exit() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exitLocked()
}

func (r *Reconciler) exitLocked() bool {
	r.gens.Bump(opJourney)
	was := r.state.Active
	r.state = State{}
	return was
}

// SetTab switches the active tab. Leaving {entries, journeys} exits journey
// mode, including an Enter that has not resolved yet. It reports whether
// journey mode was exited.
func (r *Reconciler) SetTab(tab Tab) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tab = tab
	if tab.AllowsJourney() {
		return false
	}
	return r.exitLocked()
}

// Update applies fn to the journey waypoint with the given identity and
// returns the result. It reports false when journey mode is off or the
// identity is not part of the journey.
func (r *Reconciler) Update(identity string, fn func(*waypoint.Record)) (waypoint.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.state.Waypoints {
		if r.state.Waypoints[i].Identity == identity {
			fn(&r.state.Waypoints[i])
			r.state.Waypoints[i].Identity = identity
			return r.state.Waypoints[i], true
		}
	}
	return waypoint.Record{}, false
}

// Stop cancels in-flight fetches.
func (r *Reconciler) Stop() {
	r.gens.Stop()
}

// SortByDate orders records ascending by EffectiveDate, keeping ties in
// their original order.
func SortByDate(records []waypoint.Record) {
	slices.SortStableFunc(records, func(a, b waypoint.Record) int {
		return a.EffectiveDate().Compare(b.EffectiveDate())
	})
}
