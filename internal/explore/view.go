// Package explore is the per-device map view: the merged waypoint
// collection, the viewport, journey mode, the drawer and the search box,
// reconciled into one render snapshot.
package explore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/drawer"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/geocode"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/journey"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/metrics"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/shared/generation"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/shared/geo"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/social"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/trip"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/waypoint"
)

const (
	opPage    = "page"
	opSuggest = "suggest"

	defaultPageLimit    = 200
	defaultSuggestLimit = 5
	// selectZoom is the zoom used when centering on a selected marker.
	selectZoom = 12
)

var (
	ErrViewNotFound   = errors.New("view not found")
	ErrRecordNotFound = errors.New("record not found")
	ErrNoPost         = errors.New("waypoint has no journal entry")
	ErrInvalidBounds  = errors.New("invalid bounds")

	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrSuggestionNotFound = errors.New("suggestion not found")
)

type PageSource interface {
	QueryWaypoints(ctx context.Context, q waypoint.Query) ([]waypoint.Raw, error)
}

type PostSource interface {
	GetPost(ctx context.Context, id string) (social.Post, error)
}

type TripSource interface {
	GetTrip(ctx context.Context, id string) (trip.Trip, error)
}

type Mutator interface {
	ToggleBookmark(ctx context.Context, userID, postID string) (bool, error)
	ToggleFollow(ctx context.Context, followerID, followingID string) (bool, error)
}

type Suggester interface {
	Search(ctx context.Context, q string, limit int) ([]geocode.Suggestion, error)
}

// Sources are the collaborators a view reads from and writes through.
// Suggestions may be nil.
type Sources struct {
	Pages       PageSource
	Trips       TripSource
	Posts       PostSource
	Mutations   Mutator
	Suggestions Suggester
}

type Options struct {
	CenteringGuard    time.Duration
	SuggestDebounce   time.Duration
	EnrichConcurrency int
	PageLimit         int
	SuggestLimit      int
	Now               func() time.Time
}

func (o Options) withDefaults() Options {
	if o.PageLimit <= 0 {
		o.PageLimit = defaultPageLimit
	}
	if o.SuggestLimit <= 0 {
		o.SuggestLimit = defaultSuggestLimit
	}
	if o.EnrichConcurrency <= 0 {
		o.EnrichConcurrency = 1
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Scope is the browsing context the collection belongs to.
type Scope struct {
	Search        string `json:"search,omitempty"`
	JournalUserID string `json:"journal_user_id,omitempty"`
}

// Alert is a dismissible message about a failed user action.
type Alert struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Camera is the last map command issued to the renderer.
type Camera struct {
	Seq    uint64      `json:"seq"`
	Center *geo.Point  `json:"center,omitempty"`
	Zoom   float64     `json:"zoom,omitempty"`
	Fit    *geo.Bounds `json:"fit,omitempty"`
}

type View struct {
	id     string
	userID string
	src    Sources
	opts   Options
	logger *slog.Logger

	journey   *journey.Reconciler
	drawer    *drawer.Machine
	gens      *generation.Tracker
	debouncer *geocode.Debouncer

	lifetime context.Context
	stop     context.CancelFunc

	mu          sync.Mutex
	collection  *waypoint.Collection
	scope       Scope
	bounds      *geo.Bounds
	selected    string
	guardUntil  time.Time
	camera      *Camera
	animation   []drawer.Stage
	suggestions []geocode.Suggestion
	alerts      []Alert
	following   map[string]bool
	revision    uint64
	listeners   []func(Snapshot)
}

func NewView(id, userID string, src Sources, opts Options) *View {
	opts = opts.withDefaults()
	lifetime, stop := context.WithCancel(context.Background())
	v := &View{
		id:         id,
		userID:     userID,
		src:        src,
		opts:       opts,
		logger:     slog.Default().With("component", "explore", "view_id", id),
		journey:    journey.NewReconciler(src.Trips, src.Posts, opts.EnrichConcurrency),
		drawer:     drawer.NewMachine(src.Posts),
		gens:       generation.NewTracker(),
		debouncer:  geocode.NewDebouncer(opts.SuggestDebounce),
		lifetime:   lifetime,
		stop:       stop,
		collection: waypoint.NewCollection(),
		following:  map[string]bool{},
	}
	v.drawer.Subscribe(v.onDrawer)
	return v
}

func (v *View) ID() string     { return v.id }
func (v *View) UserID() string { return v.userID }

// OnChange registers fn for every snapshot change. fn must not call back
// into the view synchronously.
func (v *View) OnChange(fn func(Snapshot)) {
	v.mu.Lock()
	v.listeners = append(v.listeners, fn)
	v.mu.Unlock()
}

// changed bumps the revision and notifies listeners. Callers must not hold
// v.mu.
func (v *View) changed() {
	v.mu.Lock()
	v.revision++
	listeners := slices.Clone(v.listeners)
	v.mu.Unlock()
	if len(listeners) == 0 {
		return
	}
	snap := v.Snapshot()
	for _, fn := range listeners {
		fn(snap)
	}
}

func (v *View) onDrawer(st drawer.State, tr drawer.Transition) {
	v.mu.Lock()
	if tr.From != tr.To {
		v.animation = drawer.Plan(tr)
	}
	if st.Phase == drawer.Closed {
		v.selected = ""
	}
	v.mu.Unlock()
	v.changed()
}

// SetBounds records the viewport and fetches the page for it. The fetch is
// skipped inside the centering guard window and in journey mode; the bounds
// still apply to filtering.
func (v *View) SetBounds(ctx context.Context, b geo.Bounds) error {
	if !b.Valid() {
		return fmt.Errorf("%w: north %v < south %v", ErrInvalidBounds, b.North, b.South)
	}
	v.mu.Lock()
	v.bounds = &b
	guarded := v.opts.Now().Before(v.guardUntil)
	v.mu.Unlock()
	v.changed()

	if guarded {
		v.logger.Debug("bounds change inside centering guard, not refetching")
		return nil
	}
	if v.journey.Active() {
		return nil
	}
	return v.fetchPage(ctx)
}

// fetchPage loads one page for the current scope and bounds and merges it.
// Page failures are logged and otherwise invisible.
func (v *View) fetchPage(ctx context.Context) error {
	v.mu.Lock()
	q := waypoint.Query{
		UserID: v.scope.JournalUserID,
		Search: v.scope.Search,
		Limit:  v.opts.PageLimit,
	}
	if v.bounds != nil {
		b := *v.bounds
		q.Bounds = &b
	}
	ctx, tok := v.gens.Begin(ctx, opPage)
	v.mu.Unlock()
	defer v.gens.Finish(tok)

	raws, err := v.src.Pages.QueryWaypoints(ctx, q)
	metrics.ObserveFetch(opPage, err)

	v.mu.Lock()
	if !v.gens.Accept(tok) {
		v.mu.Unlock()
		return nil
	}
	if err != nil {
		v.mu.Unlock()
		v.logger.Warn("page fetch failed", "error", err)
		return nil
	}
	added := v.collection.MergeRaw(raws, v.opts.Now())
	var refreshed *waypoint.Record
	if v.selected != "" {
		if rec, ok := v.collection.Get(v.selected); ok {
			refreshed = &rec
		}
	}
	v.mu.Unlock()

	if refreshed != nil {
		v.drawer.Refresh(*refreshed)
	}
	v.logger.Debug("page merged", "received", len(raws), "added", added)
	v.changed()
	return nil
}

// ResetContext empties the collection for a new browsing context and loads
// its first page. Anything in flight for the old context is dropped.
func (v *View) ResetContext(ctx context.Context, scope Scope) error {
	v.mu.Lock()
	v.gens.Bump(opPage)
	v.collection.Reset()
	v.scope = scope
	v.selected = ""
	v.mu.Unlock()

	v.drawer.Close(false)
	v.changed()

	if v.journey.Active() {
		return nil
	}
	return v.fetchPage(ctx)
}

// SetTab switches the tab. Leaving the tabs that allow journey mode exits it,
// and the viewport page is refreshed.
func (v *View) SetTab(ctx context.Context, tab journey.Tab) error {
	exited := v.journey.SetTab(tab)
	if exited {
		v.closeDrawerIfGone()
		v.changed()
		return v.fetchPage(ctx)
	}
	v.changed()
	return nil
}

// EnterJourney switches to one trip's waypoints and fits the map to them.
// Read failures are logged; a superseded request is silently dropped.
func (v *View) EnterJourney(ctx context.Context, tripID string) error {
	st, err := v.journey.Enter(ctx, tripID)
	switch {
	case errors.Is(err, journey.ErrSuperseded):
		return nil
	case errors.Is(err, journey.ErrTabUnavailable):
		return err
	case err != nil:
		v.logger.Warn("journey fetch failed", "trip_id", tripID, "error", err)
		return nil
	}

	if b, ok := geo.BoundsOf(waypoint.Points(st.Waypoints)); ok {
		if b.North == b.South && b.East == b.West {
			// a single place has nothing to fit
			c := b.Center()
			v.issueCamera(Camera{Center: &c, Zoom: selectZoom})
		} else {
			v.issueCamera(Camera{Fit: &b})
		}
	}
	v.closeDrawerIfGone()
	v.changed()
	return nil
}

func (v *View) ExitJourney(ctx context.Context) error {
	if !v.journey.Exit() {
		return nil
	}
	v.closeDrawerIfGone()
	v.changed()
	return v.fetchPage(ctx)
}

// closeDrawerIfGone closes the drawer when its selection is not part of
// what is now rendered.
func (v *View) closeDrawerIfGone() {
	sel := v.drawer.State().Selection
	if sel == nil {
		return
	}
	if _, ok := v.lookup(sel.Identity); ok {
		return
	}
	v.drawer.Close(false)
}

// lookup finds identity in the current render source.
func (v *View) lookup(identity string) (waypoint.Record, bool) {
	if st := v.journey.State(); st.Active {
		for _, rec := range st.Waypoints {
			if rec.Identity == identity {
				return rec, true
			}
		}
		return waypoint.Record{}, false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.collection.Get(identity)
}

// Select opens the drawer on identity and centers the map on it. From the
// list the drawer expands straight away and Select waits for the detail.
func (v *View) Select(ctx context.Context, identity string, fromList bool) error {
	rec, ok := v.lookup(identity)
	if !ok || !rec.Renderable() {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, identity)
	}
	v.mu.Lock()
	v.selected = identity
	v.mu.Unlock()

	p := rec.Point()
	v.issueCamera(Camera{Center: &p, Zoom: selectZoom})

	_, err := v.drawer.Select(ctx, rec, fromList)
	if errors.Is(err, drawer.ErrSuperseded) {
		return nil
	}
	return err
}

// CenterOn moves the map and starts the centering guard, so the bounds
// reports produced by the move do not refetch. A zero zoom means selectZoom.
func (v *View) CenterOn(lat, lon, zoom float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	if zoom <= 0 || math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		zoom = selectZoom
	}
	p := geo.Point{Lat: lat, Lon: lon}
	v.issueCamera(Camera{Center: &p, Zoom: zoom})
	v.changed()
	return nil
}

// CenterOnSuggestion centers on the i-th place of the current suggestions
// and clears them, as picking a suggestion closes the list.
func (v *View) CenterOnSuggestion(i int, zoom float64) error {
	v.mu.Lock()
	if i < 0 || i >= len(v.suggestions) {
		v.mu.Unlock()
		return ErrSuggestionNotFound
	}
	s := v.suggestions[i]
	v.mu.Unlock()
	if err := v.CenterOn(s.Lat, s.Lon, zoom); err != nil {
		return err
	}
	v.clearSuggestions()
	return nil
}

func (v *View) issueCamera(c Camera) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.camera != nil {
		c.Seq = v.camera.Seq
	}
	c.Seq++
	v.camera = &c
	v.guardUntil = v.opts.Now().Add(v.opts.CenteringGuard)
}

func (v *View) Expand(ctx context.Context) error {
	_, err := v.drawer.Expand(ctx)
	if errors.Is(err, drawer.ErrSuperseded) {
		return nil
	}
	return err
}

func (v *View) Collapse() {
	v.drawer.Collapse()
}

func (v *View) CloseDrawer(smooth bool) {
	v.drawer.Close(smooth)
}

func (v *View) Gesture(ctx context.Context, g drawer.Gesture) (drawer.Outcome, error) {
	_, outcome, err := v.drawer.Release(ctx, g)
	if errors.Is(err, drawer.ErrSuperseded) {
		err = nil
	}
	return outcome, err
}

// ToggleBookmark flips the bookmark on identity's journal entry. Failure
// raises an alert instead of an error.
func (v *View) ToggleBookmark(ctx context.Context, identity string) error {
	rec, ok := v.lookup(identity)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, identity)
	}
	if !rec.HasPost() {
		return ErrNoPost
	}

	bookmarked, err := v.src.Mutations.ToggleBookmark(ctx, v.userID, rec.Post.ID)
	metrics.ObserveFetch("bookmark", err)
	if err != nil {
		v.logger.Warn("bookmark failed", "post_id", rec.Post.ID, "error", err)
		v.alert("Could not update the bookmark. Please try again.")
		return nil
	}

	apply := func(r *waypoint.Record) {
		if r.Post == nil {
			return
		}
		p := *r.Post
		if p.Bookmarked != bookmarked {
			if bookmarked {
				p.BookmarksCount++
			} else if p.BookmarksCount > 0 {
				p.BookmarksCount--
			}
		}
		p.Bookmarked = bookmarked
		r.Post = &p
	}

	updated, inJourney := v.journey.Update(identity, apply)
	v.mu.Lock()
	if v.collection.Update(identity, apply) && !inJourney {
		updated, _ = v.collection.Get(identity)
	}
	v.mu.Unlock()

	v.drawer.Refresh(updated)
	v.changed()
	return nil
}

// ToggleFollow follows or unfollows another traveller. Failure raises an
// alert instead of an error.
func (v *View) ToggleFollow(ctx context.Context, userID string) error {
	following, err := v.src.Mutations.ToggleFollow(ctx, v.userID, userID)
	metrics.ObserveFetch("follow", err)
	if err != nil {
		v.logger.Warn("follow failed", "user_id", userID, "error", err)
		v.alert("Could not update follow status. Please try again.")
		return nil
	}
	v.mu.Lock()
	v.following[userID] = following
	v.mu.Unlock()
	v.changed()
	return nil
}

func (v *View) alert(msg string) {
	v.mu.Lock()
	v.alerts = append(v.alerts, Alert{ID: uuid.NewString(), Message: msg})
	v.mu.Unlock()
	v.changed()
}

// DismissAlert removes an alert and reports whether it existed.
func (v *View) DismissAlert(id string) bool {
	v.mu.Lock()
	n := len(v.alerts)
	v.alerts = slices.DeleteFunc(v.alerts, func(a Alert) bool { return a.ID == id })
	removed := len(v.alerts) != n
	v.mu.Unlock()
	if removed {
		v.changed()
	}
	return removed
}

// Suggest is one search-box keystroke. Only the last keystroke within the
// debounce window queries, and only the latest query's answer is applied.
// An empty query clears the suggestions at once.
func (v *View) Suggest(q string) {
	if q == "" {
		v.clearSuggestions()
		return
	}
	if v.src.Suggestions == nil {
		return
	}
	armed := v.gens.Peek(opSuggest)
	v.debouncer.Trigger(func() { v.runSuggest(q, armed) })
}

func (v *View) clearSuggestions() {
	v.debouncer.Stop()
	v.gens.Bump(opSuggest)
	v.mu.Lock()
	v.suggestions = nil
	v.mu.Unlock()
	v.changed()
}

// runSuggest does not start if the box was cleared after the keystroke that
// armed it, even when the debounce timer already fired.
func (v *View) runSuggest(q string, armed generation.Token) {
	ctx, tok, ok := v.gens.BeginIf(v.lifetime, armed)
	if !ok {
		return
	}
	defer v.gens.Finish(tok)

	out, err := v.src.Suggestions.Search(ctx, q, v.opts.SuggestLimit)
	metrics.ObserveFetch(opSuggest, err)
	if err != nil {
		if v.gens.Current(tok) {
			v.logger.Debug("suggestion lookup failed", "query", q, "error", err)
		}
		return
	}

	v.mu.Lock()
	if !v.gens.Accept(tok) {
		v.mu.Unlock()
		return
	}
	v.suggestions = out
	v.mu.Unlock()
	v.changed()
}

// Close stops timers and drops everything in flight.
func (v *View) Close() {
	v.debouncer.Stop()
	v.stop()
	v.gens.Stop()
	v.journey.Stop()
	v.drawer.Stop()
}
