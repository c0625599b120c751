// Package drawer is the bottom drawer state machine:
// Closed -> Collapsed(selection) -> Expanded(selection, detail).
//
// State changes are synchronous. Animation is derived from the emitted
// Transition by Plan and played by whoever subscribes.
package drawer

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/metrics"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/shared/generation"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/social"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/waypoint"
)

const opDetail = "detail"

var (
	ErrNoSelection = errors.New("drawer has no selection")
	// ErrSuperseded is returned by Expand when the drawer moved on before
	// the detail arrived. The detail was discarded.
	ErrSuperseded = errors.New("detail request superseded")
)

type Phase string

const (
	Closed    Phase = "closed"
	Collapsed Phase = "collapsed"
	Expanded  Phase = "expanded"
)

type DetailSource interface {
	GetPost(ctx context.Context, id string) (social.Post, error)
}

// State is Closed, Collapsed with a selection, or Expanded with a selection
// and, once loaded, its detail. Detail is only ever set while Expanded.
type State struct {
	Phase     Phase            `json:"phase"`
	Selection *waypoint.Record `json:"selection,omitempty"`
	Detail    *social.Post     `json:"detail,omitempty"`
	Loading   bool             `json:"loading"`
}

func (s State) clone() State {
	if s.Selection != nil {
		sel := *s.Selection
		s.Selection = &sel
	}
	if s.Detail != nil {
		d := *s.Detail
		s.Detail = &d
	}
	return s
}

// Transition is emitted for every state change.
type Transition struct {
	From   Phase `json:"from"`
	To     Phase `json:"to"`
	Smooth bool  `json:"smooth,omitempty"`
}

type Machine struct {
	details DetailSource
	gens    *generation.Tracker
	logger  *slog.Logger

	mu    sync.Mutex
	state State
	subs  []func(State, Transition)
}

func NewMachine(details DetailSource) *Machine {
	return &Machine{
		details: details,
		gens:    generation.NewTracker(),
		logger:  slog.Default().With("component", "drawer"),
		state:   State{Phase: Closed},
	}
}

// Subscribe registers fn for every transition. fn runs after the change,
// outside the machine's lock.
func (m *Machine) Subscribe(fn func(State, Transition)) {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	m.mu.Unlock()
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// moveLocked switches state and returns the transition to publish.
func (m *Machine) moveLocked(next State, smooth bool) Transition {
	tr := Transition{From: m.state.Phase, To: next.Phase, Smooth: smooth}
	m.state = next
	metrics.DrawerTransitions.WithLabelValues(string(next.Phase)).Inc()
	return tr
}

// unlockAndPublish releases the lock and notifies subscribers of trs.
func (m *Machine) unlockAndPublish(trs ...Transition) State {
	st := m.state.clone()
	subs := append(([]func(State, Transition))(nil), m.subs...)
	m.mu.Unlock()
	for _, tr := range trs {
		for _, fn := range subs {
			fn(st, tr)
		}
	}
	return st
}

// Select shows rec in the drawer, replacing any previous selection and
// discarding its detail. With fromList the drawer goes straight to Expanded
// and Select blocks on the detail fetch like Expand.
func (m *Machine) Select(ctx context.Context, rec waypoint.Record, fromList bool) (State, error) {
	m.mu.Lock()
	m.gens.Bump(opDetail)
	if fromList && rec.HasPost() {
		return m.expandLocked(ctx, &rec)
	}
	tr := m.moveLocked(State{Phase: Collapsed, Selection: &rec}, false)
	return m.unlockAndPublish(tr), nil
}

// Expand fetches the selection's detail and moves to Expanded. A failed
// fetch substitutes the preview data already held. Bare waypoints have no
// expanded view, so Expand is a no-op for them, as it is when already
// Expanded.
func (m *Machine) Expand(ctx context.Context) (State, error) {
	m.mu.Lock()
	switch {
	case m.state.Phase == Closed:
		m.mu.Unlock()
		return State{Phase: Closed}, ErrNoSelection
	case m.state.Phase == Expanded, m.state.Selection == nil, !m.state.Selection.HasPost():
		return m.unlockAndPublish(), nil
	}
	return m.expandLocked(ctx, m.state.Selection)
}

// expandLocked is entered with m.mu held and returns with it released.
func (m *Machine) expandLocked(ctx context.Context, sel *waypoint.Record) (State, error) {
	ctx, tok := m.gens.Begin(ctx, opDetail)
	defer m.gens.Finish(tok)

	tr := m.moveLocked(State{Phase: Expanded, Selection: sel, Loading: true}, false)
	m.unlockAndPublish(tr)

	post, err := m.details.GetPost(ctx, sel.Post.ID)
	metrics.ObserveFetch(opDetail, err)

	m.mu.Lock()
	if !m.gens.Accept(tok) {
		st := m.state.clone()
		m.mu.Unlock()
		return st, ErrSuperseded
	}
	if err != nil {
		metrics.DetailFallbacks.Inc()
		m.logger.Debug("detail fetch failed, using preview", "post_id", sel.Post.ID, "error", err)
		post = social.PostFromRecord(*m.state.Selection)
	}
	m.state.Detail = &post
	m.state.Loading = false
	// loading finished; same phase, published so renderers refresh
	return m.unlockAndPublish(Transition{From: Expanded, To: Expanded}), nil
}

// Collapse returns from Expanded to Collapsed, discarding the detail. It
// reports whether anything changed.
func (m *Machine) Collapse() (State, bool) {
	m.mu.Lock()
	if m.state.Phase != Expanded {
		return m.unlockAndPublish(), false
	}
	m.gens.Bump(opDetail)
	tr := m.moveLocked(State{Phase: Collapsed, Selection: m.state.Selection}, false)
	return m.unlockAndPublish(tr), true
}

// Close clears the drawer. The logical state is Closed on return even when
// smooth; the transition carries Smooth so the renderer can play the
// closing animation from Plan.
func (m *Machine) Close(smooth bool) (State, bool) {
	m.mu.Lock()
	if m.state.Phase == Closed {
		return m.unlockAndPublish(), false
	}
	m.gens.Bump(opDetail)
	tr := m.moveLocked(State{Phase: Closed}, smooth)
	return m.unlockAndPublish(tr), true
}

// Release applies the outcome of a finished drag gesture.
func (m *Machine) Release(ctx context.Context, g Gesture) (State, Outcome, error) {
	m.mu.Lock()
	outcome := Decide(m.state.Phase, g)
	m.mu.Unlock()

	switch outcome {
	case OutcomeClose:
		st, _ := m.Close(true)
		return st, outcome, nil
	case OutcomeExpand:
		st, err := m.Expand(ctx)
		return st, outcome, err
	default:
		return m.State(), outcome, nil
	}
}

// Refresh replaces the selection with rec when it has the same identity,
// keeping a loaded detail's engagement fields in step.
func (m *Machine) Refresh(rec waypoint.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Selection == nil || m.state.Selection.Identity != rec.Identity {
		return
	}
	m.state.Selection = &rec
	if d := m.state.Detail; d != nil && rec.Post != nil && d.ID == rec.Post.ID {
		d.Bookmarked = rec.Post.Bookmarked
		d.BookmarksCount = rec.Post.BookmarksCount
		d.Liked = rec.Post.Liked
		d.LikesCount = rec.Post.LikesCount
	}
}

// Stop drops any detail fetch in flight.
func (m *Machine) Stop() {
	m.gens.Stop()
}
