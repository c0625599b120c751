package explore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/auth"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/metrics"
)

// SourceFactory builds the data sources for one view, authenticated by its
// session accessor.
type SourceFactory func(sessions *auth.Sessions) Sources

// StoreFactory returns where a user's session is persisted.
type StoreFactory func(userID string) auth.Store

// Publisher receives every encoded snapshot. *stream.Hub satisfies it.
type Publisher interface {
	Broadcast(viewID string, payload []byte)
}

type session struct {
	view     *View
	sessions *auth.Sessions
}

// Registry owns the open views of this instance.
type Registry struct {
	sources SourceFactory
	stores  StoreFactory
	pub     Publisher
	opts    Options
	logger  *slog.Logger

	mu    sync.RWMutex
	views map[string]*session
}

func NewRegistry(sources SourceFactory, stores StoreFactory, pub Publisher, opts Options) *Registry {
	if stores == nil {
		stores = func(string) auth.Store { return &auth.MemoryStore{} }
	}
	return &Registry{
		sources: sources,
		stores:  stores,
		pub:     pub,
		opts:    opts,
		logger:  slog.Default().With("component", "registry"),
		views:   map[string]*session{},
	}
}

// Open starts a view for userID, installing accessToken in a fresh session
// accessor, and loads the first page for scope.
func (r *Registry) Open(ctx context.Context, userID, accessToken string, scope Scope) (*View, error) {
	sessions := auth.NewSessions(r.stores(userID))
	if err := sessions.Start(ctx); err != nil {
		r.logger.Warn("session restore failed", "user_id", userID, "error", err)
	}
	if accessToken != "" {
		if _, err := sessions.Set(ctx, accessToken, ""); err != nil {
			return nil, fmt.Errorf("open view: %w", err)
		}
	}

	id := uuid.NewString()
	v := NewView(id, userID, r.sources(sessions), r.opts)
	if r.pub != nil {
		v.OnChange(func(s Snapshot) {
			payload, err := jsonSnapshot(s)
			if err != nil {
				r.logger.Error("encode snapshot", "view_id", s.ViewID, "error", err)
				return
			}
			r.pub.Broadcast(s.ViewID, payload)
		})
	}

	r.mu.Lock()
	r.views[id] = &session{view: v, sessions: sessions}
	r.mu.Unlock()
	metrics.ActiveViews.Inc()
	r.logger.Info("view opened", "view_id", id, "user_id", userID)

	if err := v.ResetContext(ctx, scope); err != nil {
		return v, err
	}
	return v, nil
}

// Get returns the view if it exists and belongs to userID.
func (r *Registry) Get(id, userID string) (*View, error) {
	r.mu.RLock()
	s, ok := r.views[id]
	r.mu.RUnlock()
	if !ok || s.view.UserID() != userID {
		return nil, fmt.Errorf("%w: %s", ErrViewNotFound, id)
	}
	return s.view, nil
}

// Close tears the view down. With logout the user's persisted session is
// cleared as well.
func (r *Registry) Close(ctx context.Context, id, userID string, logout bool) error {
	r.mu.Lock()
	s, ok := r.views[id]
	if !ok || s.view.UserID() != userID {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrViewNotFound, id)
	}
	delete(r.views, id)
	r.mu.Unlock()

	s.view.Close()
	metrics.ActiveViews.Dec()
	r.logger.Info("view closed", "view_id", id, "logout", logout)
	if logout {
		return s.sessions.Logout(ctx)
	}
	return nil
}

// CloseAll tears every view down, for shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	views := r.views
	r.views = map[string]*session{}
	r.mu.Unlock()
	for _, s := range views {
		s.view.Close()
		metrics.ActiveViews.Dec()
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.views)
}

// Owns reports whether the view exists and belongs to userID.
func (r *Registry) Owns(id, userID string) bool {
	_, err := r.Get(id, userID)
	return err == nil
}

// SnapshotJSON serves the stream's initial snapshot.
func (r *Registry) SnapshotJSON(id string) ([]byte, bool) {
	r.mu.RLock()
	s, ok := r.views[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	b, err := s.view.SnapshotJSON()
	if err != nil {
		return nil, false
	}
	return b, true
}
