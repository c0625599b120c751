// Package generation issues monotonically increasing request generations per
// logical operation. A response is applied only while its generation is still
// the latest one issued for its key.
package generation

import (
	"context"
	"sync"

	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/metrics"
)

type Token struct {
	Key string
	N   uint64
}

type Tracker struct {
	mu      sync.Mutex
	current map[string]uint64
	cancels map[string]context.CancelFunc
}

func NewTracker() *Tracker {
	return &Tracker{
		current: make(map[string]uint64),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Begin issues a new generation for key, cancelling the context of the one
// it supersedes. The returned context is cancelled by a later Begin or Bump.
func (t *Tracker) Begin(parent context.Context, key string) (context.Context, Token) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.begin(parent, key)
}

// BeginIf is Begin for work armed earlier: it issues the next generation only
// if nothing was issued for tok's key since tok was peeked.
func (t *Tracker) BeginIf(parent context.Context, tok Token) (context.Context, Token, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current[tok.Key] != tok.N {
		return parent, tok, false
	}
	ctx, next := t.begin(parent, tok.Key)
	return ctx, next, true
}

// Peek returns the latest generation of key without issuing a new one.
func (t *Tracker) Peek(key string) Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Token{Key: key, N: t.current[key]}
}

func (t *Tracker) begin(parent context.Context, key string) (context.Context, Token) {
	ctx, cancel := context.WithCancel(parent)
	if prev := t.cancels[key]; prev != nil {
		prev()
	}
	t.current[key]++
	t.cancels[key] = cancel
	return ctx, Token{Key: key, N: t.current[key]}
}

// Bump invalidates whatever is in flight for key.
func (t *Tracker) Bump(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev := t.cancels[key]; prev != nil {
		prev()
		delete(t.cancels, key)
	}
	t.current[key]++
}

// Current reports whether tok is still the latest generation for its key.
func (t *Tracker) Current(tok Token) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current[tok.Key] == tok.N
}

// Accept is Current plus bookkeeping: a stale token is counted in
// sync_stale_responses_total.
func (t *Tracker) Accept(tok Token) bool {
	if t.Current(tok) {
		return true
	}
	metrics.StaleResponses.WithLabelValues(tok.Key).Inc()
	return false
}

// Finish releases the context of tok if it is still current.
func (t *Tracker) Finish(tok Token) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current[tok.Key] != tok.N {
		return
	}
	if cancel := t.cancels[tok.Key]; cancel != nil {
		cancel()
		delete(t.cancels, tok.Key)
	}
}

// Stop cancels everything in flight.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, cancel := range t.cancels {
		cancel()
		t.current[key]++
	}
	clear(t.cancels)
}
