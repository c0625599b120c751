package geocode

import (
	"sync"
	"testing"
	"time"
)

func TestDebouncerRunsOnlyLast(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var (
		mu  sync.Mutex
		got []string
	)
	done := make(chan struct{})
	for _, q := range []string{"c", "ch", "cha"} {
		q := q
		d.Trigger(func() {
			mu.Lock()
			got = append(got, q)
			mu.Unlock()
			if q == "cha" {
				close(done)
			}
		})
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("debounced call never fired")
	}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "cha" {
		t.Fatalf("expected only the last keystroke, got %v", got)
	}
}

func TestDebouncerStop(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	fired := make(chan struct{}, 1)
	d.Trigger(func() { fired <- struct{}{} })
	d.Stop()

	select {
	case <-fired:
		t.Fatalf("stopped debouncer fired")
	case <-time.After(40 * time.Millisecond):
	}
}
