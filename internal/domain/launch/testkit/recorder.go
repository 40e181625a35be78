// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package testkit

import (
	"sync"
	"time"

	"github.com/ManuGH/society/internal/domain/launch/model"
)

// Observation is a state seen by a Recorder and when it arrived.
type Observation struct {
	State model.State
	At    time.Time
}

// Recorder drains a state subscription into an ordered log.
type Recorder struct {
	mu     sync.Mutex
	seen   []Observation
	notify chan struct{}
	done   chan struct{}
}

// Record starts draining ch until it is closed.
func Record(ch <-chan model.State) *Recorder {
	r := &Recorder{notify: make(chan struct{}, 1), done: make(chan struct{})}
	go func() {
		defer close(r.done)
		for st := range ch {
			r.mu.Lock()
			r.seen = append(r.seen, Observation{State: st, At: time.Now()})
			r.mu.Unlock()
			select {
			case r.notify <- struct{}{}:
			default:
			}
		}
	}()
	return r
}

// States returns the kinds observed so far, in order.
func (r *Recorder) States() []model.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.State, len(r.seen))
	for i, o := range r.seen {
		out[i] = o.State
	}
	return out
}

// Observations returns everything observed so far.
func (r *Recorder) Observations() []Observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Observation(nil), r.seen...)
}

// WaitFor blocks until a state of kind k is observed after index from, and
// returns it with its position. ok is false on timeout.
func (r *Recorder) WaitFor(k model.Kind, from int, timeout time.Duration) (Observation, int, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		r.mu.Lock()
		for i := from; i < len(r.seen); i++ {
			if r.seen[i].State.Kind == k {
				o := r.seen[i]
				r.mu.Unlock()
				return o, i, true
			}
		}
		r.mu.Unlock()

		select {
		case <-r.notify:
		case <-deadline.C:
			return Observation{}, -1, false
		}
	}
}

// Done is closed once the subscription channel is closed.
func (r *Recorder) Done() <-chan struct{} { return r.done }
