// Package placement implements the "click the map to place an annotation" mode.
package placement

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/roadlens/trackmark/internal/annotation"
	"github.com/roadlens/trackmark/pkg/core"
)

var (
	// ErrNotAwaiting is returned by Commit when no position was captured.
	ErrNotAwaiting = errors.New("placement: no captured position to commit")
	// ErrCommitInFlight is returned by Commit while another commit is running.
	ErrCommitInFlight = errors.New("placement: commit already in flight")
	// ErrClosed is returned once the session was torn down.
	ErrClosed = errors.New("placement: session closed")
)

// State is the placement mode.
type State int

const (
	Idle State = iota
	Armed
	Awaiting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Awaiting:
		return "awaiting"
	default:
		return "unknown"
	}
}

// Creator persists a new annotation. *annotation.Store satisfies it.
type Creator interface {
	Create(ctx context.Context, d annotation.Draft) (core.Annotation, error)
}

// Session is the placement state of one file view.
type Session struct {
	creator Creator

	mu         sync.Mutex
	state      State
	pending    *core.LatLon
	hover      *core.LatLon
	committing bool
	closed     bool
}

// New returns an idle session committing through creator.
func New(creator Creator) *Session {
	return &Session{creator: creator}
}

// State returns the current mode.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Arm enters add mode and clears any pending position. It is a no-op unless idle.
func (s *Session) Arm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state != Idle {
		return false
	}
	s.state = Armed
	s.pending = nil
	s.hover = nil
	return true
}

// Click captures a position while armed and moves to awaiting commit.
// Clicks in any other state are ignored.
func (s *Session) Click(lat, lon float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Armed {
		return false
	}
	s.pending = &core.LatLon{Lat: lat, Lon: lon}
	s.state = Awaiting
	return true
}

// Hover records the live cursor position shown while armed.
func (s *Session) Hover(lat, lon float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Armed {
		return
	}
	s.hover = &core.LatLon{Lat: lat, Lon: lon}
}

// HoverPosition returns the last hover position while armed.
func (s *Session) HoverPosition() (core.LatLon, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Armed || s.hover == nil {
		return core.LatLon{}, false
	}
	return *s.hover, true
}

// Pending returns the captured position.
func (s *Session) Pending() (core.LatLon, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return core.LatLon{}, false
	}
	return *s.pending, true
}

// Commit creates an annotation at the captured position. The draft's own
// coordinates are replaced. On failure the session keeps awaiting so the
// commit can be retried.
func (s *Session) Commit(ctx context.Context, d annotation.Draft) (core.Annotation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return core.Annotation{}, ErrClosed
	}
	if s.state != Awaiting || s.pending == nil {
		s.mu.Unlock()
		return core.Annotation{}, ErrNotAwaiting
	}
	if s.committing {
		s.mu.Unlock()
		return core.Annotation{}, ErrCommitInFlight
	}
	s.committing = true
	pos := *s.pending
	s.mu.Unlock()

	d.Lat = strconv.FormatFloat(pos.Lat, 'f', -1, 64)
	d.Lon = strconv.FormatFloat(pos.Lon, 'f', -1, 64)
	a, err := s.creator.Create(ctx, d)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.committing = false
	if err != nil {
		return core.Annotation{}, err
	}
	if s.state == Awaiting {
		s.state = Idle
		s.pending = nil
	}
	return a, nil
}

// Cancel discards the pending position and returns to idle.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Idle
	s.pending = nil
	s.hover = nil
}

// Close tears the session down with its view. Arm and Commit fail afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Idle
	s.pending = nil
	s.hover = nil
	s.closed = true
}
