// Package guard serializes OAuth handshakes across every entry point of the
// process. It owns the single in-flight latch and the popup and timeout
// handles of the attempt currently holding it.
package guard

import (
	"io"
	"sync"
)

// Status is the lifecycle stage of one handshake attempt.
type Status int

const (
	StatusIdle Status = iota
	StatusOpening
	StatusAwaitingCallback
	StatusProcessing
	StatusSucceeded
	StatusFailed
)

var statusNames = map[Status]string{
	StatusIdle:             "idle",
	StatusOpening:          "opening",
	StatusAwaitingCallback: "awaiting-callback",
	StatusProcessing:       "processing",
	StatusSucceeded:        "succeeded",
	StatusFailed:           "failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Active reports whether an attempt in this status blocks new attempts.
func (s Status) Active() bool {
	return s != StatusIdle && !s.Terminal()
}

// Session is one login attempt. Its fields are guarded by the coordinator
// that created it.
type Session struct {
	provider string
	status   Status
}

func (s *Session) Provider() string { return s.provider }

// Snapshot is a point-in-time copy of the coordinator state.
type Snapshot struct {
	Provider     string
	Status       Status
	InFlight     bool
	PopupTracked bool
	TimeoutArmed bool
}

// Coordinator admits one handshake at a time and owns its popup and timeout.
type Coordinator struct {
	mu       sync.Mutex
	inFlight bool
	current  *Session

	popup       io.Closer
	stopTimeout func() bool
}

func New() *Coordinator {
	return &Coordinator{}
}

var (
	defaultOnce        sync.Once
	defaultCoordinator *Coordinator
)

// Default returns the process-wide coordinator shared by every login surface.
func Default() *Coordinator {
	defaultOnce.Do(func() {
		defaultCoordinator = New()
	})
	return defaultCoordinator
}

// Begin starts a new attempt for provider. It returns false without touching
// any state when another attempt is still in flight.
func (c *Coordinator) Begin(provider string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight || (c.current != nil && c.current.status.Active()) {
		return nil, false
	}

	// remnants of a previous attempt
	if c.popup != nil {
		_ = c.popup.Close()
		c.popup = nil
	}
	if c.stopTimeout != nil {
		c.stopTimeout()
		c.stopTimeout = nil
	}

	s := &Session{provider: provider, status: StatusOpening}
	c.current = s
	c.inFlight = true
	return s, true
}

// Transition moves s to status. Terminal statuses are final and only the
// current session may transition.
func (c *Coordinator) Transition(s *Session, status Status) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s != c.current || s.status.Terminal() {
		return false
	}
	s.status = status
	return true
}

// Status returns the current stage of s.
func (c *Coordinator) Status(s *Session) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.status
}

// TrackPopup records the popup opened for s while s is the current attempt.
func (c *Coordinator) TrackPopup(s *Session, popup io.Closer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == c.current {
		c.popup = popup
	}
}

// ForgetPopup drops the reference to the popup without closing it.
func (c *Coordinator) ForgetPopup(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == c.current {
		c.popup = nil
	}
}

// TrackTimeout records how to stop the deadline armed for s.
func (c *Coordinator) TrackTimeout(s *Session, stop func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == c.current {
		c.stopTimeout = stop
	}
}

func (c *Coordinator) CancelTimeout(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == c.current && c.stopTimeout != nil {
		c.stopTimeout()
		c.stopTimeout = nil
	}
}

// End is the finally step of an attempt: it cancels the timeout, forgets the
// popup and releases the latch.
func (c *Coordinator) End(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s != c.current {
		return
	}
	if c.stopTimeout != nil {
		c.stopTimeout()
		c.stopTimeout = nil
	}
	c.popup = nil
	if !s.status.Terminal() {
		s.status = StatusFailed
	}
	c.inFlight = false
}

func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		InFlight:     c.inFlight,
		PopupTracked: c.popup != nil,
		TimeoutArmed: c.stopTimeout != nil,
	}
	if c.current != nil {
		snap.Provider = c.current.provider
		snap.Status = c.current.status
	}
	return snap
}
