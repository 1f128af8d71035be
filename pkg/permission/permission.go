// Package permission gates all radio operations behind the OS Bluetooth /
// location grants. The concrete permission set is platform and version
// dependent and therefore owned by the injected Authorizer, not by this
// package.
package permission

import (
	"context"
	"sync"

	"github.com/spooltrack/blescale/pkg/scale"
)

// Status denotes the current permission state
type Status int

const (

	// StatusUnknown is active before the first check
	StatusUnknown Status = iota

	// StatusGranted is active while all required permissions are granted
	StatusGranted

	// StatusDenied is active while at least one permission is missing
	StatusDenied

	// StatusRequesting is active while the platform permission flow runs
	StatusRequesting
)

// String returns a human-readable representation of the status
func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusGranted:
		return "granted"
	case StatusDenied:
		return "denied"
	case StatusRequesting:
		return "requesting"
	default:
		return "invalid"
	}
}

// Authorizer denotes the platform permission flow. Missing returns the
// currently ungranted permission identifiers; Request runs the asynchronous
// platform grant flow and reports its outcome.
type Authorizer interface {
	Missing() []string
	Request(ctx context.Context) (granted bool, err error)
}

// Gate tracks the permission state and drives the platform flow
type Gate struct {
	mu         sync.Mutex
	status     Status
	missing    []string
	authorizer Authorizer
	logger     scale.Logger
}

// NewGate instantiates a permission gate around the given platform flow
func NewGate(a Authorizer, options ...func(*Gate)) *Gate {
	g := &Gate{
		status:     StatusUnknown,
		authorizer: a,
		logger:     &scale.NullLogger{},
	}

	for _, option := range options {
		option(g)
	}

	return g
}

// WithLogger sets the logger used by the gate
func WithLogger(l scale.Logger) func(*Gate) {
	return func(g *Gate) {
		g.logger = l
	}
}

// Check synchronously re-evaluates the current grant status
func (g *Gate) Check() Status {
	missing := g.authorizer.Missing()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.missing = missing
	if len(missing) == 0 {
		g.status = StatusGranted
	} else {
		g.status = StatusDenied
	}

	return g.status
}

// Request transitions to Requesting and invokes the platform permission
// flow, then settles on Granted or Denied based on its result. A flow error
// is downgraded to Denied and returned for logging purposes.
func (g *Gate) Request(ctx context.Context) (Status, error) {
	g.mu.Lock()
	if g.status == StatusRequesting {
		g.mu.Unlock()
		return StatusRequesting, scale.ErrAlreadyInProgress
	}
	g.status = StatusRequesting
	g.mu.Unlock()

	granted, err := g.authorizer.Request(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()

	if err != nil {
		g.logger.Warnf("permission request flow failed: %s", err)
		g.status = StatusDenied
		g.missing = g.authorizer.Missing()
		return g.status, err
	}

	if granted {
		g.status = StatusGranted
		g.missing = nil
	} else {
		g.status = StatusDenied
		g.missing = g.authorizer.Missing()
	}

	return g.status, nil
}

// Status returns the current state without re-evaluating it
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.status
}

// HasAll returns if all required permissions are currently granted
func (g *Gate) HasAll() bool {
	return g.Check() == StatusGranted
}

// Missing returns the identifiers of the currently ungranted permissions
func (g *Gate) Missing() []string {
	g.Check()

	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]string, len(g.missing))
	copy(out, g.missing)

	return out
}

// StaticAuthorizer denotes a fixed-outcome authorizer, useful on platforms
// where radio access is governed by process capabilities rather than a
// runtime grant flow.
type StaticAuthorizer struct {
	MissingPermissions []string
}

// Missing returns the configured ungranted permissions
func (s *StaticAuthorizer) Missing() []string {
	return s.MissingPermissions
}

// Request reports success iff nothing is missing; there is no interactive
// flow to run
func (s *StaticAuthorizer) Request(_ context.Context) (bool, error) {
	return len(s.MissingPermissions) == 0, nil
}
