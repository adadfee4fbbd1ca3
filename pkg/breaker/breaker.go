// Package breaker provides named circuit breakers that isolate failing
// backends. Each logical breaker runs the usual state machine:
//
//	closed ──(failures reach threshold within window)──▶ open
//	open ──(cooldown elapses, one probe allowed)──▶ half-open
//	half-open ──(probe succeeds)──▶ closed
//	half-open ──(probe fails)──▶ open
//
// While open, calls short-circuit immediately with ErrOpen without invoking
// the wrapped operation, so a broken backend cannot pile up latency or
// goroutines behind it.
package breaker

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the lifecycle state of one named breaker.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

const (
	defaultMaxFailures = 5
	defaultWindow      = 60 * time.Second
	defaultCooldown    = 30 * time.Second
)

// Config holds configuration for a breaker set.
type Config struct {
	// MaxFailures is the failure count within Window that trips the breaker.
	// Defaults to 5.
	MaxFailures int

	// Window is the rolling window failures are counted in. Defaults to 60s.
	Window time.Duration

	// Cooldown is how long an open breaker rejects calls before allowing a
	// probe. Defaults to 30s.
	Cooldown time.Duration

	// Logger is the provided zap logger.
	Logger *zap.Logger

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// breakerState tracks one named breaker. All fields are guarded by the
// owning Set's mutex so concurrent failure/success reports cannot race.
type breakerState struct {
	state         State
	failures      int
	windowStart   time.Time
	openUntil     time.Time
	probeInFlight bool
}

// Set manages breakers keyed by logical name. Breakers are created lazily on
// first use and never destroyed; a successful probe resets their state.
type Set struct {
	config Config

	mu       sync.Mutex
	breakers map[string]*breakerState
}

// NewSet creates a breaker set with the given configuration.
func NewSet(config Config) *Set {
	if config.MaxFailures <= 0 {
		config.MaxFailures = defaultMaxFailures
	}
	if config.Window <= 0 {
		config.Window = defaultWindow
	}
	if config.Cooldown <= 0 {
		config.Cooldown = defaultCooldown
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Set{
		config:   config,
		breakers: make(map[string]*breakerState),
	}
}

// Do runs op under the named breaker. If the breaker is open the operation is
// not invoked and ErrOpen is returned. A panic inside op is recovered and
// converted into an error result; it counts as a failure like any other.
//
// Do always resolves its bookkeeping before returning: an admitted call is
// recorded as success or failure exactly once, including the half-open probe
// slot, so cancelled or panicking operations cannot leave the breaker stuck.
func (s *Set) Do(name string, op func() error) error {
	if err := s.admit(name); err != nil {
		return err
	}

	err := s.run(op)
	s.resolve(name, err)
	return err
}

// run invokes op, converting a panic into an error.
func (s *Set) run(op func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return op()
}

// admit decides whether a call may proceed under the named breaker.
func (s *Set) admit(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.breakers[name]
	if b == nil {
		b = &breakerState{state: StateClosed}
		s.breakers[name] = b
	}

	now := s.config.Now()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if now.Before(b.openUntil) {
			return ErrOpen
		}
		// Cooldown elapsed: allow exactly one probe.
		b.state = StateHalfOpen
		b.probeInFlight = true
		s.config.Logger.Debug("breaker allowing probe", zap.String("breaker", name))
		return nil

	case StateHalfOpen:
		if b.probeInFlight {
			return ErrOpen
		}
		b.probeInFlight = true
		return nil
	}

	return nil
}

// resolve records the outcome of an admitted call.
func (s *Set) resolve(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.breakers[name]
	if b == nil {
		return
	}

	now := s.config.Now()

	if b.state == StateHalfOpen {
		b.probeInFlight = false
		if err == nil {
			b.state = StateClosed
			b.failures = 0
			b.windowStart = time.Time{}
			s.config.Logger.Info("breaker closed after successful probe",
				zap.String("breaker", name),
			)
		} else {
			b.state = StateOpen
			b.openUntil = now.Add(s.config.Cooldown)
			s.config.Logger.Warn("breaker reopened after failed probe",
				zap.String("breaker", name),
				zap.Error(err),
			)
		}
		return
	}

	if err == nil {
		return
	}

	// Rolling window: a failure outside the window starts a fresh count.
	if b.windowStart.IsZero() || now.Sub(b.windowStart) >= s.config.Window {
		b.windowStart = now
		b.failures = 0
	}
	b.failures++

	if b.failures >= s.config.MaxFailures {
		b.state = StateOpen
		b.openUntil = now.Add(s.config.Cooldown)
		s.config.Logger.Warn("breaker opened",
			zap.String("breaker", name),
			zap.Int("failures", b.failures),
			zap.Duration("cooldown", s.config.Cooldown),
		)
	}
}

// State reports the current state of the named breaker. Breakers the set has
// never seen report closed.
func (s *Set) State(name string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.breakers[name]
	if b == nil {
		return StateClosed
	}

	// An open breaker whose cooldown has elapsed is observably half-open:
	// the next call will be admitted as a probe.
	if b.state == StateOpen && !s.config.Now().Before(b.openUntil) {
		return StateHalfOpen
	}

	return b.state
}

// States returns a snapshot of all known breakers and their states.
func (s *Set) States() map[string]State {
	s.mu.Lock()
	names := make([]string, 0, len(s.breakers))
	for name := range s.breakers {
		names = append(names, name)
	}
	s.mu.Unlock()

	out := make(map[string]State, len(names))
	for _, name := range names {
		out[name] = s.State(name)
	}
	return out
}
