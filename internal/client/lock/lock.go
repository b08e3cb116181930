// Package lock implements the client's auto-lock: an inactivity timer and
// app foreground/background transitions drive a locked flag that only a
// biometric challenge, or the password fallback, clears.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/clock"
	"github.com/atinyakov/GophShop/internal/logger"
)

// DefaultTimeout is the inactivity period after which the app locks.
const DefaultTimeout = 10 * time.Second

// UnlockPrompt is shown by the biometric challenge.
const UnlockPrompt = "Unlock App"

// ErrNoBiometrics is returned by Unlock when no authenticator is configured.
var ErrNoBiometrics = errors.New("lock: no biometric authenticator")

// State is the lock flag.
type State int

const (
	Unlocked State = iota
	Locked
)

func (s State) String() string {
	if s == Locked {
		return "locked"
	}
	return "unlocked"
}

// AppState is the host application's foreground state.
type AppState string

const (
	Active     AppState = "active"
	Background AppState = "background"
	Inactive   AppState = "inactive"
)

// Biometrics is the device authenticator.
type Biometrics interface {
	HasHardware(ctx context.Context) bool
	IsEnrolled(ctx context.Context) bool
	Authenticate(ctx context.Context, prompt string) (bool, error)
}

// Machine is the auto-lock state machine. The zero value is not usable;
// use New.
type Machine struct {
	clk     clock.Clock
	timeout time.Duration
	log     *zap.Logger

	mu      sync.Mutex
	state   State
	started bool
	stopped bool
	gen     uint64
	timer   clock.Timer
	subs    map[int]func(State)
	nextSub int
}

// New creates an unlocked Machine. A non-positive timeout means DefaultTimeout.
func New(clk clock.Clock, timeout time.Duration, log *zap.Logger) *Machine {
	if clk == nil {
		clk = clock.Real()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Machine{
		clk:     clk,
		timeout: timeout,
		log:     logger.OrNop(log),
		subs:    make(map[int]func(State)),
	}
}

// Timeout returns the inactivity period.
func (m *Machine) Timeout() time.Duration { return m.timeout }

// Start arms the inactivity timer.
func (m *Machine) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.started = true
	if m.state == Unlocked {
		m.armLocked()
	}
}

// Stop cancels the pending timer. Events after Stop are ignored.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	m.disarmLocked()
}

// Touch records user interaction. While unlocked it restarts the timer so
// the lock happens a full timeout after now.
func (m *Machine) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started || m.stopped || m.state == Locked {
		return
	}
	m.armLocked()
}

// AppStateChanged locks immediately when the app leaves the foreground and
// restarts the timer when it comes back unlocked.
func (m *Machine) AppStateChanged(s AppState) {
	m.mu.Lock()
	if !m.started || m.stopped {
		m.mu.Unlock()
		return
	}
	if s == Active {
		if m.state == Unlocked {
			m.armLocked()
		}
		m.mu.Unlock()
		return
	}
	m.disarmLocked()
	changed := m.setLocked(Locked)
	subs := m.subscribersLocked()
	m.mu.Unlock()

	if changed {
		m.log.Info("app locked", zap.String("reason", "app state "+string(s)))
		notify(subs, Locked)
	}
}

// Unlock runs the biometric challenge. It reports false without an error
// when the device has no hardware, nothing is enrolled or the user fails
// the challenge.
func (m *Machine) Unlock(ctx context.Context, bio Biometrics) (bool, error) {
	if bio == nil {
		return false, ErrNoBiometrics
	}
	if !bio.HasHardware(ctx) || !bio.IsEnrolled(ctx) {
		m.log.Info("biometric unlock unavailable")
		return false, nil
	}
	ok, err := bio.Authenticate(ctx, UnlockPrompt)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	m.unlock("biometric")
	return true, nil
}

// UsePassword is the lock screen's password fallback. It signs the user out
// through logout and then clears the lock; it never asks for a password.
func (m *Machine) UsePassword(logout func() error) error {
	err := logout()
	if err != nil {
		m.log.Warn("logout from lock screen failed", zap.Error(err))
	}
	m.unlock("password fallback")
	return err
}

// Reset clears the lock and restarts the timer, e.g. for a new session.
func (m *Machine) Reset() {
	m.unlock("reset")
}

func (m *Machine) unlock(reason string) {
	m.mu.Lock()
	changed := m.setLocked(Unlocked)
	if m.started && !m.stopped {
		m.armLocked()
	}
	subs := m.subscribersLocked()
	m.mu.Unlock()

	if changed {
		m.log.Info("app unlocked", zap.String("reason", reason))
		notify(subs, Unlocked)
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Locked reports whether the state is Locked.
func (m *Machine) Locked() bool {
	return m.State() == Locked
}

// Subscribe registers fn for state changes. fn runs outside the machine's
// lock, on the goroutine that caused the change.
func (m *Machine) Subscribe(fn func(State)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// armLocked replaces the pending timer. Callbacks from older generations
// are ignored when they fire.
func (m *Machine) armLocked() {
	m.disarmLocked()
	gen := m.gen
	m.timer = m.clk.AfterFunc(m.timeout, func() { m.expire(gen) })
}

func (m *Machine) disarmLocked() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) expire(gen uint64) {
	m.mu.Lock()
	if m.stopped || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	changed := m.setLocked(Locked)
	subs := m.subscribersLocked()
	m.mu.Unlock()

	if changed {
		m.log.Info("app locked", zap.String("reason", "inactivity"), zap.Duration("timeout", m.timeout))
		notify(subs, Locked)
	}
}

func (m *Machine) setLocked(s State) bool {
	if m.state == s {
		return false
	}
	m.state = s
	return true
}

func (m *Machine) subscribersLocked() []func(State) {
	out := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(State), s State) {
	for _, fn := range subs {
		fn(s)
	}
}
