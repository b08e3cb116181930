package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/GophShop/internal/clock/clocktest"
)

type fakeBiometrics struct {
	hardware bool
	enrolled bool
	success  bool
	err      error
	prompts  []string
}

func (f *fakeBiometrics) HasHardware(context.Context) bool { return f.hardware }
func (f *fakeBiometrics) IsEnrolled(context.Context) bool  { return f.enrolled }

func (f *fakeBiometrics) Authenticate(_ context.Context, prompt string) (bool, error) {
	f.prompts = append(f.prompts, prompt)
	return f.success, f.err
}

func newStarted(t *testing.T, timeout time.Duration) (*Machine, *clocktest.Clock) {
	t.Helper()
	clk := clocktest.New(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	m := New(clk, timeout, nil)
	m.Start()
	t.Cleanup(m.Stop)
	return m, clk
}

func lockedMachine(t *testing.T) *Machine {
	t.Helper()
	m, _ := newStarted(t, 0)
	m.AppStateChanged(Background)
	require.True(t, m.Locked())
	return m
}

func TestNew_Defaults(t *testing.T) {
	m := New(nil, 0, nil)
	assert.Equal(t, DefaultTimeout, m.Timeout())
	assert.Equal(t, Unlocked, m.State())
	assert.Equal(t, 30*time.Second, New(nil, 30*time.Second, nil).Timeout())
}

func TestInactivityLocks(t *testing.T) {
	m, clk := newStarted(t, 0)

	clk.Advance(DefaultTimeout - time.Millisecond)
	assert.False(t, m.Locked())
	clk.Advance(time.Millisecond)
	assert.True(t, m.Locked())
}

func TestTouchPostponesLockFromEventTime(t *testing.T) {
	m, clk := newStarted(t, 10*time.Second)

	clk.Advance(7 * time.Second)
	m.Touch()

	clk.Advance(9 * time.Second)
	assert.False(t, m.Locked(), "lock must be measured from the touch, not from start")
	clk.Advance(time.Second)
	assert.True(t, m.Locked())
	assert.Zero(t, clk.Pending())
}

func TestTouchWhileLockedDoesNothing(t *testing.T) {
	m, clk := newStarted(t, 0)
	clk.Advance(DefaultTimeout)
	require.True(t, m.Locked())

	m.Touch()
	assert.True(t, m.Locked())
	assert.Zero(t, clk.Pending())
}

func TestBackgroundLocksImmediately(t *testing.T) {
	for _, s := range []AppState{Background, Inactive} {
		t.Run(string(s), func(t *testing.T) {
			m, clk := newStarted(t, time.Hour)
			clk.Advance(time.Second)

			m.AppStateChanged(s)
			assert.True(t, m.Locked())
			assert.Zero(t, clk.Pending(), "timer is cancelled once locked")
		})
	}
}

func TestForegroundRearmsOnlyWhenUnlocked(t *testing.T) {
	m, clk := newStarted(t, 0)
	clk.Advance(5 * time.Second)
	m.AppStateChanged(Active)

	clk.Advance(9 * time.Second)
	assert.False(t, m.Locked())
	clk.Advance(time.Second)
	assert.True(t, m.Locked())

	m.AppStateChanged(Active)
	assert.True(t, m.Locked())
	assert.Zero(t, clk.Pending())
}

func TestStopCancelsTimerAndIgnoresEvents(t *testing.T) {
	m, clk := newStarted(t, 0)
	require.Equal(t, 1, clk.Pending())

	m.Stop()
	assert.Zero(t, clk.Pending())
	clk.Advance(time.Minute)
	assert.False(t, m.Locked())

	m.AppStateChanged(Background)
	m.Touch()
	assert.False(t, m.Locked())
	assert.Zero(t, clk.Pending())
}

func TestEventsBeforeStartAreIgnored(t *testing.T) {
	clk := clocktest.New(time.Now())
	m := New(clk, 0, nil)
	m.Touch()
	m.AppStateChanged(Background)
	assert.False(t, m.Locked())
	assert.Zero(t, clk.Pending())
}

func TestUnlock_BiometricSuccessRearms(t *testing.T) {
	m, clk := newStarted(t, 0)
	clk.Advance(DefaultTimeout)
	require.True(t, m.Locked())

	bio := &fakeBiometrics{hardware: true, enrolled: true, success: true}
	ok, err := m.Unlock(context.Background(), bio)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, m.Locked())
	assert.Equal(t, []string{"Unlock App"}, bio.prompts)

	clk.Advance(DefaultTimeout)
	assert.True(t, m.Locked())
}

func TestUnlock_Failures(t *testing.T) {
	boom := errors.New("sensor error")
	cases := []struct {
		name    string
		bio     *fakeBiometrics
		wantErr error
		prompts int
	}{
		{name: "no hardware", bio: &fakeBiometrics{enrolled: true, success: true}},
		{name: "not enrolled", bio: &fakeBiometrics{hardware: true, success: true}},
		{name: "rejected", bio: &fakeBiometrics{hardware: true, enrolled: true}, prompts: 1},
		{name: "error", bio: &fakeBiometrics{hardware: true, enrolled: true, err: boom}, wantErr: boom, prompts: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := lockedMachine(t)
			ok, err := m.Unlock(context.Background(), tc.bio)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.False(t, ok)
			assert.True(t, m.Locked())
			assert.Len(t, tc.bio.prompts, tc.prompts)
		})
	}

	m := lockedMachine(t)
	_, err := m.Unlock(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoBiometrics)
}

func TestUsePassword_LogsOutThenUnlocks(t *testing.T) {
	m := lockedMachine(t)

	var steps []string
	m.Subscribe(func(s State) { steps = append(steps, "state:"+s.String()) })
	err := m.UsePassword(func() error {
		steps = append(steps, "logout")
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"logout", "state:unlocked"}, steps)
	assert.False(t, m.Locked())
}

func TestUsePassword_LogoutErrorStillUnlocks(t *testing.T) {
	m := lockedMachine(t)
	boom := errors.New("storage gone")

	err := m.UsePassword(func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, m.Locked())
}

func TestReset(t *testing.T) {
	m := lockedMachine(t)
	m.Reset()
	assert.False(t, m.Locked())
}

func TestSubscribe(t *testing.T) {
	m, clk := newStarted(t, 0)

	var got []State
	cancel := m.Subscribe(func(s State) { got = append(got, s) })

	m.AppStateChanged(Background)
	m.AppStateChanged(Inactive)
	m.Reset()
	clk.Advance(DefaultTimeout)
	cancel()
	m.Reset()

	assert.Equal(t, []State{Locked, Unlocked, Locked}, got)
}

func TestStaleTimerCallbackIgnored(t *testing.T) {
	m, clk := newStarted(t, 10*time.Second)

	// several re-arms; only the latest timer may lock
	for i := 0; i < 5; i++ {
		clk.Advance(2 * time.Second)
		m.Touch()
	}
	assert.Equal(t, 1, clk.Pending())
	clk.Advance(9 * time.Second)
	assert.False(t, m.Locked())
	clk.Advance(time.Second)
	assert.True(t, m.Locked())
}
