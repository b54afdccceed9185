package theme

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestValueSignalNotifiesUntilCancelled(t *testing.T) {
	s := NewValueSignal(false)
	var calls atomic.Int32
	cancel := s.Subscribe(func(bool) { calls.Add(1) })

	s.Set(true)
	s.Set(true)
	assert.True(t, s.PrefersDark())
	assert.EqualValues(t, 2, calls.Load())

	cancel()
	cancel()
	s.Set(false)
	assert.EqualValues(t, 2, calls.Load())
	assert.Zero(t, s.Listeners())
}

func TestPollSignalNotifiesOnChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := clockwork.NewFakeClock()
	var dark atomic.Bool
	probe := func(context.Context) (bool, error) { return dark.Load(), nil }

	s := NewPollSignal(clock, time.Second, probe, nil)
	defer s.Close()
	assert.False(t, s.PrefersDark())

	got := make(chan bool, 4)
	s.Subscribe(func(d bool) { got <- d })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(time.Second)
	select {
	case d := <-got:
		t.Fatalf("unexpected notification %v without a change", d)
	case <-time.After(50 * time.Millisecond):
	}

	dark.Store(true)
	clock.Advance(time.Second)
	select {
	case d := <-got:
		assert.True(t, d)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a notification after the probe changed")
	}
	assert.True(t, s.PrefersDark())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestPollSignalKeepsLastValueOnProbeError(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := clockwork.NewFakeClock()
	var fail atomic.Bool
	probe := func(context.Context) (bool, error) {
		if fail.Load() {
			return false, errors.New("probe unavailable")
		}
		return true, nil
	}

	s := NewPollSignal(clock, time.Second, probe, nil)
	defer s.Close()
	require.True(t, s.PrefersDark())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	fail.Store(true)
	clock.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.True(t, s.PrefersDark())
}

func TestFileSignalFollowsAppearanceFile(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "appearance")
	require.NoError(t, os.WriteFile(path, []byte("light\n"), 0o600))

	s, err := NewFileSignal(path, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.False(t, s.PrefersDark())

	var last atomic.Bool
	var calls atomic.Int32
	s.Subscribe(func(d bool) {
		last.Store(d)
		calls.Add(1)
	})

	require.NoError(t, os.WriteFile(path, []byte("dark\n"), 0o600))
	require.Eventually(t, func() bool { return calls.Load() > 0 && last.Load() }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, s.PrefersDark())

	require.NoError(t, s.Close())
}

func TestFileSignalMissingFileStartsLight(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, err := NewFileSignal(filepath.Join(t.TempDir(), "absent"), nil)
	require.NoError(t, err)
	assert.False(t, s.PrefersDark())
	require.NoError(t, s.Close())
}

func TestFileSignalRequiresPath(t *testing.T) {
	_, err := NewFileSignal("  ", nil)
	assert.Error(t, err)
}
