package theme

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
)

// Probe asks the host whether it currently prefers a dark appearance.
type Probe func(ctx context.Context) (dark bool, err error)

const defaultPollInterval = 5 * time.Second

// PollSignal re-runs a Probe on a fixed interval and notifies listeners when
// the answer changes. Probe failures keep the last known preference.
type PollSignal struct {
	clock    clockwork.Clock
	interval time.Duration
	probe    Probe
	logger   *log.Logger

	dark atomic.Bool
	subs listeners

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewPollSignal runs the probe once synchronously, then starts polling.
func NewPollSignal(clock clockwork.Clock, interval time.Duration, probe Probe, logger *log.Logger) *PollSignal {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &PollSignal{
		clock:    clock,
		interval: interval,
		probe:    probe,
		logger:   logger,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	if dark, err := probe(ctx); err == nil {
		s.dark.Store(dark)
	} else {
		logger.Warn("initial appearance probe failed", "event", "theme_signal_error", "source", "poll", "err", err)
	}
	go s.loop(ctx)
	return s
}

func (s *PollSignal) PrefersDark() bool { return s.dark.Load() }

func (s *PollSignal) Subscribe(fn func(bool)) func() { return s.subs.add(fn) }

// Close stops polling and waits for the loop to exit.
func (s *PollSignal) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}

func (s *PollSignal) loop(ctx context.Context) {
	defer close(s.done)
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			dark, err := s.probe(ctx)
			if err != nil {
				s.logger.Debug("appearance probe failed", "event", "theme_signal_error", "source", "poll", "err", err)
				continue
			}
			if s.dark.Swap(dark) == dark {
				continue
			}
			s.logger.Debug("appearance changed", "event", "theme_signal", "source", "poll", "dark", dark)
			s.subs.notify(dark)
		}
	}
}

// GSettingsProbe reads the GNOME color-scheme key.
func GSettingsProbe(ctx context.Context) (bool, error) {
	out, err := exec.CommandContext(ctx, "gsettings", "get", "org.gnome.desktop.interface", "color-scheme").Output()
	if err != nil {
		return false, fmt.Errorf("gsettings: %w", err)
	}
	dark, ok := parseAppearance(string(out))
	if !ok {
		return false, fmt.Errorf("gsettings: unrecognised color-scheme %q", string(out))
	}
	return dark, nil
}
