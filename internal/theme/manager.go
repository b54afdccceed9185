package theme

import (
	"sync"

	"github.com/charmbracelet/log"

	"asci-dashboard/internal/storage"
)

// Manager is the single source of truth for the applied theme.
type Manager struct {
	store  storage.Store
	signal Signal
	target Applier
	logger *log.Logger
}

func NewManager(store storage.Store, signal Signal, target Applier, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{store: store, signal: signal, target: target, logger: logger}
}

// GetStoredMode returns the persisted mode, or corporate when nothing is
// stored or storage cannot be read.
func (m *Manager) GetStoredMode() Mode {
	value, ok, err := m.store.Get(storage.ThemeKey)
	if err != nil {
		m.logger.Debug("theme preference unreadable", "event", "theme_read_failed", "err", err)
		return ModeCorporate
	}
	if !ok || value == "" {
		return ModeCorporate
	}
	return Mode(value)
}

// SetStoredMode persists mode. It does not apply it; write failures are
// logged and dropped.
func (m *Manager) SetStoredMode(mode Mode) {
	if err := m.store.Set(storage.ThemeKey, string(mode)); err != nil {
		m.logger.Warn("theme preference not saved", "event", "theme_write_failed", "mode", mode, "err", err)
	}
}

// ResolveTheme maps mode to a concrete theme using the current host preference.
func (m *Manager) ResolveTheme(mode Mode) Resolved {
	return Resolve(mode, m.signal.PrefersDark())
}

// ApplyThemeMode resolves mode, writes it to the target and returns it.
func (m *Manager) ApplyThemeMode(mode Mode) Resolved {
	resolved := m.ResolveTheme(mode)
	m.target.Apply(resolved)
	return resolved
}

// InitializeThemeSync applies the stored mode, then keeps corporate mode in
// step with the host preference. Explicit dark/light choices ignore host
// changes. The returned teardown releases the subscription and may be called
// any number of times.
func (m *Manager) InitializeThemeSync() func() {
	m.ApplyThemeMode(m.GetStoredMode())

	cancel := m.signal.Subscribe(func(bool) {
		if m.GetStoredMode() == ModeCorporate {
			m.ApplyThemeMode(ModeCorporate)
		}
	})

	var once sync.Once
	return func() { once.Do(cancel) }
}
