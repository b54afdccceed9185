package theme

import (
	"errors"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asci-dashboard/internal/storage"
)

var errStorageBlocked = errors.New("storage blocked")

type blockedStore struct{}

func (blockedStore) Get(string) (string, bool, error) { return "", false, errStorageBlocked }
func (blockedStore) Set(string, string) error         { return errStorageBlocked }
func (blockedStore) Remove(string) error              { return errStorageBlocked }

func newTestManager(dark bool) (*Manager, *storage.MemoryStore, *ValueSignal, *Document) {
	store := storage.NewMemoryStore()
	signal := NewValueSignal(dark)
	doc := NewDocument("xterm-256color")
	return NewManager(store, signal, doc, nil), store, signal, doc
}

func TestGetStoredModeDefaultsToCorporate(t *testing.T) {
	m, _, _, _ := newTestManager(false)
	assert.Equal(t, ModeCorporate, m.GetStoredMode())
}

func TestGetStoredModeEmptyValueIsCorporate(t *testing.T) {
	m, store, _, _ := newTestManager(false)
	require.NoError(t, store.Set(storage.ThemeKey, ""))
	assert.Equal(t, ModeCorporate, m.GetStoredMode())
}

func TestStoredModeRoundTrip(t *testing.T) {
	m, store, _, doc := newTestManager(false)

	m.SetStoredMode(ModeDark)
	assert.Equal(t, ModeDark, m.GetStoredMode())
	m.SetStoredMode(ModeLight)
	assert.Equal(t, ModeLight, m.GetStoredMode())

	raw, ok, err := store.Get(storage.ThemeKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "light", raw)
	assert.Zero(t, doc.Applications(), "SetStoredMode must not apply")
}

func TestBlockedStorageFallsBackAndSwallowsWrites(t *testing.T) {
	doc := NewDocument("xterm")
	m := NewManager(blockedStore{}, NewValueSignal(true), doc, nil)

	assert.Equal(t, ModeCorporate, m.GetStoredMode())
	assert.NotPanics(t, func() { m.SetStoredMode(ModeLight) })

	teardown := m.InitializeThemeSync()
	defer teardown()
	got, ok := doc.Attribute()
	assert.True(t, ok)
	assert.Equal(t, ResolvedDark, got)
}

func TestResolveThemeExplicitModesIgnoreSignal(t *testing.T) {
	for _, dark := range []bool{true, false} {
		m, _, _, _ := newTestManager(dark)
		assert.Equal(t, ResolvedDark, m.ResolveTheme(ModeDark))
		assert.Equal(t, ResolvedLight, m.ResolveTheme(ModeLight))
	}
}

func TestResolveThemeCorporateFollowsSignal(t *testing.T) {
	m, _, signal, _ := newTestManager(true)
	assert.Equal(t, ResolvedDark, m.ResolveTheme(ModeCorporate))
	signal.Set(false)
	assert.Equal(t, ResolvedLight, m.ResolveTheme(ModeCorporate))
}

func TestResolveThemeUnknownModeIsLight(t *testing.T) {
	m, _, _, _ := newTestManager(true)
	assert.Equal(t, ResolvedLight, m.ResolveTheme(Mode("sepia")))
}

func TestApplyThemeModeWritesAttribute(t *testing.T) {
	m, _, _, doc := newTestManager(true)

	got := m.ApplyThemeMode(ModeLight)
	assert.Equal(t, ResolvedLight, got)
	attr, ok := doc.Attribute()
	assert.True(t, ok)
	assert.Equal(t, ResolvedLight, attr)
	assert.Equal(t, palettes[ResolvedLight], doc.Bundle())
}

func TestInitializeThemeSyncAppliesImmediately(t *testing.T) {
	m, store, _, doc := newTestManager(true)
	require.NoError(t, store.Set(storage.ThemeKey, "light"))

	teardown := m.InitializeThemeSync()
	defer teardown()

	attr, ok := doc.Attribute()
	require.True(t, ok)
	assert.Equal(t, ResolvedLight, attr)
	assert.Equal(t, 1, doc.Applications())
}

func TestInitializeThemeSyncCorporateTracksSignal(t *testing.T) {
	m, _, signal, doc := newTestManager(false)
	teardown := m.InitializeThemeSync()
	defer teardown()

	attr, _ := doc.Attribute()
	assert.Equal(t, ResolvedLight, attr)

	signal.Set(true)
	attr, _ = doc.Attribute()
	assert.Equal(t, ResolvedDark, attr)

	signal.Set(true)
	attr, _ = doc.Attribute()
	assert.Equal(t, ResolvedDark, attr, "redundant signal must not change the theme")

	signal.Set(false)
	attr, _ = doc.Attribute()
	assert.Equal(t, ResolvedLight, attr)
}

func TestInitializeThemeSyncExplicitModeIgnoresSignal(t *testing.T) {
	for _, mode := range []Mode{ModeDark, ModeLight} {
		t.Run(string(mode), func(t *testing.T) {
			m, _, signal, doc := newTestManager(false)
			m.SetStoredMode(mode)
			teardown := m.InitializeThemeSync()
			defer teardown()

			before, _ := doc.Attribute()
			applied := doc.Applications()
			signal.Set(true)
			signal.Set(false)

			after, _ := doc.Attribute()
			assert.Equal(t, before, after)
			assert.Equal(t, applied, doc.Applications())
		})
	}
}

func TestInitializeThemeSyncRereadsStoredMode(t *testing.T) {
	m, _, signal, doc := newTestManager(false)
	teardown := m.InitializeThemeSync()
	defer teardown()

	m.SetStoredMode(ModeLight)
	signal.Set(true)
	attr, _ := doc.Attribute()
	assert.Equal(t, ResolvedLight, attr, "switching to an explicit mode detaches from the signal")

	m.SetStoredMode(ModeCorporate)
	signal.Set(true)
	attr, _ = doc.Attribute()
	assert.Equal(t, ResolvedDark, attr)
}

func TestTeardownIsIdempotent(t *testing.T) {
	m, _, signal, doc := newTestManager(false)
	teardown := m.InitializeThemeSync()
	require.Equal(t, 1, signal.Listeners())

	assert.NotPanics(t, func() {
		teardown()
		teardown()
	})
	assert.Zero(t, signal.Listeners())

	applied := doc.Applications()
	signal.Set(true)
	assert.Equal(t, applied, doc.Applications(), "no listener may remain after teardown")
}

func TestResolveProperties(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("explicit modes ignore the host preference", prop.ForAll(
		func(mode string, dark bool) bool {
			return Resolve(Mode(mode), dark) == Resolved(mode)
		},
		gen.OneConstOf("dark", "light"),
		gen.Bool(),
	))

	properties.Property("corporate mirrors the host preference", prop.ForAll(
		func(dark bool) bool {
			want := ResolvedLight
			if dark {
				want = ResolvedDark
			}
			return Resolve(ModeCorporate, dark) == want
		},
		gen.Bool(),
	))

	properties.Property("stored mode round-trips the last write", prop.ForAll(
		func(writes []string) bool {
			m, _, _, _ := newTestManager(false)
			for _, w := range writes {
				m.SetStoredMode(Mode(w))
			}
			if len(writes) == 0 {
				return m.GetStoredMode() == ModeCorporate
			}
			return m.GetStoredMode() == Mode(writes[len(writes)-1])
		},
		gen.SliceOf(gen.OneConstOf("corporate", "dark", "light"), reflect.TypeOf("")),
	))

	properties.TestingRun(t)
}
