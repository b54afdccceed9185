// Package theme decides which palette the dashboard renders with.
//
// A Manager combines three injected capabilities: a persisted preference
// (storage.Store), a "prefers dark" Signal reported by the host, and an
// Applier that publishes the resolved value to the rendering layer
// (normally a *Document). The stored preference is a Mode; the applied value
// is always a concrete Resolved theme.
//
// Integration example:
//
//	doc := theme.NewDocument(os.Getenv("TERM"))
//	mgr := theme.NewManager(store, theme.NewValueSignal(lipgloss.HasDarkBackground()), doc, logger)
//	teardown := mgr.InitializeThemeSync()
//	defer teardown()
//	header := doc.Bundle().Header.Render(nil)
package theme
