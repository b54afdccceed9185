package server

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	bm "github.com/charmbracelet/wish/bubbletea"

	"asci-dashboard/internal/router"
	"asci-dashboard/internal/theme"
	"asci-dashboard/internal/tui"
)

// terminal describes the client side of one connection.
type terminal struct {
	name     string
	width    int
	height   int
	dark     bool
	renderer *lipgloss.Renderer
}

// DashboardHandler starts one dashboard per connection from the scope the
// router installed. Sessions without a scope are ended with exit status 1.
func DashboardHandler(logger *log.Logger, statusInterval time.Duration) bm.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
		scope, ok := router.ScopeFromContext(s.Context())
		if !ok {
			logger.Error("dashboard started without a session scope", "event", "scope_missing", "user", s.User())
			wish.Fatalln(s, "session unavailable")
			return nil, nil
		}

		pty, _, _ := s.Pty()
		renderer := bm.MakeRenderer(s)
		m, stop, err := newDashboard(s.Context(), scope, terminal{
			name:     pty.Term,
			width:    pty.Window.Width,
			height:   pty.Window.Height,
			dark:     renderer.HasDarkBackground(),
			renderer: renderer,
		}, logger, statusInterval)
		if err != nil {
			logger.Error("dashboard failed to start", "event", "dashboard_failed", "user", scope.User, "err", err)
			wish.Fatalln(s, "session unavailable")
			return nil, nil
		}
		go func() {
			<-s.Context().Done()
			stop()
		}()
		return m, []tea.ProgramOption{tea.WithAltScreen()}
	}
}

// newDashboard builds the per-connection theme pipeline and model. Remote
// users cannot read or write files on the server, so uploads and PDF export
// are disabled. The returned stop func releases subscriptions.
func newDashboard(ctx context.Context, scope router.Scope, term terminal, logger *log.Logger, statusInterval time.Duration) (tui.Model, func(), error) {
	sessionLogger := logger.With("user", scope.User)
	doc := theme.NewDocument(term.name)
	mgr := theme.NewManager(scope.Storage, theme.NewValueSignal(term.dark), doc, sessionLogger)
	stopSync := mgr.InitializeThemeSync()

	m, err := tui.NewModel(ctx, tui.Options{
		Client:         scope.Client,
		Theme:          mgr,
		Document:       doc,
		Renderer:       term.renderer,
		Logger:         sessionLogger,
		User:           scope.User,
		Width:          term.width,
		Height:         term.height,
		StatusInterval: statusInterval,
		AllowFiles:     false,
	})
	if err != nil {
		stopSync()
		return tui.Model{}, nil, err
	}
	return m, func() {
		m.Close()
		stopSync()
	}, nil
}
