package tui

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"asci-dashboard/internal/api"
	"asci-dashboard/internal/session"
	"asci-dashboard/internal/theme"
)

const (
	defaultWidth          = 100
	defaultHeight         = 30
	defaultStatusInterval = time.Second
	sidebarWidth          = 18

	defaultUsername = "admin"
	defaultPassword = "admin123"
)

// Screen identifies the active top-level view.
type Screen int

const (
	ScreenLogin Screen = iota
	ScreenOverview
	ScreenPrediction
	ScreenAnalytics
	ScreenModels
	ScreenHistory
	ScreenUpload
	ScreenReports
	ScreenAbout
	ScreenSettings
	screenCount
)

var screenTitles = [screenCount]string{
	ScreenLogin:      "Login",
	ScreenOverview:   "Overview",
	ScreenPrediction: "Live Prediction",
	ScreenAnalytics:  "Analytics",
	ScreenModels:     "Model Performance",
	ScreenHistory:    "History",
	ScreenUpload:     "Upload Data",
	ScreenReports:    "Reports",
	ScreenAbout:      "About Model",
	ScreenSettings:   "Settings",
}

var loadFallbacks = [screenCount]string{
	ScreenOverview:  "Could not load overview",
	ScreenAnalytics: "Could not load analytics",
	ScreenModels:    "Could not load model metrics",
	ScreenHistory:   "Could not load history",
	ScreenReports:   "Could not load report summary",
	ScreenAbout:     "Could not load model details",
}

func (s Screen) String() string {
	if s < 0 || s >= screenCount {
		return fmt.Sprintf("Screen(%d)", int(s))
	}
	return screenTitles[s]
}

// protected reports whether the screen requires a signed-in session.
func (s Screen) protected() bool { return s != ScreenLogin }

func (s Screen) hasForm() bool {
	return s == ScreenLogin || s == ScreenPrediction || s == ScreenUpload
}

// Options wires a Model to its collaborators. The session store is not an
// option; it comes from the scope passed to NewModel.
type Options struct {
	Client   *api.Client
	Theme    *theme.Manager
	Document *theme.Document
	Renderer *lipgloss.Renderer
	Logger   *log.Logger

	User           string
	Width, Height  int
	StatusInterval time.Duration

	// AllowFiles enables CSV upload and PDF export from the local
	// filesystem. Remote sessions leave it off.
	AllowFiles bool
	ExportDir  string
}

type panel struct {
	loading bool
	loaded  bool
	err     string
}

// Model is the dashboard's bubbletea model.
type Model struct {
	ctx     context.Context
	opts    Options
	session *session.Store
	feed    *sessionFeed

	width  int
	height int
	screen Screen

	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	viewport viewport.Model

	statusBlink bool
	flash       string
	flashErr    bool

	panels [screenCount]panel

	overview  *api.Overview
	analytics *api.Analytics
	metrics   *api.Metrics
	history   *api.History
	summary   *api.ReportSummary
	about     *api.AboutModel
	modelName string

	login   loginForm
	predict predictForm
	upload  uploadForm
}

// NewModel builds the dashboard for the session scope carried by ctx. It
// fails with session.ErrNoSessionScope when ctx has no store.
func NewModel(ctx context.Context, opts Options) (Model, error) {
	store, err := session.FromContext(ctx)
	if err != nil {
		return Model{}, err
	}
	if opts.Client == nil || opts.Theme == nil || opts.Document == nil {
		return Model{}, fmt.Errorf("tui: client, theme manager and document are required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = defaultStatusInterval
	}
	if opts.ExportDir == "" {
		opts.ExportDir, _ = os.Getwd()
	}
	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:         ctx,
		opts:        opts,
		session:     store,
		feed:        newSessionFeed(store),
		width:       width,
		height:      height,
		keys:        defaultKeyMap(),
		help:        help.New(),
		spinner:     sp,
		viewport:    viewport.New(width-sidebarWidth-1, max(height-4, 1)),
		statusBlink: true,
		login:       newLoginForm(),
		predict:     newPredictForm(),
		upload:      newUploadForm(),
	}
	m.screen = m.guard(ScreenOverview)
	if m.screen == ScreenLogin {
		m.login.focus()
	} else {
		m.panels[m.screen].loading = true
	}
	m.syncViewport()
	return m, nil
}

// Close releases the session subscription. It is safe to call more than once.
func (m Model) Close() {
	if m.feed != nil {
		m.feed.close()
	}
}

// Screen returns the active screen.
func (m Model) Screen() Screen { return m.screen }

// guard redirects protected screens to login while signed out.
func (m Model) guard(s Screen) Screen {
	if s.protected() && !m.session.LoggedIn() {
		return ScreenLogin
	}
	return s
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{statusTick(m.opts.StatusInterval), m.feed.wait(), m.spinner.Tick}
	if m.screen == ScreenLogin {
		cmds = append(cmds, textinput.Blink)
	} else {
		cmds = append(cmds, m.startLoad(m.screen))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.update(msg)
	next.syncViewport()
	return next, cmd
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case statusTickMsg:
		m.statusBlink = !m.statusBlink
		tick := statusTick(m.opts.StatusInterval)
		if m.screen != m.guard(m.screen) {
			var cmd tea.Cmd
			m, cmd = m.navigate(m.screen)
			return m, tea.Batch(tick, cmd)
		}
		return m, tick

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sessionChangedMsg:
		// The store is the source of truth; the feed may have coalesced
		// several changes into one message.
		var cmd tea.Cmd
		m, cmd = m.onSessionChanged(m.session.Token())
		return m, tea.Batch(cmd, m.feed.wait())

	case loginResultMsg:
		m.login.submitting = false
		if msg.err != nil {
			m.login.err = userMessage(msg.err, "Login failed")
			m.opts.Logger.Warn("login failed", "event", "login_failed", "user", m.login.username.Value(), "err", msg.err)
			return m, nil
		}
		m.login.err = ""
		m.login.password.SetValue("")
		m.opts.Logger.Info("login succeeded", "event", "login", "user", m.login.username.Value())
		return m.navigate(ScreenOverview)

	case logoutResultMsg:
		if msg.err != nil {
			m.setFlash(fmt.Sprintf("Logout failed: %v", msg.err), true)
			return m, nil
		}
		m.opts.Logger.Info("logged out", "event", "logout")
		return m.onSessionChanged("")

	case loadedMsg:
		return m.applyLoaded(msg), nil

	case modelNameMsg:
		m.modelName = string(msg)
		m.panels[ScreenSettings] = panel{loaded: true}
		return m, nil

	case predictionMsg:
		m.predict.submitting = false
		if msg.err != nil {
			m.predict.err = userMessage(msg.err, "Prediction failed")
			return m, nil
		}
		m.predict.err = ""
		m.predict.result = &msg.result
		return m, nil

	case uploadMsg:
		m.upload.submitting = false
		if msg.check.Columns != nil {
			check := msg.check
			m.upload.check = &check
		}
		if msg.err != nil {
			m.upload.err = userMessage(msg.err, "Upload failed")
			m.upload.result = nil
			return m, nil
		}
		m.upload.err = ""
		m.upload.result = &msg.result
		return m, nil

	case exportMsg:
		if msg.err != nil {
			m.setFlash(fmt.Sprintf("PDF export failed: %v", msg.err), true)
			return m, nil
		}
		m.setFlash("Report saved to "+msg.path, false)
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m Model) updateKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if m.screen == ScreenLogin {
		return m.updateLogin(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Next):
		return m.navigate(nextScreen(m.screen, 1))
	case key.Matches(msg, m.keys.Prev):
		return m.navigate(nextScreen(m.screen, -1))
	case key.Matches(msg, m.keys.Logout):
		return m, logoutCmd(m.session)
	case key.Matches(msg, m.keys.Refresh):
		cmd := m.startLoad(m.screen)
		if cmd != nil {
			m.panels[m.screen] = panel{loading: true}
		}
		return m, cmd
	}

	if !m.screen.hasForm() {
		if s, ok := jumpTarget(msg.String()); ok {
			return m.navigate(s)
		}
		if msg.String() == "q" {
			return m, tea.Quit
		}
	}

	switch m.screen {
	case ScreenPrediction:
		return m.updatePrediction(msg)
	case ScreenUpload:
		return m.updateUpload(msg)
	case ScreenSettings:
		if key.Matches(msg, m.keys.Cycle) {
			return m.cycleTheme(), nil
		}
	case ScreenReports:
		if key.Matches(msg, m.keys.Export) {
			return m.exportReport()
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// navigate switches screens through the route guard and starts loading data
// the target has not fetched yet.
func (m Model) navigate(target Screen) (Model, tea.Cmd) {
	target = m.guard(target)
	if m.screen != target {
		m.viewport.GotoTop()
	}
	m.screen = target
	m.flash = ""
	m.login.blur()
	m.predict.blur()
	m.upload.blur()

	var cmds []tea.Cmd
	switch target {
	case ScreenLogin:
		cmds = append(cmds, m.login.focus())
	case ScreenPrediction:
		cmds = append(cmds, m.predict.focus())
	case ScreenUpload:
		cmds = append(cmds, m.upload.focus())
	}
	if p := m.panels[target]; !p.loaded && !p.loading {
		if cmd := m.startLoad(target); cmd != nil {
			m.panels[target].loading = true
			cmds = append(cmds, cmd)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) startLoad(s Screen) tea.Cmd {
	return loadCmd(m.ctx, m.opts.Client, s)
}

func (m Model) onSessionChanged(token string) (Model, tea.Cmd) {
	if token == "" {
		m.clearData()
	}
	switch {
	case token == "" && m.screen != ScreenLogin:
		return m.navigate(ScreenLogin)
	case token != "" && m.screen == ScreenLogin:
		return m.navigate(ScreenOverview)
	}
	return m, nil
}

func (m *Model) clearData() {
	m.panels = [screenCount]panel{}
	m.overview, m.analytics, m.metrics, m.history, m.summary, m.about = nil, nil, nil, nil, nil, nil
	m.modelName = ""
	m.predict.result = nil
	m.upload.result, m.upload.check = nil, nil
}

func (m Model) applyLoaded(msg loadedMsg) Model {
	p := panel{loaded: true}
	if msg.err != nil {
		p.err = userMessage(msg.err, loadFallbacks[msg.screen])
		m.opts.Logger.Warn("screen load failed", "event", "load_failed", "screen", msg.screen.String(), "err", msg.err)
		m.panels[msg.screen] = p
		return m
	}
	switch data := msg.data.(type) {
	case api.Overview:
		m.overview = &data
	case api.Analytics:
		m.analytics = &data
	case api.Metrics:
		m.metrics = &data
	case api.History:
		m.history = &data
	case api.ReportSummary:
		m.summary = &data
	case api.AboutModel:
		m.about = &data
	}
	m.panels[msg.screen] = p
	return m
}

func (m Model) cycleTheme() Model {
	next := m.opts.Theme.GetStoredMode().Next()
	m.opts.Theme.SetStoredMode(next)
	resolved := m.opts.Theme.ApplyThemeMode(next)
	m.setFlash(fmt.Sprintf("Theme set to %s (%s)", next.Label(), resolved), false)
	m.opts.Logger.Info("theme changed", "event", "theme_set", "mode", next, "resolved", resolved)
	return m
}

func (m Model) exportReport() (Model, tea.Cmd) {
	if !m.opts.AllowFiles {
		m.setFlash("PDF export is not available in remote sessions", true)
		return m, nil
	}
	if m.summary == nil {
		m.setFlash("Report summary is still loading", true)
		return m, nil
	}
	return m, exportCmd(m.opts.ExportDir, *m.summary)
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash, m.flashErr = text, isErr
}

func (m *Model) syncViewport() {
	m.viewport.Width = max(m.width-sidebarWidth-1, 1)
	m.viewport.Height = max(m.height-4, 1)
	m.viewport.SetContent(m.renderBody())
}

func nextScreen(s Screen, step int) Screen {
	n := int(screenCount) - 1
	idx := (int(s) - 1 + step + n) % n
	return Screen(idx + 1)
}

func jumpTarget(k string) (Screen, bool) {
	if len(k) != 1 || k[0] < '1' || k[0] > '9' {
		return 0, false
	}
	return Screen(k[0] - '0'), true
}

type keyMap struct {
	Next    key.Binding
	Prev    key.Binding
	Jump    key.Binding
	Refresh key.Binding
	Logout  key.Binding
	Cycle   key.Binding
	Export  key.Binding
	Submit  key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Next:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next")),
		Prev:    key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev")),
		Jump:    key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("1-9", "jump")),
		Refresh: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "refresh")),
		Logout:  key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "logout")),
		Cycle:   key.NewBinding(key.WithKeys("enter", " ", "left", "right"), key.WithHelp("enter", "cycle theme")),
		Export:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "export pdf")),
		Submit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

// screenKeys adapts keyMap to help.KeyMap for one screen.
type screenKeys struct {
	keyMap
	screen Screen
}

func (k screenKeys) ShortHelp() []key.Binding {
	switch k.screen {
	case ScreenLogin:
		return []key.Binding{k.Submit, k.Quit}
	case ScreenPrediction, ScreenUpload:
		return []key.Binding{k.Submit, k.Next, k.Prev, k.Logout, k.Quit}
	case ScreenSettings:
		return []key.Binding{k.Cycle, k.Next, k.Jump, k.Logout, k.Quit}
	case ScreenReports:
		return []key.Binding{k.Export, k.Next, k.Jump, k.Refresh, k.Logout, k.Quit}
	}
	return []key.Binding{k.Next, k.Jump, k.Refresh, k.Logout, k.Quit}
}

func (k screenKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }
