package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"asci-dashboard/internal/api"
	"asci-dashboard/internal/config"
	"asci-dashboard/internal/logging"
	"asci-dashboard/internal/session"
	"asci-dashboard/internal/storage"
	"asci-dashboard/internal/theme"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "asci: %s\n", api.Message(err, err.Error()))
		return 1
	}
	return 0
}

// app holds what a command needs. Everything past config and logging is
// built on first use so that, for example, `asci serve` never opens the
// local state file.
type app struct {
	cfg     config.Config
	logger  *log.Logger
	closers []io.Closer
	out     io.Writer

	client  *api.Client
	store   storage.Store
	session *session.Store
	doc     *theme.Document
	theme   *theme.Manager
}

func newRootCmd(a *app) *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:   "asci",
		Short: "Delivery risk dashboard for the supply chain intelligence backend",
		Long: `asci is a terminal client for the delivery risk backend.

Run without arguments to open the interactive dashboard. The same dashboard
can be served to several users over SSH with "asci serve".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, envFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDashboard(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file applied before reading the environment")

	root.AddCommand(
		dashboardCmd(a),
		serveCmd(a),
		loginCmd(a),
		logoutCmd(a),
		statusCmd(a),
		themeCmd(a),
		healthCmd(a),
		overviewCmd(a),
		analyticsCmd(a),
		modelsCmd(a),
		historyCmd(a),
		predictCmd(a),
		uploadCmd(a),
		reportCmd(a),
		aboutCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command, envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.out = cmd.OutOrStdout()

	opts := logging.Options{Level: cfg.LogLevel, File: cfg.LogFile}
	if opts.File == "" && ownsTerminal(cmd) {
		opts.File = filepath.Join(cfg.StateDir, "asci.log")
	}
	logger, closer, err := logging.New(opts)
	if err != nil {
		return err
	}
	a.logger = logger
	a.closers = append(a.closers, closer)
	return nil
}

// ownsTerminal reports whether cmd draws a full-screen UI, in which case
// logs must not go to stderr.
func ownsTerminal(cmd *cobra.Command) bool {
	return !cmd.HasParent() || cmd.Name() == "dashboard"
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}

func (a *app) newClient() *api.Client {
	return api.NewClient(a.cfg.APIBaseURL, api.WithTimeout(a.cfg.APITimeout), api.WithLogger(a.logger))
}

// local returns the session store backed by the local state file, creating
// the client and store on first use.
func (a *app) local() (*session.Store, error) {
	if a.session != nil {
		return a.session, nil
	}
	a.client = a.newClient()
	a.store = storage.NewFileStore(a.cfg.StatePath())
	store, err := session.NewStore(a.store, a.client)
	if err != nil {
		return nil, err
	}
	a.session = store
	return store, nil
}

// themeManager wires the configured host preference source to a document
// for the local terminal.
func (a *app) themeManager() (*theme.Manager, *theme.Document, error) {
	if a.theme != nil {
		return a.theme, a.doc, nil
	}
	if _, err := a.local(); err != nil {
		return nil, nil, err
	}

	var signal theme.Signal
	switch a.cfg.ThemeSignal {
	case config.SignalFile:
		fs, err := theme.NewFileSignal(a.cfg.AppearanceFile, a.logger)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, fs)
		signal = fs
	case config.SignalGSettings:
		ps := theme.NewPollSignal(clockwork.NewRealClock(), a.cfg.ThemePollInterval, theme.GSettingsProbe, a.logger)
		a.closers = append(a.closers, ps)
		signal = ps
	default:
		signal = theme.NewValueSignal(lipgloss.HasDarkBackground())
	}

	a.doc = theme.NewDocument(os.Getenv("TERM"))
	a.theme = theme.NewManager(a.store, signal, a.doc, a.logger)
	return a.theme, a.doc, nil
}

var errNotSignedIn = errors.New("not signed in; run `asci login` first")

// requireLogin returns the client once a token is loaded.
func (a *app) requireLogin() (*api.Client, error) {
	store, err := a.local()
	if err != nil {
		return nil, err
	}
	if !store.LoggedIn() {
		return nil, errNotSignedIn
	}
	return a.client, nil
}
