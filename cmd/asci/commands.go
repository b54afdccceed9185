package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"asci-dashboard/internal/api"
	"asci-dashboard/internal/dataset"
	"asci-dashboard/internal/report"
	"asci-dashboard/internal/router"
	"asci-dashboard/internal/server"
	"asci-dashboard/internal/session"
	"asci-dashboard/internal/storage"
	"asci-dashboard/internal/theme"
	"asci-dashboard/internal/tui"
)

func dashboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the interactive dashboard (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDashboard(cmd.Context())
		},
	}
}

func (a *app) runDashboard(ctx context.Context) error {
	store, err := a.local()
	if err != nil {
		return err
	}
	mgr, doc, err := a.themeManager()
	if err != nil {
		return err
	}
	stopSync := mgr.InitializeThemeSync()
	defer stopSync()

	exportDir, _ := os.Getwd()
	m, err := tui.NewModel(session.WithStore(ctx, store), tui.Options{
		Client:     a.client,
		Theme:      mgr,
		Document:   doc,
		Logger:     a.logger,
		User:       os.Getenv("USER"),
		AllowFiles: true,
		ExportDir:  exportDir,
	})
	if err != nil {
		return err
	}
	defer m.Close()

	a.logger.Info("dashboard started", "event", "dashboard_start", "api", a.cfg.APIBaseURL, "signed_in", store.LoggedIn())
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard over SSH, one session store per user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sshCfg := a.cfg.SSH
			chain := router.DefaultChain(router.Options{
				RateLimitPerSecond: sshCfg.RateLimitPerSecond,
				Burst:              sshCfg.RateLimitPerSecond,
				NewScope:           a.userScope,
				Logger:             a.logger,
			})
			rt, err := server.New(sshCfg, chain, server.DashboardHandler(a.logger, 0), a.logger)
			if err != nil {
				return fmt.Errorf("build ssh server: %w", err)
			}
			return rt.Run(cmd.Context())
		},
	}
}

// userScope gives every SSH user a state file and API client of their own.
func (a *app) userScope(user string) (router.Scope, error) {
	st := storage.NewFileStore(a.cfg.UserStatePath(user))
	client := a.newClient()
	store, err := session.NewStore(st, client)
	if err != nil {
		return router.Scope{}, err
	}
	return router.Scope{Client: client, Storage: st, Session: store}, nil
}

func loginCmd(a *app) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("ASCI_PASSWORD")
			}
			if strings.TrimSpace(username) == "" || password == "" {
				return fmt.Errorf("username and password are required")
			}
			store, err := a.local()
			if err != nil {
				return err
			}
			token, err := a.client.Login(cmd.Context(), strings.TrimSpace(username), password)
			if err != nil {
				return err
			}
			if err := store.Login(token.AccessToken); err != nil {
				return err
			}
			a.logger.Info("login succeeded", "event", "login", "user", username)
			fmt.Fprintf(a.out, "Signed in as %s\n", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (defaults to $ASCI_PASSWORD)")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			store, err := a.local()
			if err != nil {
				return err
			}
			if err := store.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Signed out")
			return nil
		},
	}
}

func statusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the backend, session and theme state",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			store, err := a.local()
			if err != nil {
				return err
			}
			mgr, _, err := a.themeManager()
			if err != nil {
				return err
			}
			state := "signed out"
			if store.LoggedIn() {
				state = "signed in"
			}
			mode := mgr.GetStoredMode()
			fmt.Fprintf(a.out, "api:     %s\n", a.client.BaseURL())
			fmt.Fprintf(a.out, "session: %s\n", state)
			fmt.Fprintf(a.out, "theme:   %s (%s)\n", mode, mgr.ResolveTheme(mode))
			fmt.Fprintf(a.out, "state:   %s\n", a.cfg.StatePath())
			return nil
		},
	}
}

func themeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Read or change the stored theme mode",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the stored mode",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				mgr, _, err := a.themeManager()
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, mgr.GetStoredMode())
				return nil
			},
		},
		&cobra.Command{
			Use:       "set <corporate|dark|light>",
			Short:     "Store a mode and print the theme it resolves to",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{string(theme.ModeCorporate), string(theme.ModeDark), string(theme.ModeLight)},
			RunE: func(_ *cobra.Command, args []string) error {
				mode, err := theme.ParseMode(args[0])
				if err != nil {
					return err
				}
				mgr, _, err := a.themeManager()
				if err != nil {
					return err
				}
				mgr.SetStoredMode(mode)
				fmt.Fprintf(a.out, "%s (%s)\n", mode, mgr.ResolveTheme(mode))
				return nil
			},
		},
		&cobra.Command{
			Use:   "resolve",
			Short: "Print the theme the stored mode resolves to now",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				mgr, _, err := a.themeManager()
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, mgr.ResolveTheme(mgr.GetStoredMode()))
				return nil
			},
		},
	)
	return cmd
}

func healthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.local(); err != nil {
				return err
			}
			h, err := a.client.Health(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJSON(h)
		},
	}
}

// fetchCmd builds a read-only command that prints one endpoint as JSON.
func fetchCmd[T any](a *app, use, short string, fetch func(context.Context, *api.Client) (T, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.requireLogin()
			if err != nil {
				return err
			}
			v, err := fetch(cmd.Context(), client)
			if err != nil {
				return err
			}
			return a.printJSON(v)
		},
	}
}

func overviewCmd(a *app) *cobra.Command {
	return fetchCmd(a, "overview", "Print KPIs, risk distribution and feature impact",
		func(ctx context.Context, c *api.Client) (api.Overview, error) { return c.DashboardOverview(ctx) })
}

func analyticsCmd(a *app) *cobra.Command {
	return fetchCmd(a, "analytics", "Print class distribution, confusion matrix and class profiles",
		func(ctx context.Context, c *api.Client) (api.Analytics, error) { return c.Analytics(ctx) })
}

func modelsCmd(a *app) *cobra.Command {
	return fetchCmd(a, "models", "Print model comparison metrics",
		func(ctx context.Context, c *api.Client) (api.Metrics, error) { return c.Metrics(ctx) })
}

func aboutCmd(a *app) *cobra.Command {
	return fetchCmd(a, "about", "Print the active model description",
		func(ctx context.Context, c *api.Client) (api.AboutModel, error) { return c.AboutModel(ctx) })
}

func historyCmd(a *app) *cobra.Command {
	var limit int
	cmd := fetchCmd(a, "history", "Print recent predictions",
		func(ctx context.Context, c *api.Client) (api.History, error) { return c.History(ctx, limit) })
	cmd.Flags().IntVarP(&limit, "limit", "n", api.DefaultHistoryLimit, "number of predictions to fetch")
	return cmd
}

func predictCmd(a *app) *cobra.Command {
	req := api.DefaultLivePrediction()
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score a single delivery with the live model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(api.TrafficLevels, req.TrafficLevel) {
				return fmt.Errorf("traffic must be one of %s", strings.Join(api.TrafficLevels, ", "))
			}
			if !slices.Contains(api.WeatherIndicators, req.WeatherIndicator) {
				return fmt.Errorf("weather must be one of %s", strings.Join(api.WeatherIndicators, ", "))
			}
			for name, v := range map[string]float64{
				"order-volume":           req.OrderVolume,
				"warehouse-time":         req.WarehouseTime,
				"shipment-distance":      req.ShipmentDistance,
				"historical-performance": req.HistoricalPerformance,
			} {
				if v < 0 {
					return fmt.Errorf("%s must be a non-negative number", name)
				}
			}
			client, err := a.requireLogin()
			if err != nil {
				return err
			}
			p, err := client.PredictLive(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.printJSON(p)
		},
	}
	f := cmd.Flags()
	f.Float64Var(&req.OrderVolume, "order-volume", req.OrderVolume, "orders in the batch")
	f.Float64Var(&req.WarehouseTime, "warehouse-time", req.WarehouseTime, "hours spent in the warehouse")
	f.Float64Var(&req.ShipmentDistance, "shipment-distance", req.ShipmentDistance, "distance to the customer in km")
	f.StringVar(&req.TrafficLevel, "traffic", req.TrafficLevel, "traffic level: "+strings.Join(api.TrafficLevels, ", "))
	f.StringVar(&req.WeatherIndicator, "weather", req.WeatherIndicator, "weather: "+strings.Join(api.WeatherIndicators, ", "))
	f.Float64Var(&req.HistoricalPerformance, "historical-performance", req.HistoricalPerformance, "carrier on-time ratio between 0 and 1")
	return cmd
}

func uploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.csv>",
		Short: "Check a CSV locally, then score it in batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			name := filepath.Base(path)
			if err := dataset.CheckName(name); err != nil {
				return err
			}
			client, err := a.requireLogin()
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			summary, err := dataset.Inspect(name, f)
			if err != nil {
				return err
			}
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return err
			}
			a.logger.Info("uploading dataset", "event", "upload", "file", name, "rows", summary.Rows)
			result, err := client.UploadData(cmd.Context(), name, f)
			if err != nil {
				return err
			}
			return a.printJSON(result)
		},
	}
}

func reportCmd(a *app) *cobra.Command {
	var pdfPath string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the risk report, or write it as PDF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.requireLogin()
			if err != nil {
				return err
			}
			summary, err := client.ReportSummary(cmd.Context())
			if err != nil {
				return err
			}
			if pdfPath == "" {
				return report.WriteText(a.out, summary)
			}
			f, err := os.Create(pdfPath)
			if err != nil {
				return err
			}
			if err := report.WritePDF(f, summary); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Report saved to %s\n", pdfPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "write a PDF to this path instead of printing text")
	cmd.Flags().Lookup("pdf").NoOptDefVal = report.DefaultFilename
	return cmd
}

func (a *app) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.out, "%s\n", data)
	return err
}
