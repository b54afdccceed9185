package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
	"unicode"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"asci-dashboard/internal/api"
	"asci-dashboard/internal/dataset"
	"asci-dashboard/internal/report"
	"asci-dashboard/internal/session"
)

type (
	statusTickMsg     time.Time
	sessionChangedMsg struct{ token string }
	loginResultMsg    struct{ err error }
	logoutResultMsg   struct{ err error }
	modelNameMsg      string
	loadedMsg         struct {
		screen Screen
		data   any
		err    error
	}
	predictionMsg struct {
		result api.Prediction
		err    error
	}
	uploadMsg struct {
		check  dataset.Summary
		result api.UploadSummary
		err    error
	}
	exportMsg struct {
		path string
		err  error
	}
)

func statusTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return statusTickMsg(t) })
}

// sessionFeed turns store notifications into messages. Sends never block;
// the receiver re-reads the store, so a dropped send loses nothing.
type sessionFeed struct {
	ch     chan string
	done   chan struct{}
	cancel func()
}

func newSessionFeed(store *session.Store) *sessionFeed {
	f := &sessionFeed{ch: make(chan string, 1), done: make(chan struct{})}
	f.cancel = store.Subscribe(func(token string) {
		select {
		case f.ch <- token:
		default:
		}
	})
	return f
}

func (f *sessionFeed) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case token := <-f.ch:
			return sessionChangedMsg{token: token}
		case <-f.done:
			return nil
		}
	}
}

func (f *sessionFeed) close() {
	f.cancel()
	select {
	case <-f.done:
	default:
		close(f.done)
	}
}

func loginCmd(ctx context.Context, client *api.Client, store *session.Store, username, password string) tea.Cmd {
	return func() tea.Msg {
		tok, err := client.Login(ctx, username, password)
		if err != nil {
			return loginResultMsg{err: err}
		}
		return loginResultMsg{err: store.Login(tok.AccessToken)}
	}
}

func logoutCmd(store *session.Store) tea.Cmd {
	return func() tea.Msg { return logoutResultMsg{err: store.Logout()} }
}

func fetch(screen Screen, fn func() (any, error)) tea.Cmd {
	return func() tea.Msg {
		data, err := fn()
		return loadedMsg{screen: screen, data: data, err: err}
	}
}

func loadCmd(ctx context.Context, client *api.Client, screen Screen) tea.Cmd {
	switch screen {
	case ScreenOverview:
		return fetch(screen, func() (any, error) { return client.DashboardOverview(ctx) })
	case ScreenAnalytics:
		return fetch(screen, func() (any, error) { return client.Analytics(ctx) })
	case ScreenModels:
		return fetch(screen, func() (any, error) { return client.Metrics(ctx) })
	case ScreenHistory:
		return fetch(screen, func() (any, error) { return client.History(ctx, api.DefaultHistoryLimit) })
	case ScreenReports:
		return fetch(screen, func() (any, error) { return client.ReportSummary(ctx) })
	case ScreenAbout:
		return fetch(screen, func() (any, error) { return client.AboutModel(ctx) })
	case ScreenSettings:
		return func() tea.Msg { return modelNameMsg(client.ActiveModelName(ctx)) }
	}
	return nil
}

func predictCmd(ctx context.Context, client *api.Client, req api.LivePredictionRequest) tea.Cmd {
	return func() tea.Msg {
		result, err := client.PredictLive(ctx, req)
		return predictionMsg{result: result, err: err}
	}
}

// uploadCmd checks the file locally before sending it.
func uploadCmd(ctx context.Context, client *api.Client, path string) tea.Cmd {
	return func() tea.Msg {
		name := filepath.Base(path)
		if err := dataset.CheckName(name); err != nil {
			return uploadMsg{err: err}
		}
		f, err := os.Open(path)
		if err != nil {
			return uploadMsg{err: fmt.Errorf("open %s: %w", path, err)}
		}
		defer f.Close()

		check, err := dataset.Inspect(name, f)
		if err != nil {
			return uploadMsg{err: err}
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return uploadMsg{check: check, err: fmt.Errorf("rewind %s: %w", path, err)}
		}
		result, err := client.UploadData(ctx, name, f)
		return uploadMsg{check: check, result: result, err: err}
	}
}

func exportCmd(dir string, summary api.ReportSummary) tea.Cmd {
	return func() tea.Msg {
		path := filepath.Join(dir, report.DefaultFilename)
		f, err := os.Create(path)
		if err != nil {
			return exportMsg{path: path, err: err}
		}
		if err := report.WritePDF(f, summary); err != nil {
			_ = f.Close()
			return exportMsg{path: path, err: err}
		}
		return exportMsg{path: path, err: f.Close()}
	}
}

// userMessage picks the text shown for a failed action.
func userMessage(err error, fallback string) string {
	var apiErr *api.Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return api.Message(err, fallback)
	case errors.Is(err, dataset.ErrNotCSV), errors.Is(err, dataset.ErrMissingColumns), errors.Is(err, dataset.ErrEmpty):
		return sentence(err.Error())
	case errors.Is(err, os.ErrNotExist):
		return "File not found"
	default:
		return fallback
	}
}

// sentence capitalizes the first letter of an error string for display.
func sentence(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
