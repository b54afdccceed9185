package server

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	bm "github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"

	"asci-dashboard/internal/config"
	"asci-dashboard/internal/router"
)

const (
	version         = "dev"
	shutdownTimeout = 10 * time.Second
)

// Runtime wires config, middleware and the Wish server as a testable unit.
type Runtime struct {
	cfg           config.SSHConfig
	middlewareIDs []string
	server        *ssh.Server
	logger        *log.Logger
}

// New builds the SSH server. Connections pass through logging, the session
// cap, chain in order, the PTY check and finally handler.
func New(cfg config.SSHConfig, chain []router.Descriptor, handler bm.Handler, logger *log.Logger) (*Runtime, error) {
	if logger == nil {
		logger = log.Default()
	}

	// wish runs the last middleware first.
	middleware := []wish.Middleware{bm.Middleware(handler), activeterm.Middleware()}
	for i := len(chain) - 1; i >= 0; i-- {
		middleware = append(middleware, chain[i].Middleware)
	}
	middleware = append(middleware,
		router.MaxSessionsMiddleware(cfg.MaxSessions, logger),
		logging.MiddlewareWithLogger(logger),
	)

	srv, err := wish.NewServer(
		wish.WithAddress(net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))),
		wish.WithHostKeyPath(cfg.HostKeyPath),
		wish.WithIdleTimeout(cfg.IdleTimeout),
		wish.WithMiddleware(middleware...),
	)
	if err != nil {
		return nil, err
	}

	ids := []string{"logging", "max-sessions"}
	for _, d := range chain {
		ids = append(ids, d.Name)
	}
	ids = append(ids, "active-term", "dashboard")

	return &Runtime{cfg: cfg, middlewareIDs: ids, server: srv, logger: logger}, nil
}

// MiddlewareIDs lists the connection pipeline in execution order.
func (r *Runtime) MiddlewareIDs() []string {
	out := make([]string, len(r.middlewareIDs))
	copy(out, r.middlewareIDs)
	return out
}

func (r *Runtime) Address() string {
	return r.server.Addr
}

// Run serves until ctx is cancelled or the process receives SIGINT/SIGTERM.
func (r *Runtime) Run(ctx context.Context) error {
	ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	errCh := make(chan error, 1)
	go func() { errCh <- r.server.ListenAndServe() }()

	r.logger.Info("ssh server started",
		"event", "startup",
		"version", version,
		"addr", r.server.Addr,
		"middleware", strings.Join(r.middlewareIDs, ","),
		"host_key_path", r.cfg.HostKeyPath,
		"idle_timeout", r.cfg.IdleTimeout,
		"max_sessions", r.cfg.MaxSessions,
	)

	select {
	case err := <-errCh:
		if err == nil || errors.Is(err, ssh.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	r.logger.Info("ssh server stopping", "event", "shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return err
	}
	return nil
}
