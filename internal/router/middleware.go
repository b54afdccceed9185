package router

import (
	"context"
	"regexp"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/jonboulle/clockwork"

	"asci-dashboard/internal/api"
	"asci-dashboard/internal/session"
	"asci-dashboard/internal/storage"
)

type contextKey string

const (
	userKey  contextKey = "asci.user"
	scopeKey contextKey = "asci.scope"
)

// RejectedUserMessage is written to sessions whose username cannot name a
// state file.
const RejectedUserMessage = "invalid username: use lowercase letters, digits, '-' or '_'\n"

var validUserPattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

// Descriptor names a middleware so the runtime can report its chain.
type Descriptor struct {
	Name       string
	Middleware wish.Middleware
}

// Scope is everything one SSH connection owns: its API client, its storage
// file and the session store tying the two together.
type Scope struct {
	User    string
	Client  *api.Client
	Storage storage.Store
	Session *session.Store
}

// ScopeFactory builds the scope for a validated username.
type ScopeFactory func(user string) (Scope, error)

// Options configures DefaultChain.
type Options struct {
	RateLimitPerSecond int
	Burst              int
	Clock              clockwork.Clock
	NewScope           ScopeFactory
	Logger             *log.Logger
}

// DefaultChain returns the connection middleware in execution order:
// rate limiting, username routing, then the per-connection session scope.
func DefaultChain(opts Options) []Descriptor {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return []Descriptor{
		{Name: "rate-limiting", Middleware: RateLimitMiddleware(opts.RateLimitPerSecond, opts.Burst, clock, logger)},
		{Name: "username-routing", Middleware: usernameRouting(logger)},
		{Name: "session-scope", Middleware: sessionScope(opts.NewScope, logger)},
	}
}

// MiddlewareFromDescriptors returns the middleware of chain in the same
// execution order. Callers composing by hand wrap from the last entry to the
// first.
func MiddlewareFromDescriptors(chain []Descriptor) []wish.Middleware {
	out := make([]wish.Middleware, 0, len(chain))
	for _, d := range chain {
		out = append(out, d.Middleware)
	}
	return out
}

// Compose wraps h so that chain[0] runs first.
func Compose(h ssh.Handler, chain []Descriptor) ssh.Handler {
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i].Middleware(h)
	}
	return h
}

// UserFromContext returns the username accepted by username routing.
func UserFromContext(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(userKey).(string)
	return user, ok
}

// ScopeFromContext returns the scope installed by the session-scope
// middleware.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	scope, ok := ctx.Value(scopeKey).(Scope)
	return scope, ok
}

func usernameRouting(logger *log.Logger) wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			user := s.User()
			if !validUserPattern.MatchString(user) {
				logger.Warn("username rejected", "event", "user_rejected", "remote", remoteIP(s), "user_len", len(user))
				_, _ = s.Write([]byte(RejectedUserMessage))
				_ = s.Exit(1)
				return
			}
			s.Context().SetValue(userKey, user)
			next(s)
		}
	}
}

func sessionScope(newScope ScopeFactory, logger *log.Logger) wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			user, ok := UserFromContext(s.Context())
			if !ok || newScope == nil {
				logger.Error("session scope unavailable", "event", "scope_missing", "remote", remoteIP(s))
				_, _ = s.Write([]byte("session unavailable\n"))
				_ = s.Exit(1)
				return
			}
			scope, err := newScope(user)
			if err != nil {
				logger.Error("session scope failed", "event", "scope_failed", "user", user, "err", err)
				_, _ = s.Write([]byte("session unavailable\n"))
				_ = s.Exit(1)
				return
			}
			scope.User = user
			s.Context().SetValue(scopeKey, scope)
			s.Context().SetValue(session.ContextKey, scope.Session)
			logger.Info("session opened", "event", "session_open", "user", user, "remote", remoteIP(s), "signed_in", scope.Session.LoggedIn())
			next(s)
			logger.Info("session closed", "event", "session_close", "user", user)
		}
	}
}
