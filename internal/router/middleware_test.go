package router

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/jonboulle/clockwork"

	"asci-dashboard/internal/api"
	"asci-dashboard/internal/session"
	"asci-dashboard/internal/storage"
)

var quiet = log.New(io.Discard)

func fileScopes(t *testing.T, baseURL string) ScopeFactory {
	dir := t.TempDir()
	return func(user string) (Scope, error) {
		st := storage.NewFileStore(filepath.Join(dir, "users", user+".json"))
		client := api.NewClient(baseURL, api.WithLogger(quiet))
		store, err := session.NewStore(st, client)
		if err != nil {
			return Scope{}, err
		}
		return Scope{Client: client, Storage: st, Session: store}, nil
	}
}

func TestDefaultChainOrder(t *testing.T) {
	chain := DefaultChain(Options{RateLimitPerSecond: 10, Logger: quiet})
	want := []string{"rate-limiting", "username-routing", "session-scope"}
	if len(chain) != len(want) {
		t.Fatalf("chain length = %d, want %d", len(chain), len(want))
	}
	for i := range want {
		if chain[i].Name != want[i] {
			t.Fatalf("chain[%d] = %q, want %q", i, chain[i].Name, want[i])
		}
	}
	if got := MiddlewareFromDescriptors(chain); len(got) != len(chain) {
		t.Fatalf("MiddlewareFromDescriptors length = %d", len(got))
	}
}

func TestDefaultChainInstallsScopeBeforeHandler(t *testing.T) {
	chain := DefaultChain(Options{
		RateLimitPerSecond: 10,
		Logger:             quiet,
		NewScope:           fileScopes(t, "http://127.0.0.1:1"),
	})

	s := newFakeSession(context.Background(), "alice", "203.0.113.5")
	called := false
	h := Compose(func(sess ssh.Session) {
		called = true
		store, err := session.FromContext(sess.Context())
		if err != nil {
			t.Fatalf("FromContext() error = %v", err)
		}
		if store.LoggedIn() {
			t.Fatalf("fresh user should start signed out")
		}
		scope, ok := ScopeFromContext(sess.Context())
		if !ok || scope.User != "alice" || scope.Session != store {
			t.Fatalf("scope = %+v, %v", scope, ok)
		}
		if user, _ := UserFromContext(sess.Context()); user != "alice" {
			t.Fatalf("user = %q", user)
		}
	}, chain)
	h(s)

	if !called {
		t.Fatalf("expected handler to run")
	}
}

func TestUsernameRoutingAcceptsPortableNames(t *testing.T) {
	for _, user := range []string{"alice", "_svc", "ops-2", "a"} {
		t.Run(user, func(t *testing.T) {
			s := newFakeSession(context.Background(), user, "203.0.113.5")
			called := false
			usernameRouting(quiet)(func(ssh.Session) { called = true })(s)
			if !called {
				t.Fatalf("expected next handler for %q", user)
			}
			if got, _ := UserFromContext(s.Context()); got != user {
				t.Fatalf("user = %q", got)
			}
		})
	}
}

func TestUsernameRoutingRejectsUnsafeNames(t *testing.T) {
	tests := []struct {
		name string
		user string
	}{
		{name: "different casing", user: "Alice"},
		{name: "leading whitespace", user: " alice"},
		{name: "path traversal", user: "../root"},
		{name: "path separator", user: "ops/alice"},
		{name: "utf8 homoglyph", user: "\u0430lice"},
		{name: "empty username", user: ""},
		{name: "leading digit", user: "1alice"},
		{name: "very long username", user: strings.Repeat("a", 33)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newFakeSession(context.Background(), tc.user, "203.0.113.5")
			called := false
			usernameRouting(quiet)(func(ssh.Session) { called = true })(s)

			if called {
				t.Fatalf("unexpected next handler call for user %q", tc.user)
			}
			if _, ok := UserFromContext(s.Context()); ok {
				t.Fatalf("user must not be recorded for rejected %q", tc.user)
			}
			if out := s.output(); len(out) != 1 || out[0] != RejectedUserMessage {
				t.Fatalf("writes = %#v", out)
			}
			if code, ok := s.exited(); !ok || code != 1 {
				t.Fatalf("exit = (%d, %v), want 1", code, ok)
			}
		})
	}
}

func TestSessionScopeRequiresRoutedUser(t *testing.T) {
	s := newFakeSession(context.Background(), "alice", "203.0.113.5")
	called := false
	sessionScope(fileScopes(t, "http://127.0.0.1:1"), quiet)(func(ssh.Session) { called = true })(s)
	if called {
		t.Fatalf("scope must not run without username routing")
	}
	if _, err := session.FromContext(s.Context()); !errors.Is(err, session.ErrNoSessionScope) {
		t.Fatalf("FromContext() error = %v", err)
	}
}

func TestSessionScopeFactoryFailureEndsSession(t *testing.T) {
	s := newFakeSession(context.Background(), "alice", "203.0.113.5")
	s.Context().SetValue(userKey, "alice")
	failing := func(string) (Scope, error) { return Scope{}, errors.New("disk full") }

	called := false
	sessionScope(failing, quiet)(func(ssh.Session) { called = true })(s)
	if called {
		t.Fatalf("handler must not run when the scope cannot be built")
	}
	if code, ok := s.exited(); !ok || code != 1 {
		t.Fatalf("exit = (%d, %v), want 1", code, ok)
	}
}

func TestScopesAreIsolatedPerUserAndSharedAcrossReconnects(t *testing.T) {
	var gotAuth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	scopes := fileScopes(t, srv.URL)
	chain := DefaultChain(Options{RateLimitPerSecond: 100, Logger: quiet, NewScope: scopes, Clock: clockwork.NewFakeClock()})

	run := func(user string, fn func(*session.Store, *api.Client)) {
		s := newFakeSession(context.Background(), user, "203.0.113.5")
		Compose(func(sess ssh.Session) {
			scope, ok := ScopeFromContext(sess.Context())
			if !ok {
				t.Fatalf("scope missing for %s", user)
			}
			fn(scope.Session, scope.Client)
		}, chain)(s)
	}

	run("alice", func(store *session.Store, _ *api.Client) {
		if err := store.Login("tok-alice"); err != nil {
			t.Fatalf("Login() error = %v", err)
		}
	})
	run("bob", func(store *session.Store, client *api.Client) {
		if store.LoggedIn() {
			t.Fatalf("bob must not see alice's session")
		}
		if _, err := client.Health(context.Background()); err != nil {
			t.Fatalf("Health() error = %v", err)
		}
	})
	run("alice", func(store *session.Store, client *api.Client) {
		if store.Token() != "tok-alice" {
			t.Fatalf("reconnect token = %q", store.Token())
		}
		if _, err := client.Health(context.Background()); err != nil {
			t.Fatalf("Health() error = %v", err)
		}
	})

	if len(gotAuth) != 2 || gotAuth[0] != "" || gotAuth[1] != "Bearer tok-alice" {
		t.Fatalf("authorization headers = %#v", gotAuth)
	}
}
