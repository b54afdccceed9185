package session_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asci-dashboard/internal/api"
	"asci-dashboard/internal/session"
	"asci-dashboard/internal/storage"
)

// authEcho answers /health with the Authorization header it saw.
type authEcho struct {
	mu   sync.Mutex
	seen []string
}

func (a *authEcho) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	value, ok := r.Header["Authorization"]
	a.mu.Lock()
	if ok {
		a.seen = append(a.seen, value[0])
	} else {
		a.seen = append(a.seen, "<absent>")
	}
	a.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"status":"ok"}`)
}

func (a *authEcho) last() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seen[len(a.seen)-1]
}

func TestSessionDrivesClientHeadersAcrossRestart(t *testing.T) {
	backend := &authEcho{}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	fs := storage.NewFileStore(path)
	client := api.NewClient(srv.URL)
	store, err := session.NewStore(fs, client)
	require.NoError(t, err)

	_, err = client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "<absent>", backend.last())

	require.NoError(t, store.Login("tok-1"))
	_, err = client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", backend.last())

	require.NoError(t, store.Login("tok-2"))
	_, err = client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-2", backend.last())

	// A fresh process sees the persisted token.
	reopened := storage.NewFileStore(path)
	restartedClient := api.NewClient(srv.URL)
	restarted, err := session.NewStore(reopened, restartedClient)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", restarted.Token())
	value, ok := restartedClient.DefaultHeader("Authorization")
	require.True(t, ok)
	assert.Equal(t, "Bearer tok-2", value)

	require.NoError(t, restarted.Logout())
	_, err = restartedClient.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "<absent>", backend.last())

	_, ok, err = storage.NewFileStore(path).Get(storage.TokenKey)
	require.NoError(t, err)
	assert.False(t, ok)
}
