package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type backend struct {
	mu       sync.Mutex
	auth     []string
	lastBody string
	lastURL  string
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.auth = append(b.auth, r.Header.Get("Authorization"))
	b.lastBody = string(body)
	b.lastURL = r.URL.String()
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/auth/login":
		if !strings.Contains(string(body), `"password":"admin123"`) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Invalid username or password"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access_token":"tok-cli","token_type":"bearer"}`)
	case "/health":
		_, _ = io.WriteString(w, `{"status":"ok","service":"risk-api"}`)
	case "/history":
		_, _ = io.WriteString(w, `{"items":[]}`)
	case "/predict/live":
		_, _ = io.WriteString(w, `{"predicted_class_id":2,"predicted_label":"Delayed","confidence":0.71,"probabilities":{"Delayed":0.71}}`)
	case "/reports/summary":
		_, _ = io.WriteString(w, `{"risk_summary":{"On-Time":1200,"At Risk":300,"Delayed":100},"model_summary":{"name":"Delivery Risk","algorithm":"RandomForestClassifier","classes":["On-Time","At Risk","Delayed"]},"feature_impact":[{"feature":"warehouse_time","importance":0.4}],"class_distribution":{"before_smote":{"On-Time":1200},"after_smote":{"On-Time":1200}}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"Not Found"}`)
	}
}

func (b *backend) authHeaders() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.auth...)
}

type cli struct {
	t       *testing.T
	dir     string
	backend *backend
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	b := &backend{}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	appearance := filepath.Join(dir, "appearance")
	require.NoError(t, os.WriteFile(appearance, []byte("dark\n"), 0o600))

	t.Setenv("ASCI_API_BASE_URL", srv.URL)
	t.Setenv("ASCI_STATE_DIR", filepath.Join(dir, "state"))
	t.Setenv("ASCI_THEME_SIGNAL", "file")
	t.Setenv("ASCI_APPEARANCE_FILE", appearance)
	t.Setenv("ASCI_LOG_FILE", filepath.Join(dir, "asci.log"))
	t.Setenv("ASCI_PASSWORD", "")
	return &cli{t: t, dir: dir, backend: b}
}

func (c *cli) run(args ...string) (string, string, int) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"--env-file", filepath.Join(c.dir, "absent.env")}, args...)
	code := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestLoginPersistsTokenAcrossInvocations(t *testing.T) {
	c := newCLI(t)

	out, _, code := c.run("status")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "session: signed out")

	out, errOut, code := c.run("login", "-u", "admin", "-p", "admin123")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "Signed in as admin\n", out)

	out, _, code = c.run("status")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "session: signed in")

	_, errOut, code = c.run("history", "-n", "5")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "/history?limit=5", c.backend.lastURL)

	headers := c.backend.authHeaders()
	assert.Equal(t, "Bearer tok-cli", headers[len(headers)-1])

	out, _, code = c.run("logout")
	require.Equal(t, 0, code)
	assert.Equal(t, "Signed out\n", out)

	_, errOut, code = c.run("overview")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not signed in")
}

func TestLoginFailureReportsBackendDetail(t *testing.T) {
	c := newCLI(t)
	_, errOut, code := c.run("login", "-u", "admin", "-p", "wrong")
	assert.Equal(t, 1, code)
	assert.Equal(t, "asci: Invalid username or password\n", errOut)

	out, _, _ := c.run("status")
	assert.Contains(t, out, "session: signed out")
}

func TestLoginRequiresCredentials(t *testing.T) {
	c := newCLI(t)
	_, errOut, code := c.run("login", "-u", "admin")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "username and password are required")
}

func TestThemeCommandsPersistMode(t *testing.T) {
	c := newCLI(t)

	out, _, code := c.run("theme", "get")
	require.Equal(t, 0, code)
	assert.Equal(t, "corporate\n", out)

	out, _, code = c.run("theme", "resolve")
	require.Equal(t, 0, code)
	assert.Equal(t, "dark\n", out, "corporate follows the appearance file")

	out, _, code = c.run("theme", "set", "Light")
	require.Equal(t, 0, code)
	assert.Equal(t, "light (light)\n", out)

	out, _, _ = c.run("theme", "get")
	assert.Equal(t, "light\n", out)

	_, errOut, code := c.run("theme", "set", "sepia")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown theme mode")
}

func TestPredictSendsFormValues(t *testing.T) {
	c := newCLI(t)
	_, errOut, code := c.run("login", "-u", "admin", "-p", "admin123")
	require.Equal(t, 0, code, errOut)

	out, errOut, code := c.run("predict", "--traffic", "high", "--shipment-distance", "880")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "Delayed", gjson.Get(out, "predicted_label").String())

	body := c.backend.lastBody
	assert.Equal(t, "high", gjson.Get(body, "traffic_level").String())
	assert.Equal(t, 880.0, gjson.Get(body, "shipment_distance").Float())
	assert.Equal(t, 120.0, gjson.Get(body, "order_volume").Float())

	_, errOut, code = c.run("predict", "--weather", "hail")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "weather must be one of")
}

func TestUploadChecksColumnsBeforeSending(t *testing.T) {
	c := newCLI(t)
	_, errOut, code := c.run("login", "-u", "admin", "-p", "admin123")
	require.Equal(t, 0, code, errOut)
	before := len(c.backend.authHeaders())

	path := filepath.Join(c.dir, "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte("order_volume\n3\n"), 0o600))
	_, errOut, code = c.run("upload", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "missing columns: warehouse_time")

	_, errOut, code = c.run("upload", filepath.Join(c.dir, "orders.txt"))
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "only CSV files are supported")

	assert.Len(t, c.backend.authHeaders(), before, "invalid files must not reach the backend")
}

func TestReportTextAndPDF(t *testing.T) {
	c := newCLI(t)
	_, errOut, code := c.run("login", "-u", "admin", "-p", "admin123")
	require.Equal(t, 0, code, errOut)

	out, errOut, code := c.run("report")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Risk Summary")
	assert.Contains(t, out, "1,200")

	pdf := filepath.Join(c.dir, "report.pdf")
	out, errOut, code = c.run("report", "--pdf="+pdf)
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "Report saved to "+pdf+"\n", out)

	data, err := os.ReadFile(pdf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestHealthWorksSignedOut(t *testing.T) {
	c := newCLI(t)
	out, errOut, code := c.run("health")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "ok", gjson.Get(out, "status").String())
}

func TestInvalidConfigFailsFast(t *testing.T) {
	c := newCLI(t)
	t.Setenv("ASCI_API_BASE_URL", "ftp://nowhere")
	_, errOut, code := c.run("status")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "ASCI_API_BASE_URL")
}
