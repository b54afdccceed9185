package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAPIBaseURL         = "http://127.0.0.1:8000/api"
	defaultAPITimeout         = 15 * time.Second
	defaultThemeSignal        = SignalTerminal
	defaultThemePollInterval  = 5 * time.Second
	defaultLogLevel           = "info"
	defaultHost               = "0.0.0.0"
	defaultPort               = 2222
	defaultHostKeyPath        = ".data/host_ed25519"
	defaultIdleTimeout        = 120 * time.Second
	defaultMaxSessions        = 32
	defaultRateLimitPerSecond = 20
	minimumRateLimit          = 1
	maximumConfiguredSessions = 1024
)

// Theme signal sources.
const (
	SignalTerminal  = "terminal"
	SignalFile      = "file"
	SignalGSettings = "gsettings"
)

// Config captures startup settings for every asci command.
type Config struct {
	APIBaseURL string
	APITimeout time.Duration

	StateDir string

	ThemeSignal       string
	AppearanceFile    string
	ThemePollInterval time.Duration

	LogLevel string
	LogFile  string

	SSH SSHConfig
}

// SSHConfig holds the settings used only by `asci serve`.
type SSHConfig struct {
	Host               string
	Port               int
	HostKeyPath        string
	IdleTimeout        time.Duration
	MaxSessions        int
	RateLimitPerSecond int
}

// StatePath is the local dashboard's storage file.
func (c Config) StatePath() string {
	return filepath.Join(c.StateDir, "state.json")
}

// UserStatePath is the storage file for one SSH user.
func (c Config) UserStatePath(user string) string {
	return filepath.Join(c.StateDir, "users", user+".json")
}

// Load applies optional dotenv files, then reads the environment. Variables
// already present in the environment are not overridden. Without arguments it
// tries ".env" in the working directory.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, path := range envFiles {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}
	return LoadFromEnv()
}

// LoadFromEnv loads runtime configuration from environment variables. Every
// invalid variable is reported in the returned error.
func LoadFromEnv() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	apiBaseURL, err := readURL("ASCI_API_BASE_URL", defaultAPIBaseURL)
	collect(err)
	apiTimeout, err := readDuration("ASCI_API_TIMEOUT", defaultAPITimeout)
	collect(err)

	stateDir, err := readRequiredOrDefault("ASCI_STATE_DIR", defaultStateDir())
	collect(err)

	signal, err := readChoice("ASCI_THEME_SIGNAL", defaultThemeSignal, SignalTerminal, SignalFile, SignalGSettings)
	collect(err)
	appearanceFile := strings.TrimSpace(os.Getenv("ASCI_APPEARANCE_FILE"))
	if signal == SignalFile && appearanceFile == "" {
		collect(fmt.Errorf("ASCI_APPEARANCE_FILE is required when ASCI_THEME_SIGNAL=%s", SignalFile))
	}
	pollInterval, err := readDuration("ASCI_THEME_POLL_INTERVAL", defaultThemePollInterval)
	collect(err)

	logLevel, err := readChoice("ASCI_LOG_LEVEL", defaultLogLevel, "debug", "info", "warn", "error", "fatal")
	collect(err)
	logFile := strings.TrimSpace(os.Getenv("ASCI_LOG_FILE"))

	ssh, err := loadSSH()
	collect(err)

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}

	return Config{
		APIBaseURL:        apiBaseURL,
		APITimeout:        apiTimeout,
		StateDir:          filepath.Clean(stateDir),
		ThemeSignal:       signal,
		AppearanceFile:    appearanceFile,
		ThemePollInterval: pollInterval,
		LogLevel:          logLevel,
		LogFile:           logFile,
		SSH:               ssh,
	}, nil
}

func loadSSH() (SSHConfig, error) {
	host, err := readRequiredOrDefault("ASCI_SSH_HOST", defaultHost)
	if err != nil {
		return SSHConfig{}, err
	}

	port, err := readInt("ASCI_SSH_PORT", defaultPort, 1, 65535)
	if err != nil {
		return SSHConfig{}, err
	}

	hostKeyPath, err := readRequiredOrDefault("ASCI_SSH_HOST_KEY_PATH", defaultHostKeyPath)
	if err != nil {
		return SSHConfig{}, err
	}
	cleanHostKeyPath := filepath.Clean(hostKeyPath)
	if cleanHostKeyPath == "." {
		return SSHConfig{}, fmt.Errorf("ASCI_SSH_HOST_KEY_PATH must not resolve to current directory")
	}

	idleTimeout, err := readDuration("ASCI_SSH_IDLE_TIMEOUT", defaultIdleTimeout)
	if err != nil {
		return SSHConfig{}, err
	}

	maxSessions, err := readInt("ASCI_SSH_MAX_SESSIONS", defaultMaxSessions, 1, maximumConfiguredSessions)
	if err != nil {
		return SSHConfig{}, err
	}

	rateLimitPerSecond, err := readInt("ASCI_SSH_RATE_LIMIT_PER_SECOND", defaultRateLimitPerSecond, minimumRateLimit, 10000)
	if err != nil {
		return SSHConfig{}, err
	}

	return SSHConfig{
		Host:               host,
		Port:               port,
		HostKeyPath:        cleanHostKeyPath,
		IdleTimeout:        idleTimeout,
		MaxSessions:        maxSessions,
		RateLimitPerSecond: rateLimitPerSecond,
	}, nil
}

func defaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "asci")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "asci")
	}
	return filepath.Join(os.TempDir(), "asci")
}

func readRequiredOrDefault(key, fallback string) (string, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%s must not be empty", key)
	}

	return raw, nil
}

func readURL(key, fallback string) (string, error) {
	raw, err := readRequiredOrDefault(key, fallback)
	if err != nil {
		return "", err
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%s must be a valid URL: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%s must use http or https", key)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("%s must include a host", key)
	}

	return strings.TrimRight(raw, "/"), nil
}

func readChoice(key, fallback string, choices ...string) (string, error) {
	raw, err := readRequiredOrDefault(key, fallback)
	if err != nil {
		return "", err
	}
	raw = strings.ToLower(raw)
	for _, c := range choices {
		if raw == c {
			return raw, nil
		}
	}
	return "", fmt.Errorf("%s must be one of %s", key, strings.Join(choices, ", "))
}

func readInt(key string, fallback, min, max int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	if parsed < min || parsed > max {
		return 0, fmt.Errorf("%s must be between %d and %d", key, min, max)
	}

	return parsed, nil
}

func readDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}
