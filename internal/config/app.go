package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const envPrefix = "CAPTIONDESK_"

// Worker locates the local transcription worker.
type Worker struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Poll holds polling cadences in milliseconds.
type Poll struct {
	DownloadIntervalMS int `toml:"download_interval_ms"`
	ModelIntervalMS    int `toml:"model_interval_ms"`
	JobIntervalMS      int `toml:"job_interval_ms"`
}

// Logging controls log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Paths holds local storage locations.
type Paths struct {
	DataDir string `toml:"data_dir"`
}

// Updates configures release checks.
type Updates struct {
	CheckURL string `toml:"check_url"`
	Project  string `toml:"project"`
	Schedule string `toml:"schedule"`
}

// AppConfig is the process configuration read from config.toml.
type AppConfig struct {
	Worker  Worker  `toml:"worker"`
	Poll    Poll    `toml:"poll"`
	Logging Logging `toml:"logging"`
	Paths   Paths   `toml:"paths"`
	Updates Updates `toml:"updates"`
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Worker: Worker{URL: "http://127.0.0.1:11220", TimeoutSeconds: 30},
		Poll: Poll{
			DownloadIntervalMS: 300,
			ModelIntervalMS:    500,
			JobIntervalMS:      1000,
		},
		Logging: Logging{Level: "info", Format: "console"},
		Paths:   Paths{DataDir: "~/.captiondesk"},
		Updates: Updates{Project: "captiondesk", Schedule: "0 */6 * * *"},
	}
}

// DefaultConfigPath returns the default location of config.toml.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.captiondesk/config.toml")
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment. A missing
// file is not an error and existing variables win.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadApp reads the config at path (or the default location), applies
// CAPTIONDESK_* environment overrides and validates the result. It also
// reports the resolved path and whether the file existed.
func LoadApp(path string) (*AppConfig, string, bool, error) {
	cfg := DefaultAppConfig()

	if strings.TrimSpace(path) == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return nil, "", false, err
		}
	}
	resolved, err := ExpandPath(path)
	if err != nil {
		return nil, "", false, err
	}

	exists := true
	file, err := os.Open(resolved)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		exists = false
	case err != nil:
		return nil, "", false, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func (c *AppConfig) applyEnv() {
	c.Worker.URL = getEnvString(envPrefix+"WORKER_URL", c.Worker.URL)
	c.Worker.TimeoutSeconds = getEnvInt(envPrefix+"WORKER_TIMEOUT_SECONDS", c.Worker.TimeoutSeconds)
	c.Poll.DownloadIntervalMS = getEnvInt(envPrefix+"DOWNLOAD_INTERVAL_MS", c.Poll.DownloadIntervalMS)
	c.Poll.ModelIntervalMS = getEnvInt(envPrefix+"MODEL_INTERVAL_MS", c.Poll.ModelIntervalMS)
	c.Poll.JobIntervalMS = getEnvInt(envPrefix+"JOB_INTERVAL_MS", c.Poll.JobIntervalMS)
	c.Logging.Level = getEnvString(envPrefix+"LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnvString(envPrefix+"LOG_FORMAT", c.Logging.Format)
	c.Paths.DataDir = getEnvString(envPrefix+"DATA_DIR", c.Paths.DataDir)
	c.Updates.CheckURL = getEnvString(envPrefix+"UPDATE_CHECK_URL", c.Updates.CheckURL)
	c.Updates.Project = getEnvString(envPrefix+"UPDATE_PROJECT", c.Updates.Project)
	c.Updates.Schedule = getEnvString(envPrefix+"UPDATE_SCHEDULE", c.Updates.Schedule)
}

func (c *AppConfig) normalize() error {
	defaults := DefaultAppConfig()

	c.Worker.URL = strings.TrimRight(strings.TrimSpace(c.Worker.URL), "/")
	if c.Worker.TimeoutSeconds <= 0 {
		c.Worker.TimeoutSeconds = defaults.Worker.TimeoutSeconds
	}
	if c.Poll.DownloadIntervalMS <= 0 {
		c.Poll.DownloadIntervalMS = defaults.Poll.DownloadIntervalMS
	}
	if c.Poll.ModelIntervalMS <= 0 {
		c.Poll.ModelIntervalMS = defaults.Poll.ModelIntervalMS
	}
	if c.Poll.JobIntervalMS <= 0 {
		c.Poll.JobIntervalMS = defaults.Poll.JobIntervalMS
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaults.Paths.DataDir
	}
	var err error
	if c.Paths.DataDir, err = ExpandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}

	c.Updates.CheckURL = strings.TrimSpace(c.Updates.CheckURL)
	if strings.TrimSpace(c.Updates.Project) == "" {
		c.Updates.Project = defaults.Updates.Project
	}
	c.Updates.Schedule = strings.TrimSpace(c.Updates.Schedule)
	return nil
}

// Validate reports the first invalid field.
func (c *AppConfig) Validate() error {
	if c.Worker.URL == "" {
		return fmt.Errorf("worker.url is required")
	}
	if !strings.HasPrefix(c.Worker.URL, "http://") && !strings.HasPrefix(c.Worker.URL, "https://") {
		return fmt.Errorf("worker.url must be an http(s) url, got %q", c.Worker.URL)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

// WorkerTimeout returns the HTTP timeout for worker calls.
func (c *AppConfig) WorkerTimeout() time.Duration {
	return time.Duration(c.Worker.TimeoutSeconds) * time.Second
}

// DownloadInterval returns the poll cadence for URL downloads and imports.
func (c *AppConfig) DownloadInterval() time.Duration {
	return time.Duration(c.Poll.DownloadIntervalMS) * time.Millisecond
}

// ModelInterval returns the poll cadence for model downloads.
func (c *AppConfig) ModelInterval() time.Duration {
	return time.Duration(c.Poll.ModelIntervalMS) * time.Millisecond
}

// JobInterval returns the poll cadence for transcription jobs.
func (c *AppConfig) JobInterval() time.Duration {
	return time.Duration(c.Poll.JobIntervalMS) * time.Millisecond
}

// SettingsPath is where user settings are stored.
func (c *AppConfig) SettingsPath() string {
	return filepath.Join(c.Paths.DataDir, "settings.json")
}

// DatabasePath is the local job mirror.
func (c *AppConfig) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "jobs.db")
}

// LockPath guards against a second desktop instance.
func (c *AppConfig) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "captiondesk.lock")
}

// ExpandPath resolves a leading ~ and returns a clean absolute path.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

func getEnvString(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
	}
	return defaultValue
}
