package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dgnsrekt/fa_fetcher/internal/browser"
	"github.com/dgnsrekt/fa_fetcher/internal/fetcher"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the icon fetcher.
type Config struct {
	// Account credentials for the icon site.
	Email    string
	Password string

	// Site and browser settings
	BaseURL      string
	DownloadsDir string
	CDPURL       string
	ExecPath     string
	ProfileDir   string
	Headless     bool
	WindowSize   string

	// Output defaults
	OutputDir  string
	ReturnSVGs bool

	// Timing
	SelectorTimeoutMS int
	LoginTimeoutMS    int
	NavTimeoutMS      int
	KeyDelayMS        int
	PollIntervalMS    int
	PollAttempts      int
	DownloadDetect    string

	// Ambient
	LogLevel     string
	LogFile      string
	JournalDir   string
	NTFYEndpoint string

	// Control API
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		Email:             os.Getenv("FETCHER_EMAIL"),
		Password:          os.Getenv("FETCHER_PASSWORD"),
		BaseURL:           getEnvOrDefault("FETCHER_BASE_URL", "https://fontawesome.com"),
		DownloadsDir:      getEnvOrDefault("FETCHER_DOWNLOADS_DIR", defaultDownloadsDir()),
		CDPURL:            os.Getenv("FETCHER_CDP_URL"),
		ExecPath:          os.Getenv("FETCHER_CHROME_PATH"),
		ProfileDir:        os.Getenv("FETCHER_PROFILE_DIR"),
		Headless:          getEnvBoolOrDefault("FETCHER_HEADLESS", false),
		WindowSize:        getEnvOrDefault("FETCHER_WINDOW_SIZE", "1200,800"),
		OutputDir:         os.Getenv("FETCHER_OUTPUT_DIR"),
		ReturnSVGs:        getEnvBoolOrDefault("FETCHER_RETURN_SVGS", false),
		SelectorTimeoutMS: getEnvIntOrDefault("FETCHER_SELECTOR_TIMEOUT_MS", 5000),
		LoginTimeoutMS:    getEnvIntOrDefault("FETCHER_LOGIN_TIMEOUT_MS", 10000),
		NavTimeoutMS:      getEnvIntOrDefault("FETCHER_NAV_TIMEOUT_MS", 30000),
		KeyDelayMS:        getEnvIntOrDefault("FETCHER_KEY_DELAY_MS", 50),
		PollIntervalMS:    getEnvIntOrDefault("FETCHER_POLL_INTERVAL_MS", 500),
		PollAttempts:      getEnvIntOrDefault("FETCHER_POLL_ATTEMPTS", 20),
		DownloadDetect:    strings.ToLower(getEnvOrDefault("FETCHER_DOWNLOAD_DETECT", fetcher.DetectEvents)),
		LogLevel:          strings.ToLower(getEnvOrDefault("FETCHER_LOG_LEVEL", "info")),
		LogFile:           getEnvOrDefault("FETCHER_LOG_FILE", "logs/fafetch.log"),
		NTFYEndpoint:      os.Getenv("FETCHER_NTFY_ENDPOINT"),
		BindAddr:          getEnvOrDefault("FETCHER_BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates:    getEnvListOrDefault("FETCHER_PORT_CANDIDATES", []string{"127.0.0.1:8191", "127.0.0.1:8192"}),
		PortAutoFallback:  getEnvBoolOrDefault("FETCHER_PORT_AUTO_FALLBACK", true),
	}

	// An explicitly empty FETCHER_JOURNAL_DIR disables the journal.
	cfg.JournalDir = "./fetch_journal"
	if v, ok := os.LookupEnv("FETCHER_JOURNAL_DIR"); ok {
		cfg.JournalDir = strings.TrimSpace(v)
	}

	if cfg.SelectorTimeoutMS < 500 {
		cfg.SelectorTimeoutMS = 500
	}
	if cfg.LoginTimeoutMS < 1000 {
		cfg.LoginTimeoutMS = 1000
	}
	if cfg.NavTimeoutMS < 1000 {
		cfg.NavTimeoutMS = 1000
	}
	if cfg.KeyDelayMS < 0 {
		cfg.KeyDelayMS = 0
	}
	if cfg.PollIntervalMS < 50 {
		cfg.PollIntervalMS = 50
	}
	if cfg.PollAttempts < 1 {
		cfg.PollAttempts = 1
	}
	if cfg.DownloadDetect != fetcher.DetectPoll {
		cfg.DownloadDetect = fetcher.DetectEvents
	}
	return cfg, nil
}

// FetcherConfig maps the loaded settings onto the fetcher.
func (c *Config) FetcherConfig() fetcher.Config {
	return fetcher.Config{
		BaseURL:         c.BaseURL,
		DownloadsDir:    c.DownloadsDir,
		SelectorTimeout: ms(c.SelectorTimeoutMS),
		LoginTimeout:    ms(c.LoginTimeoutMS),
		NavTimeout:      ms(c.NavTimeoutMS),
		KeyDelay:        ms(c.KeyDelayMS),
		PollInterval:    ms(c.PollIntervalMS),
		PollAttempts:    c.PollAttempts,
		Detect:          c.DownloadDetect,
	}
}

// BrowserConfig maps the loaded settings onto the browser launcher.
func (c *Config) BrowserConfig() browser.Config {
	return browser.Config{
		CDPURL:     c.CDPURL,
		ExecPath:   c.ExecPath,
		ProfileDir: c.ProfileDir,
		Headless:   c.Headless,
		WindowSize: c.WindowSize,
		NavTimeout: ms(c.NavTimeoutMS),
	}
}

// Credentials returns the configured account.
func (c *Config) Credentials() fetcher.Credentials {
	return fetcher.Credentials{Email: c.Email, Password: c.Password}
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func defaultDownloadsDir() string {
	home := os.Getenv("USERPROFILE")
	if home == "" {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, "Downloads")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
