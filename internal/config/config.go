package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration shared by the dashboard, the
// development backend and the CLI.
type Config struct {
	Dashboard DashboardConfig
	Backend   BackendConfig
	Redis     RedisConfig
	DevAPI    DevAPIConfig
	Log       LogConfig
}

type DashboardConfig struct {
	Addr          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	SessionTTL    time.Duration
	SessionSecret string
	SecureCookies bool
	PerPage       int
	MaxPages      int
}

type BackendConfig struct {
	BaseURL     string
	Timeout     time.Duration
	CacheTTL    time.Duration
	Concurrency int
}

type RedisConfig struct {
	URL    string
	Prefix string
}

type DevAPIConfig struct {
	Addr          string
	DBPath        string
	AdminEmail    string
	AdminPassword string
	AgentEmail    string
	AgentPassword string
}

type LogConfig struct {
	Level  string
	Format string
}

type fileConfig struct {
	Dashboard struct {
		Addr          string `yaml:"addr"`
		ReadTimeout   string `yaml:"read_timeout"`
		WriteTimeout  string `yaml:"write_timeout"`
		SessionTTL    string `yaml:"session_ttl"`
		SessionSecret string `yaml:"session_secret"`
		SecureCookies *bool  `yaml:"secure_cookies"`
		PerPage       int    `yaml:"per_page"`
		MaxPages      int    `yaml:"max_pages"`
	} `yaml:"dashboard"`
	Backend struct {
		BaseURL     string `yaml:"base_url"`
		Timeout     string `yaml:"timeout"`
		CacheTTL    string `yaml:"cache_ttl"`
		Concurrency int    `yaml:"concurrency"`
	} `yaml:"backend"`
	Redis struct {
		URL    string `yaml:"url"`
		Prefix string `yaml:"prefix"`
	} `yaml:"redis"`
	DevAPI struct {
		Addr          string `yaml:"addr"`
		DBPath        string `yaml:"db_path"`
		AdminEmail    string `yaml:"admin_email"`
		AdminPassword string `yaml:"admin_password"`
		AgentEmail    string `yaml:"agent_email"`
		AgentPassword string `yaml:"agent_password"`
	} `yaml:"devapi"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func Defaults() Config {
	return Config{
		Dashboard: DashboardConfig{
			Addr:         ":3000",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			SessionTTL:   12 * time.Hour,
			PerPage:      10,
			MaxPages:     3,
		},
		Backend: BackendConfig{
			BaseURL:     "http://localhost:8080",
			Timeout:     8 * time.Second,
			CacheTTL:    30 * time.Second,
			Concurrency: 4,
		},
		Redis: RedisConfig{
			Prefix: "lotdesk",
		},
		DevAPI: DevAPIConfig{
			Addr:       ":8080",
			DBPath:     "devapi.db",
			AdminEmail: "admin@lotdesk.local",
			AgentEmail: "agente@lotdesk.local",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load resolves configuration in priority order: defaults, YAML file, then
// environment. An empty path or a missing file skips the file layer.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := applyFile(&cfg, raw); err != nil {
				return Config{}, err
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, raw []byte) error {
	var f fileConfig
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&cfg.Dashboard.Addr, f.Dashboard.Addr)
	setString(&cfg.Dashboard.SessionSecret, f.Dashboard.SessionSecret)
	if f.Dashboard.SecureCookies != nil {
		cfg.Dashboard.SecureCookies = *f.Dashboard.SecureCookies
	}
	setInt(&cfg.Dashboard.PerPage, f.Dashboard.PerPage)
	setInt(&cfg.Dashboard.MaxPages, f.Dashboard.MaxPages)
	setString(&cfg.Backend.BaseURL, f.Backend.BaseURL)
	setInt(&cfg.Backend.Concurrency, f.Backend.Concurrency)
	setString(&cfg.Redis.URL, f.Redis.URL)
	setString(&cfg.Redis.Prefix, f.Redis.Prefix)
	setString(&cfg.DevAPI.Addr, f.DevAPI.Addr)
	setString(&cfg.DevAPI.DBPath, f.DevAPI.DBPath)
	setString(&cfg.DevAPI.AdminEmail, f.DevAPI.AdminEmail)
	setString(&cfg.DevAPI.AdminPassword, f.DevAPI.AdminPassword)
	setString(&cfg.DevAPI.AgentEmail, f.DevAPI.AgentEmail)
	setString(&cfg.DevAPI.AgentPassword, f.DevAPI.AgentPassword)
	setString(&cfg.Log.Level, f.Log.Level)
	setString(&cfg.Log.Format, f.Log.Format)

	durations := []struct {
		name  string
		raw   string
		field *time.Duration
	}{
		{"dashboard.read_timeout", f.Dashboard.ReadTimeout, &cfg.Dashboard.ReadTimeout},
		{"dashboard.write_timeout", f.Dashboard.WriteTimeout, &cfg.Dashboard.WriteTimeout},
		{"dashboard.session_ttl", f.Dashboard.SessionTTL, &cfg.Dashboard.SessionTTL},
		{"backend.timeout", f.Backend.Timeout, &cfg.Backend.Timeout},
		{"backend.cache_ttl", f.Backend.CacheTTL, &cfg.Backend.CacheTTL},
	}
	for _, d := range durations {
		if err := setDuration(d.field, d.raw); err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Dashboard.Addr, firstEnv("LOTDESK_DASHBOARD_ADDR", "CLIENT_ADDR"))
	setString(&cfg.Dashboard.SessionSecret, os.Getenv("LOTDESK_SESSION_SECRET"))
	setString(&cfg.Backend.BaseURL, firstEnv("LOTDESK_BACKEND_URL", "API_BASE_URL"))
	setString(&cfg.Redis.URL, firstEnv("LOTDESK_REDIS_URL", "REDIS_URL"))
	setString(&cfg.DevAPI.Addr, firstEnv("LOTDESK_DEVAPI_ADDR", "API_ADDR"))
	setString(&cfg.DevAPI.DBPath, os.Getenv("LOTDESK_DEVAPI_DB_PATH"))
	setString(&cfg.DevAPI.AdminEmail, os.Getenv("LOTDESK_DEVAPI_ADMIN_EMAIL"))
	setString(&cfg.DevAPI.AdminPassword, os.Getenv("LOTDESK_DEVAPI_ADMIN_PASSWORD"))
	setString(&cfg.DevAPI.AgentEmail, os.Getenv("LOTDESK_DEVAPI_AGENT_EMAIL"))
	setString(&cfg.DevAPI.AgentPassword, os.Getenv("LOTDESK_DEVAPI_AGENT_PASSWORD"))
	setString(&cfg.Log.Level, os.Getenv("LOTDESK_LOG_LEVEL"))
	setString(&cfg.Log.Format, os.Getenv("LOTDESK_LOG_FORMAT"))

	if raw := os.Getenv("LOTDESK_SECURE_COOKIES"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("LOTDESK_SECURE_COOKIES: %w", err)
		}
		cfg.Dashboard.SecureCookies = v
	}
	if err := setDuration(&cfg.Backend.CacheTTL, os.Getenv("LOTDESK_CACHE_TTL")); err != nil {
		return fmt.Errorf("LOTDESK_CACHE_TTL: %w", err)
	}
	if err := setDuration(&cfg.Dashboard.SessionTTL, os.Getenv("LOTDESK_SESSION_TTL")); err != nil {
		return fmt.Errorf("LOTDESK_SESSION_TTL: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Dashboard.Addr) == "" {
		return errors.New("dashboard addr is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend base url %q is not an absolute url", c.Backend.BaseURL)
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("backend timeout must be positive")
	}
	if c.Backend.CacheTTL < 0 {
		return errors.New("backend cache ttl cannot be negative")
	}
	if c.Backend.Concurrency <= 0 {
		return errors.New("backend concurrency must be positive")
	}
	if c.Dashboard.SessionTTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if c.Dashboard.PerPage <= 0 || c.Dashboard.MaxPages <= 0 {
		return errors.New("per_page and max_pages must be positive")
	}
	if secret := c.Dashboard.SessionSecret; secret != "" && len(secret) < 32 {
		return errors.New("session secret must be at least 32 characters")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
