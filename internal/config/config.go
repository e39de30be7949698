// Package config holds all fixloop configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all fixloop configuration.
type Config struct {
	// Core loop settings
	ProjectRoot        string `yaml:"project_root"`
	IntervalSeconds    int    `yaml:"interval_seconds"`
	MaxIterations      int    `yaml:"max_iterations"`
	StabilityThreshold int    `yaml:"stability_threshold"`

	// Known shared library whose import paths the TS2307 strategy may rewrite
	SharedLibrary string `yaml:"shared_library"`

	// Backend health endpoint (probed alongside the frontend services)
	BackendHealthURL string `yaml:"backend_health_url"`

	// Monitored frontend services
	Services []Service `yaml:"services"`

	// Browser probe settings
	Browser BrowserConfig `yaml:"browser"`

	// Health probe settings
	Health HealthConfig `yaml:"health"`

	// Process supervision settings
	Supervisor SupervisorConfig `yaml:"supervisor"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// Service describes one monitored external service.
type Service struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`

	// Directory under <project_root>/frontend; defaults to "<name>-app"
	// except for the container shell, which lives in "container".
	Dir string `yaml:"dir"`

	// Process pattern matched by pkill -f; defaults to "webpack.*<dir>".
	ProcessPattern string `yaml:"process_pattern"`

	// Command relaunched after a fix; defaults to "npm start".
	StartCommand []string `yaml:"start_command"`
}

// AppDir returns the service's working directory.
func (s Service) AppDir(projectRoot string) string {
	return filepath.Join(projectRoot, "frontend", s.Dir)
}

// LogFile returns the service's build log path.
func (s Service) LogFile(projectRoot string) string {
	return filepath.Join(s.AppDir(projectRoot), s.Dir+".log")
}

// Pattern returns the process pattern, applying the default.
func (s Service) Pattern() string {
	if s.ProcessPattern != "" {
		return s.ProcessPattern
	}
	return "webpack.*" + s.Dir
}

// Command returns the start command, applying the default.
func (s Service) Command() []string {
	if len(s.StartCommand) > 0 {
		return s.StartCommand
	}
	return []string{"npm", "start"}
}

// BrowserConfig configures the headless runtime probe.
type BrowserConfig struct {
	Headless          bool   `yaml:"headless"`
	NavigationTimeout string `yaml:"navigation_timeout"`
	SettleDelay       string `yaml:"settle_delay"`
}

// NavTimeout returns the parsed navigation timeout.
func (c BrowserConfig) NavTimeout() time.Duration {
	return parseDuration(c.NavigationTimeout, 10*time.Second)
}

// Settle returns the parsed post-idle settle delay.
func (c BrowserConfig) Settle() time.Duration {
	return parseDuration(c.SettleDelay, 3*time.Second)
}

// HealthConfig configures the health adapter.
type HealthConfig struct {
	Timeout string `yaml:"timeout"`
}

// ProbeTimeout returns the parsed per-request timeout.
func (c HealthConfig) ProbeTimeout() time.Duration {
	return parseDuration(c.Timeout, 3*time.Second)
}

// SupervisorConfig configures process restarts.
type SupervisorConfig struct {
	GracePeriod    string `yaml:"grace_period"`
	InstallTimeout string `yaml:"install_timeout"`
}

// Grace returns the parsed kill-to-relaunch grace period.
func (c SupervisorConfig) Grace() time.Duration {
	return parseDuration(c.GracePeriod, 2*time.Second)
}

// NpmTimeout returns the parsed package-install timeout.
func (c SupervisorConfig) NpmTimeout() time.Duration {
	return parseDuration(c.InstallTimeout, 60*time.Second)
}

// LoggingConfig configures the category debug logs.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories"`
}

// Interval returns the inter-cycle sleep.
func (c *Config) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// DefaultConfig returns the default configuration, mirroring the demo
// micro-frontend platform layout.
func DefaultConfig() *Config {
	return &Config{
		ProjectRoot:        ".",
		IntervalSeconds:    30,
		MaxIterations:      10,
		StabilityThreshold: 3,
		SharedLibrary:      "shared-ui-lib",
		BackendHealthURL:   "http://localhost:8000/health",

		Services: []Service{
			{Name: "container", URL: "http://localhost:3000", Dir: "container"},
			{Name: "user-management", URL: "http://localhost:3001", Dir: "user-management-app"},
			{Name: "data-grid", URL: "http://localhost:3002", Dir: "data-grid-app"},
			{Name: "analytics", URL: "http://localhost:3003", Dir: "analytics-app"},
			{Name: "settings", URL: "http://localhost:3004", Dir: "settings-app"},
		},

		Browser: BrowserConfig{
			Headless:          true,
			NavigationTimeout: "10s",
			SettleDelay:       "3s",
		},

		Health: HealthConfig{
			Timeout: "3s",
		},

		Supervisor: SupervisorConfig{
			GracePeriod:    "2s",
			InstallTimeout: "60s",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults
// if the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ServiceByName finds a configured service.
func (c *Config) ServiceByName(name string) (Service, bool) {
	for _, svc := range c.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return Service{}, false
}

// applyEnvOverrides applies FIXLOOP_* environment variables on top of
// the loaded values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FIXLOOP_PROJECT_ROOT"); v != "" {
		c.ProjectRoot = v
	}
	if v := os.Getenv("FIXLOOP_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.IntervalSeconds = n
		}
	}
	if v := os.Getenv("FIXLOOP_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxIterations = n
		}
	}
	if v := os.Getenv("FIXLOOP_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = b
		}
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
