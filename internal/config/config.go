// Package config discovers the project root, lays out the memory directory
// and loads config.yaml, .env and environment overrides.
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
	"gopkg.in/yaml.v3"

	"github.com/lazygophers/ccmem/internal/core/memory"
)

// Layout of the memory directory under the project root.
const (
	MemoryDirRel   = ".lazygophers/ccplugin/memory"
	DBFileName     = "memory.db"
	ConfigFileName = "config.yaml"
	EnvFileName    = ".env"
	LogDirName     = "logs"
	LogFileName    = "ccmem.log"

	// GitignoreRule keeps the memory directory out of version control.
	GitignoreRule = "/" + MemoryDirRel + "/"
)

// Environment overrides.
const (
	EnvDBPath   = "CCMEM_DB_PATH"
	EnvDebug    = "CCMEM_DEBUG"
	EnvPoolSize = "CCMEM_POOL_SIZE"
)

// rootMarkers identify a project root.
var rootMarkers = []string{".git", "pyproject.toml"}

// Config is the resolved configuration of one project.
type Config struct {
	ProjectRoot string `yaml:"-"`
	MemoryDir   string `yaml:"-"`

	DBPath   string         `yaml:"db_path"`
	Debug    bool           `yaml:"debug"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Hooks    HooksConfig    `yaml:"hooks"`
	Cleanup  CleanupConfig  `yaml:"cleanup"`
	Web      WebConfig      `yaml:"web"`
}

// DatabaseConfig tunes the storage engine.
type DatabaseConfig struct {
	PoolSize           int `yaml:"pool_size"`
	BusyTimeoutSeconds int `yaml:"busy_timeout_seconds"`
}

// BusyTimeout returns the busy timeout as a duration.
func (d DatabaseConfig) BusyTimeout() time.Duration {
	return time.Duration(d.BusyTimeoutSeconds) * time.Second
}

// LogConfig configures the rolling log file.
type LogConfig struct {
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// HooksConfig configures the hook bridge.
type HooksConfig struct {
	Priorities             map[string]int `yaml:"priorities"`
	StopGateCommand        string         `yaml:"stop_gate_command"`
	StopGateTimeoutSeconds int            `yaml:"stop_gate_timeout_seconds"`
}

// StopGateTimeout returns the stop gate timeout as a duration.
func (h HooksConfig) StopGateTimeout() time.Duration {
	return time.Duration(h.StopGateTimeoutSeconds) * time.Second
}

// CleanupConfig is the policy of scheduled cleanup in serve. A nil
// threshold skips that pass; an empty schedule disables the job.
type CleanupConfig struct {
	UnusedDays     *int   `yaml:"unused_days"`
	DeprecatedDays *int   `yaml:"deprecated_days"`
	Schedule       string `yaml:"schedule"`
}

// WebConfig configures the web API of serve.
type WebConfig struct {
	Listen    string  `yaml:"listen"`
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// Default returns the configuration used when no file overrides it.
func Default(root string) *Config {
	memDir := filepath.Join(root, filepath.FromSlash(MemoryDirRel))
	return &Config{
		ProjectRoot: root,
		MemoryDir:   memDir,
		DBPath:      filepath.Join(memDir, DBFileName),
		Database: DatabaseConfig{
			PoolSize:           5,
			BusyTimeoutSeconds: 30,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Hooks: HooksConfig{
			Priorities:             memory.DefaultHookPriorities(),
			StopGateTimeoutSeconds: 60,
		},
		Web: WebConfig{
			Listen:    "127.0.0.1:8765",
			RateLimit: 20,
			Burst:     40,
		},
	}
}

// FindProjectRoot walks up from start until a directory holding a root
// marker is found. It returns start when none is.
func FindProjectRoot(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return start
	}
	for {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			abs, _ := filepath.Abs(start)
			return abs
		}
		dir = parent
	}
}

// Load resolves the configuration for the project containing dir: defaults,
// then config.yaml, then .env, then the environment.
func Load(dir string) (*Config, error) {
	cfg := Default(FindProjectRoot(dir))
	if err := cfg.loadFile(cfg.ConfigPath()); err != nil {
		return nil, err
	}

	envPath := filepath.Join(cfg.MemoryDir, EnvFileName)
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// Reload re-reads config.yaml and the environment over fresh defaults for
// the same project.
func (c *Config) Reload() (*Config, error) {
	next := Default(c.ProjectRoot)
	if err := next.loadFile(next.ConfigPath()); err != nil {
		return nil, err
	}
	if err := next.applyEnv(); err != nil {
		return nil, err
	}
	next.normalize()
	return next, nil
}

// ConfigPath is the path of config.yaml.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.MemoryDir, ConfigFileName)
}

// LogPath is the path of the rolling log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.MemoryDir, LogDirName, LogFileName)
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	defaults := c.Hooks.Priorities
	c.Hooks.Priorities = nil
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	merged := make(map[string]int, len(defaults)+len(c.Hooks.Priorities))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range c.Hooks.Priorities {
		if err := memory.ValidatePriority(v); err != nil {
			return fmt.Errorf("failed to parse config %s: hooks.priorities.%s: %w", path, k, err)
		}
		merged[k] = v
	}
	c.Hooks.Priorities = merged
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(EnvDebug); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", EnvDebug, v, err)
		}
		c.Debug = debug
	}
	if v := os.Getenv(EnvPoolSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid %s=%q: must be a positive integer", EnvPoolSize, v)
		}
		c.Database.PoolSize = n
	}
	return nil
}

func (c *Config) normalize() {
	if c.DBPath != "" && !filepath.IsAbs(c.DBPath) {
		c.DBPath = filepath.Join(c.ProjectRoot, c.DBPath)
	}
	if c.Debug {
		c.Log.Level = "debug"
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
}

// EnsureLayout creates the memory directory and, the first time, appends
// the memory directory rule to the project .gitignore.
func (c *Config) EnsureLayout() error {
	if err := os.MkdirAll(c.MemoryDir, 0755); err != nil {
		return fmt.Errorf("failed to create memory dir: %w", err)
	}
	if dir := filepath.Dir(c.DBPath); dir != c.MemoryDir {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create db dir: %w", err)
		}
	}
	return ensureGitignore(filepath.Join(c.ProjectRoot, ".gitignore"))
}

func ensureGitignore(path string) error {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read .gitignore: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == GitignoreRule {
			return nil
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open .gitignore: %w", err)
	}
	defer f.Close()

	prefix := ""
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		prefix = "\n"
	}
	if _, err := f.WriteString(prefix + GitignoreRule + "\n"); err != nil {
		return fmt.Errorf("failed to update .gitignore: %w", err)
	}
	return nil
}
