package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRunner      = "fab"
	DefaultNamespace   = "fab_completion"
	DefaultLogLevel    = "warn"
	DefaultLogMaxBytes = 1 << 20

	// LogLevelOff disables logging entirely.
	LogLevelOff = "off"
)

// Environment variables that override file settings.
const (
	RunnerEnv   = "FAB_COMPLETE_RUNNER"
	CacheDirEnv = "FAB_COMPLETE_CACHE_DIR"
	LogLevelEnv = "FAB_COMPLETE_LOG_LEVEL"
	LogFileEnv  = "FAB_COMPLETE_LOG_FILE"
)

// Config holds the settings of fab-complete.
type Config struct {
	// Runner is the task runner binary, looked up in PATH.
	Runner    string `yaml:"runner"`
	Namespace string `yaml:"namespace"`
	// CacheDir overrides the per-user cache root.
	CacheDir    string `yaml:"cache_dir"`
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	LogMaxBytes int64  `yaml:"log_max_bytes"`

	// Source is the file the settings were read from, if any.
	Source string `yaml:"-"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Runner:      DefaultRunner,
		Namespace:   DefaultNamespace,
		LogLevel:    DefaultLogLevel,
		LogMaxBytes: DefaultLogMaxBytes,
	}
}

// SearchPaths returns the config file locations, most specific first.
func SearchPaths(getenv func(string) string) []string {
	var paths []string

	if xdgConfig := getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		paths = append(paths, filepath.Join(xdgConfig, "fab-complete", "config.yaml"))
	}

	home := getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	if home != "" {
		paths = append(paths, filepath.Join(home, ".config", "fab-complete", "config.yaml"))
		paths = append(paths, filepath.Join(home, ".fab_complete.yaml"))
	}

	return paths
}

// Load reads the first existing file in paths over the defaults, then
// applies environment overrides. A missing file is not an error; a file that
// exists but cannot be parsed is.
func Load(paths []string, getenv func(string) string) (Config, error) {
	cfg := Default()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return cfg, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		cfg.Source = path
		break
	}

	cfg.applyEnv(getenv)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(RunnerEnv); v != "" {
		c.Runner = v
	}
	if v := getenv(CacheDirEnv); v != "" {
		c.CacheDir = v
	}
	if v := getenv(LogLevelEnv); v != "" {
		c.LogLevel = v
	}
	if v := getenv(LogFileEnv); v != "" {
		c.LogFile = v
	}
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Runner) == "" {
		return errors.New("config: runner must not be empty")
	}
	if strings.TrimSpace(c.Namespace) == "" {
		return errors.New("config: namespace must not be empty")
	}
	if strings.ContainsAny(c.Namespace, `/\`) {
		return fmt.Errorf("config: namespace %q must not contain path separators", c.Namespace)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.LogMaxBytes < 0 {
		return fmt.Errorf("config: log_max_bytes must not be negative, got %d", c.LogMaxBytes)
	}
	return nil
}

// LoggingEnabled reports whether log_level is anything but "off".
func (c Config) LoggingEnabled() bool {
	return !strings.EqualFold(c.LogLevel, LogLevelOff)
}

// Level parses log_level. "off" maps to a level above fatal.
func (c Config) Level() (zap.AtomicLevel, error) {
	if !c.LoggingEnabled() {
		return zap.NewAtomicLevelAt(zapcore.FatalLevel + 1), nil
	}
	level, err := zap.ParseAtomicLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return level, fmt.Errorf("config: invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
