// Package config loads sitedeploy.yaml and the optional routing file.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	derrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
)

// DefaultPath is where the CLI looks for configuration when -c is not given.
const DefaultPath = "sitedeploy.yaml"

// Config represents the application configuration
type Config struct {
	Project   ProjectConfig   `yaml:"project"`
	Toolchain ToolchainConfig `yaml:"toolchain"`
	Output    OutputConfig    `yaml:"output"`
	History   HistoryConfig   `yaml:"history"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// ProjectConfig locates the site generator's inputs and outputs. Relative paths are
// resolved against Root.
type ProjectConfig struct {
	Name         string `yaml:"name,omitempty"`
	Root         string `yaml:"root"`
	StaticDir    string `yaml:"static_dir"`
	APIDir       string `yaml:"api_dir"`
	RegistryPath string `yaml:"registry_path"`
	RoutesFile   string `yaml:"routes_file"`
}

// ToolchainConfig overrides what the resolver would otherwise detect.
type ToolchainConfig struct {
	NodeVersion    string            `yaml:"node_version,omitempty"`    // major version, e.g. "20"
	PackageManager string            `yaml:"package_manager,omitempty"` // npm|yarn|pnpm|bun
	InstallCommand string            `yaml:"install_command,omitempty"`
	BuildCommand   string            `yaml:"build_command,omitempty"`
	SkipInstall    bool              `yaml:"skip_install,omitempty"`
	SkipBuild      bool              `yaml:"skip_build,omitempty"`
	Env            map[string]string `yaml:"env,omitempty"`
}

// OutputConfig represents output configuration
type OutputConfig struct {
	Directory string `yaml:"directory"`
	Clean     bool   `yaml:"clean"` // remove the directory before writing
}

// HistoryConfig controls the sqlite build history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig controls the prometheus textfile export. Empty disables it.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// NotifyConfig configures the NATS publisher. Empty URL disables notifications.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
	Stream  string `yaml:"stream,omitempty"` // optional JetStream stream
	Timeout string `yaml:"timeout,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load loads configuration from the specified file. A missing file is not an error:
// most projects run on defaults.
func Load(configPath string) (*Config, error) {
	if loaded, err := LoadEnv(filepath.Dir(configPath)); err != nil {
		slog.Warn("Could not load .env file", logfields.Error(err))
	} else if len(loaded) > 0 {
		slog.Debug("Loaded environment files", slog.Any("files", loaded))
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("No configuration file, using defaults", logfields.Path(configPath))
		return Default(), nil
	}
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryConfig, "failed to read config file").
			Fatal().
			WithContext("path", configPath).
			Build()
	}
	return Parse(data)
}

// Parse decodes YAML after expanding ${VAR} references from the environment.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes a configuration file populated with defaults.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return derrors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			UserAction().
			Build()
	}

	cfg := Default()
	cfg.Project.Name = filepath.Base(mustAbs(filepath.Dir(configPath)))
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryInternal, "failed to marshal config").Build()
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}

// Resolve joins p onto the project root unless it is already absolute.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Project.Root, p)
}

func mustAbs(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
