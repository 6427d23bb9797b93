package config

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	derrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/toolchain"
)

func validate(cfg *Config) error {
	if v := cfg.Toolchain.NodeVersion; v != "" {
		major := strings.TrimPrefix(strings.SplitN(v, ".", 2)[0], "v")
		if n, err := strconv.Atoi(major); err != nil || n <= 0 {
			return invalid("toolchain.node_version must be a major version number", v)
		}
	}
	if pm := cfg.Toolchain.PackageManager; pm != "" {
		if _, err := toolchain.ParsePackageManager(pm); err != nil {
			return invalid("toolchain.package_manager must be one of npm, yarn, pnpm, bun", pm)
		}
	}
	if filepath.Clean(cfg.Resolve(cfg.Output.Directory)) == filepath.Clean(cfg.Resolve(cfg.Project.StaticDir)) {
		return invalid("output.directory must differ from project.static_dir", cfg.Output.Directory)
	}
	if _, err := time.ParseDuration(cfg.Notify.Timeout); err != nil {
		return invalid("notify.timeout must be a duration", cfg.Notify.Timeout)
	}
	return nil
}

func invalid(msg, value string) error {
	return derrors.ConfigError(msg).Fatal().UserAction().WithContext("value", value).Build()
}

// NotifyTimeout returns the parsed publish timeout.
func (c *Config) NotifyTimeout() time.Duration {
	d, err := time.ParseDuration(c.Notify.Timeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}
