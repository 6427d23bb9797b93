package config

import "path/filepath"

const (
	defaultStaticDir    = "public"
	defaultAPIDir       = "src/api"
	defaultRegistryPath = ".cache/page-registry.json"
	defaultRoutesFile   = "deploy.json"
	defaultOutputDir    = ".sitedeploy"
	defaultHistoryFile  = "history.db"
	defaultSubject      = "sitedeploy.manifest.assembled"
	defaultNotifyWait   = "5s"
)

func applyDefaults(cfg *Config) {
	p := &cfg.Project
	if p.Root == "" {
		p.Root = "."
	}
	if p.StaticDir == "" {
		p.StaticDir = defaultStaticDir
	}
	if p.APIDir == "" {
		p.APIDir = defaultAPIDir
	}
	if p.RegistryPath == "" {
		p.RegistryPath = defaultRegistryPath
	}
	if p.RoutesFile == "" {
		p.RoutesFile = defaultRoutesFile
	}

	if cfg.Output.Directory == "" {
		cfg.Output.Directory = defaultOutputDir
	}
	// History lives beside the manifest unless placed elsewhere.
	if cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(cfg.Output.Directory, defaultHistoryFile)
	}

	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = defaultSubject
	}
	if cfg.Notify.Timeout == "" {
		cfg.Notify.Timeout = defaultNotifyWait
	}
}
