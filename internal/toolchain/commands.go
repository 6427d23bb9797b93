package toolchain

import (
	"fmt"
	"strings"
)

// Build script names tried in order when no build command is configured.
const (
	ScriptSiteDeployBuild = "sitedeploy-build"
	ScriptBuild           = "build"
)

// FallbackBuildCommand runs when the project defines no build script.
const FallbackBuildCommand = "npx gatsby build"

// binary returns the package manager invocation, pinning pnpm through npx when a
// version is known so the lockfile format matches.
func (t *Toolchain) binary() string {
	if t.PackageManager == PNPM && t.PMVersion != "" {
		return fmt.Sprintf("npx pnpm@%d", majorOf(t.PMVersion))
	}
	if t.PackageManager == "" {
		return string(NPM)
	}
	return string(t.PackageManager)
}

// InstallCommand returns the dependency install command line.
func (t *Toolchain) InstallCommand() string {
	frozen := t.Lockfile != ""
	switch t.PackageManager {
	case Yarn:
		switch {
		case t.Berry:
			if frozen {
				return "yarn install --immutable"
			}
			return "yarn install"
		case frozen:
			return "yarn install --frozen-lockfile"
		}
		return "yarn install"
	case PNPM:
		if frozen {
			return t.binary() + " install --frozen-lockfile"
		}
		return t.binary() + " install"
	case Bun:
		return "bun install"
	default:
		if frozen {
			return "npm ci"
		}
		return "npm install"
	}
}

// RunScript returns the command line that runs a package.json script.
func (t *Toolchain) RunScript(name string) string {
	return t.binary() + " run " + name
}

// BuildCommand selects the build command: configured, then the sitedeploy-build
// script, then the build script, then FallbackBuildCommand. source describes the choice.
func (t *Toolchain) BuildCommand(configured string) (command, source string) {
	if c := strings.TrimSpace(configured); c != "" {
		return c, "config"
	}
	for _, script := range []string{ScriptSiteDeployBuild, ScriptBuild} {
		if _, ok := t.Scripts[script]; ok {
			return t.RunScript(script), "script:" + script
		}
	}
	return FallbackBuildCommand, "fallback"
}
