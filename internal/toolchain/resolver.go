package toolchain

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	derrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
)

// Options carry configuration overrides. Empty fields mean detect.
type Options struct {
	NodeVersion    string
	PackageManager string
}

// DefaultResolver reads package.json and lockfiles from the project root.
type DefaultResolver struct {
	opts Options
}

// NewResolver returns a resolver applying the given overrides.
func NewResolver(opts Options) *DefaultResolver {
	return &DefaultResolver{opts: opts}
}

func (r *DefaultResolver) Resolve(ctx context.Context, projectRoot string) (*Toolchain, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pkg, err := readPackageJSON(projectRoot)
	if err != nil {
		return nil, err
	}

	major, err := selectMajor(r.opts.NodeVersion, pkg.Engines["node"])
	if err != nil {
		return nil, err
	}
	tc := &Toolchain{Root: projectRoot, NodeMajor: major, Scripts: pkg.Scripts}
	if tc.Scripts == nil {
		tc.Scripts = map[string]string{}
	}

	lockPM, lockfile := detectLockfile(projectRoot)
	tc.Lockfile = lockfile

	switch {
	case r.opts.PackageManager != "":
		pm, err := ParsePackageManager(r.opts.PackageManager)
		if err != nil {
			return nil, derrors.WrapError(err, derrors.CategoryToolchain, "unsupported package manager override").
				Fatal().
				UserAction().
				Build()
		}
		tc.PackageManager = pm
	case pkg.PackageManager != "":
		name, version, err := parsePackageManagerField(pkg.PackageManager)
		if err != nil {
			return nil, err
		}
		tc.PackageManager, tc.PMVersion = name, version
	case lockPM != "":
		tc.PackageManager = lockPM
	default:
		tc.PackageManager = NPM
	}
	if lockPM != "" && lockPM != tc.PackageManager {
		slog.Warn("Lockfile does not match package manager; install will not be frozen",
			logfields.PackageManager(string(tc.PackageManager)),
			slog.String("lockfile", lockfile))
		tc.Lockfile = ""
	}

	switch tc.PackageManager {
	case PNPM:
		if tc.PMVersion == "" && tc.Lockfile != "" {
			tc.PMVersion = pnpmMajorForLockfile(filepath.Join(projectRoot, tc.Lockfile))
		}
	case Yarn:
		tc.Berry = yarnIsBerry(projectRoot) || majorOf(tc.PMVersion) >= 2
	case NPM:
		if tc.Lockfile != "" {
			slog.Debug("npm lockfile", slog.Int("lockfile_version", npmLockfileVersion(filepath.Join(projectRoot, tc.Lockfile))))
		}
	}

	slog.Info("Resolved toolchain",
		logfields.Runtime(tc.Runtime()),
		logfields.PackageManager(string(tc.PackageManager)),
		slog.String("package_manager_version", tc.PMVersion),
		slog.String("lockfile", tc.Lockfile))
	return tc, nil
}

// parsePackageManagerField splits corepack's "pnpm@8.15.4+sha512..." form.
func parsePackageManagerField(field string) (PackageManager, string, error) {
	name, version, _ := strings.Cut(field, "@")
	version, _, _ = strings.Cut(version, "+")
	if pm, err := ParsePackageManager(name); err == nil {
		return pm, version, nil
	}
	return "", "", derrors.ToolchainError("unsupported packageManager in package.json").
		Fatal().
		UserAction().
		WithContext("packageManager", field).
		Build()
}

func majorOf(version string) int {
	head, _, _ := strings.Cut(version, ".")
	n := 0
	for _, r := range head {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}
