// Package toolchain detects the Node.js runtime and package manager of a site project
// and derives the install and build commands to run.
package toolchain

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/sitedeploy/internal/foundation"
)

// PackageManager names a supported JavaScript package manager.
type PackageManager string

const (
	NPM  PackageManager = "npm"
	Yarn PackageManager = "yarn"
	PNPM PackageManager = "pnpm"
	Bun  PackageManager = "bun"
)

var packageManagers = foundation.NewNormalizer(map[string]PackageManager{
	"npm":  NPM,
	"yarn": Yarn,
	"pnpm": PNPM,
	"bun":  Bun,
}, "")

// ParsePackageManager accepts a package manager name in any case.
func ParsePackageManager(raw string) (PackageManager, error) {
	return packageManagers.NormalizeWithError(raw)
}

// SupportedMajors lists the Node.js majors the platform can run, oldest first.
var SupportedMajors = []int{18, 20, 22}

// DefaultMajor is used when the project expresses no preference.
const DefaultMajor = 22

// Toolchain is the resolved build environment of a project.
type Toolchain struct {
	Root           string
	NodeMajor      int
	PackageManager PackageManager
	// PMVersion is the package manager version pinned by the packageManager field, or the
	// major implied by the lockfile. Empty when unknown.
	PMVersion string
	Lockfile  string
	// Berry reports a Yarn 2+ project.
	Berry   bool
	Scripts map[string]string
}

// Runtime is the platform runtime identifier, e.g. nodejs20.x.
func (t *Toolchain) Runtime() string {
	return RuntimeFor(t.NodeMajor)
}

// RuntimeFor formats a Node.js major as a platform runtime identifier.
func RuntimeFor(major int) string {
	return fmt.Sprintf("nodejs%d.x", major)
}

// Resolver inspects a project directory and returns its toolchain.
type Resolver interface {
	Resolve(ctx context.Context, projectRoot string) (*Toolchain, error)
}
