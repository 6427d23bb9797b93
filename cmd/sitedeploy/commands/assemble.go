package commands

import (
	"os"

	"git.home.luguber.info/inful/sitedeploy/internal/build"
)

// AssembleCmd implements the 'assemble' command: the build pipeline without install
// and generator steps, for use after an external build.
type AssembleCmd struct {
	DryRun bool `name:"dry-run" help:"Assemble without writing the manifest"`
}

func (a *AssembleCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	return RunBuild(cfg, build.Options{SkipInstall: true, SkipBuild: true, DryRun: a.DryRun}, root.Verbose, os.Stdout)
}
