// Package build provides the canonical deployment build pipeline for sitedeploy.
//
// The pipeline resolves the project toolchain, installs dependencies, runs the site
// generator, reads the page registry it leaves behind and assembles the deployment
// manifest. All execution paths (the build and watch commands, tests) route through
// Service.
//
// Every run is recorded in build history and announced through the notifier, whether
// it succeeds or fails.
package build
