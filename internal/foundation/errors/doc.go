// Package errors provides the classified error primitives used across sitedeploy.
//
// Every failure that can abort a build carries a category (which stage failed), a
// severity, and a retry hint. The CLI adapter turns the category into an exit code.
//
// Example usage:
//
//	err := errors.WrapError(runErr, errors.CategoryInstall, "install command failed").
//		Fatal().
//		WithContext("command", cmdline).
//		Build()
package errors
