package toolchain

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	derrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
)

// selectMajor picks the Node.js major. An explicit override must be supported; an
// engines.node constraint picks the newest supported major that satisfies it.
func selectMajor(override, enginesNode string) (int, error) {
	if override != "" {
		major, err := strconv.Atoi(strings.TrimPrefix(strings.SplitN(override, ".", 2)[0], "v"))
		if err != nil || !slices.Contains(SupportedMajors, major) {
			return 0, derrors.ToolchainError("unsupported Node.js version").
				Fatal().
				UserAction().
				WithContext("version", override).
				WithContext("supported", fmt.Sprint(SupportedMajors)).
				Build()
		}
		return major, nil
	}
	if strings.TrimSpace(enginesNode) == "" {
		return DefaultMajor, nil
	}

	constraint, err := semver.NewConstraint(enginesNode)
	if err != nil {
		slog.Warn("Ignoring unparseable engines.node constraint",
			slog.String("constraint", enginesNode), logfields.Error(err))
		return DefaultMajor, nil
	}
	for i := len(SupportedMajors) - 1; i >= 0; i-- {
		if satisfiesMajor(constraint, SupportedMajors[i]) {
			return SupportedMajors[i], nil
		}
	}
	slog.Warn("No supported Node.js version satisfies engines.node, using default",
		slog.String("constraint", enginesNode),
		logfields.Runtime(RuntimeFor(DefaultMajor)))
	return DefaultMajor, nil
}

// satisfiesMajor probes releases of a major line; constraints such as ~18.17.0 only
// admit a narrow minor range.
func satisfiesMajor(c *semver.Constraints, major int) bool {
	for minor := uint64(0); minor <= 40; minor++ {
		for _, patch := range []uint64{0, 99} {
			if c.Check(semver.New(uint64(major), minor, patch, "", "")) {
				return true
			}
		}
	}
	return false
}
