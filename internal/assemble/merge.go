package assemble

import (
	"log/slog"

	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
	"git.home.luguber.info/inful/sitedeploy/internal/manifest"
	"git.home.luguber.info/inful/sitedeploy/internal/routes"
)

// Merge combines the artifact sets in fixed priority order: static, dynamic, api, reserved.
// A later set overwrites an earlier one on key collision, so the reserved page-data
// function can never be shadowed by a stray static file or API handler.
func Merge(table []routes.Route, static, dynamic, api, reserved manifest.Output) *manifest.OutputManifest {
	sets := []struct {
		name string
		out  manifest.Output
	}{
		{"static", static},
		{"dynamic", dynamic},
		{"api", api},
		{"reserved", reserved},
	}

	size := len(static) + len(dynamic) + len(api) + len(reserved)
	output := make(manifest.Output, size)
	owner := make(map[string]string, size)
	for _, set := range sets {
		for key, artifact := range set.out {
			if prev, ok := owner[key]; ok {
				slog.Debug("Artifact key overridden during merge",
					logfields.Key(key),
					slog.String("previous", prev),
					slog.String("winner", set.name))
			}
			output[key] = artifact
			owner[key] = set.name
		}
	}

	if table == nil {
		table = []routes.Route{}
	}
	return &manifest.OutputManifest{Output: output, Routes: table}
}
