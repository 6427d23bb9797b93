package assemble

import (
	"git.home.luguber.info/inful/sitedeploy/internal/functions"
	"git.home.luguber.info/inful/sitedeploy/internal/manifest"
)

// DynamicKey is the output key of the shared SSR/DSG function.
const DynamicKey = "__dynamic"

// BuildDynamic returns the single function serving every SSR and DSG path. SSR and DSG
// share handler code and differ only in the caching policy the platform applies.
// The artifact is returned even with no dynamic pages so the merge is unconditional.
func BuildDynamic(c Classification, runtime string) manifest.Output {
	served := make([]manifest.FunctionRoute, 0, len(c.SSRRoutes)+len(c.DSGRoutes))
	for _, p := range c.SSRRoutes {
		served = append(served, manifest.FunctionRoute{Path: p, Caching: manifest.CachingNoStore})
	}
	for _, p := range c.DSGRoutes {
		served = append(served, manifest.FunctionRoute{Path: p, Caching: manifest.CachingStaleWhileRevalidate})
	}
	return manifest.Output{
		DynamicKey: &manifest.Function{
			Kind:    manifest.KindDynamic,
			Handler: functions.Handler,
			Runtime: runtime,
			Source:  functions.Source(functions.TemplateDynamic),
			Routes:  served,
		},
	}
}
