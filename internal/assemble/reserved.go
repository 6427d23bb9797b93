package assemble

import (
	"git.home.luguber.info/inful/sitedeploy/internal/functions"
	"git.home.luguber.info/inful/sitedeploy/internal/manifest"
	"git.home.luguber.info/inful/sitedeploy/internal/routes"
)

// PageDataKey is the reserved output key of the page-data function.
const PageDataKey = "page-data"

// BuildReserved returns the page-data function targeted by the reserved route rule.
func BuildReserved(runtime string) manifest.Output {
	return manifest.Output{
		PageDataKey: &manifest.Function{
			Kind:    manifest.KindPageData,
			Handler: functions.Handler,
			Runtime: runtime,
			Source:  functions.Source(functions.TemplatePageData),
			Routes: []manifest.FunctionRoute{
				{Path: routes.PageDataDestination, Caching: manifest.CachingNoStore},
			},
		},
	}
}
