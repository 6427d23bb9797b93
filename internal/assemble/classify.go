package assemble

import "git.home.luguber.info/inful/sitedeploy/internal/registry"

// Classification is the registry split by rendering mode. Each bucket keeps registry order.
type Classification struct {
	SSRRoutes []string
	DSGRoutes []string
	// Static counts pages left to the static asset path.
	Static int
}

// Classify partitions pages by mode. A page lands in at most one bucket.
func Classify(pages []registry.Page) Classification {
	c := Classification{SSRRoutes: []string{}, DSGRoutes: []string{}}
	for _, p := range pages {
		switch p.Mode {
		case registry.ModeSSR:
			c.SSRRoutes = append(c.SSRRoutes, p.Path)
		case registry.ModeDSG:
			c.DSGRoutes = append(c.DSGRoutes, p.Path)
		default:
			c.Static++
		}
	}
	return c
}
