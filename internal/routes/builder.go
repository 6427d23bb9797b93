package routes

import (
	"fmt"

	derrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
)

const (
	// PageDataSource matches page-data payload requests for any page path.
	PageDataSource = "/page-data/:path*/page-data.json"
	// PageDataDestination is the internal path the reserved page-data function serves.
	PageDataDestination = "/_page-data"
)

// ReservedRule returns the internal page-data rewrite. It always heads the table so a
// regeneration request reaches the page-data function whatever the user configured.
func ReservedRule() Rule {
	return Rule{Kind: KindRewrite, Source: PageDataSource, Destination: PageDataDestination}
}

// Compose orders rules: reserved rewrite, user rewrites, then user redirects.
// Shape is not validated here.
func Compose(cfg *Config) []Rule {
	rules := []Rule{ReservedRule()}
	if cfg == nil {
		return rules
	}
	for _, r := range cfg.Rewrites {
		r.Kind = KindRewrite
		rules = append(rules, r)
	}
	for _, r := range cfg.Redirects {
		r.Kind = KindRedirect
		rules = append(rules, r)
	}
	return rules
}

// Build composes the rule list and compiles it through t.
func Build(cfg *Config, t Transformer) ([]Route, error) {
	if t == nil {
		t = NewPatternTransformer()
	}
	var trailingSlash *bool
	if cfg != nil {
		trailingSlash = cfg.TrailingSlash
	}
	rules := Compose(cfg)
	compiled, err := t.Transform(rules, trailingSlash)
	if err != nil {
		return nil, err
	}
	if len(compiled) != len(rules) {
		return nil, derrors.InternalError("route transform changed rule count").
			WithContext("rules", len(rules)).
			WithContext("routes", len(compiled)).
			Build()
	}
	return compiled, nil
}

// String renders a rule for logs.
func (r Rule) String() string {
	return fmt.Sprintf("%s %s -> %s", r.Kind, r.Source, r.Destination)
}
