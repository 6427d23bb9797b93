// Package routes composes the ordered rewrite/redirect table of a deployment manifest.
package routes

// Kind distinguishes rewrites (change the serving artifact, keep the visible path)
// from redirects (tell the client to request another path).
type Kind string

const (
	KindRewrite  Kind = "rewrite"
	KindRedirect Kind = "redirect"
)

// Rule is one user- or system-supplied routing instruction before compilation.
type Rule struct {
	Kind        Kind   `json:"-"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	// Permanent and StatusCode only apply to redirects.
	Permanent  bool `json:"permanent,omitempty"`
	StatusCode int  `json:"statusCode,omitempty"`
}

// Config is the optional routing section a project supplies. Absent fields are empty.
type Config struct {
	Redirects     []Rule `json:"redirects,omitempty"`
	Rewrites      []Rule `json:"rewrites,omitempty"`
	TrailingSlash *bool  `json:"trailingSlash,omitempty"`
}

// Route is a compiled rule as consumed by the hosting platform's routing engine.
// Routes are evaluated top to bottom, first match wins.
type Route struct {
	Kind    Kind              `json:"kind"`
	Src     string            `json:"src"`
	Dest    string            `json:"dest,omitempty"`
	Status  int               `json:"status,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}
