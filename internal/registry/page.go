// Package registry reads the page registry a static-site generator leaves behind after
// a successful build.
package registry

import (
	"encoding/json"
	"strings"
)

// Mode is the rendering mode of a page.
type Mode string

const (
	// ModeStatic pages are pre-rendered at build time. The generator never tags them;
	// anything that is not SSR or DSG decodes to this value.
	ModeStatic Mode = "STATIC"
	// ModeSSR pages are rendered on every request.
	ModeSSR Mode = "SSR"
	// ModeDSG pages are rendered on first request, then cached until regenerated.
	ModeDSG Mode = "DSG"
)

// ParseMode maps a registry tag onto a Mode. Empty or unknown tags are static.
func ParseMode(tag string) Mode {
	switch strings.ToUpper(strings.TrimSpace(tag)) {
	case string(ModeSSR):
		return ModeSSR
	case string(ModeDSG):
		return ModeDSG
	default:
		return ModeStatic
	}
}

// IsDynamic reports whether pages in this mode need a compute function.
func (m Mode) IsDynamic() bool {
	return m == ModeSSR || m == ModeDSG
}

// Page is one generated route.
type Page struct {
	Path string `json:"path"`
	Mode Mode   `json:"mode"`
}

// UnmarshalJSON decodes the generator's page record, normalizing the mode tag.
func (p *Page) UnmarshalJSON(data []byte) error {
	var raw struct {
		Path string `json:"path"`
		Mode string `json:"mode"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Path = raw.Path
	p.Mode = ParseMode(raw.Mode)
	return nil
}
