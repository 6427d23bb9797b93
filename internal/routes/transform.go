package routes

import (
	"net/http"
	"regexp"
	"strings"

	derrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
)

// Transformer compiles ordered rules into routes. Implementations must return exactly one
// route per rule, in input order.
type Transformer interface {
	Transform(rules []Rule, trailingSlash *bool) ([]Route, error)
}

// PatternTransformer compiles path patterns with named parameters into anchored regular
// expressions.
//
// Supported segment forms:
//
//	literal   exact match
//	:name     one segment
//	:name?    optional segment
//	:name+    one or more segments
//	:name*    zero or more segments
//	(regex)   raw expression for the whole segment
//
// Trailing slash policy: nil accepts both forms, true requires the slash, false forbids it.
type PatternTransformer struct{}

// NewPatternTransformer returns the default transformer.
func NewPatternTransformer() *PatternTransformer {
	return &PatternTransformer{}
}

var (
	paramNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	destParamRe = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)
)

func (p *PatternTransformer) Transform(rules []Rule, trailingSlash *bool) ([]Route, error) {
	out := make([]Route, 0, len(rules))
	for i, r := range rules {
		route, err := compileRule(r, trailingSlash)
		if err != nil {
			return nil, derrors.WrapError(err, derrors.CategoryConfig, "invalid route rule").
				Fatal().
				WithContext("index", i).
				WithContext("kind", string(r.Kind)).
				WithContext("source", r.Source).
				Build()
		}
		out = append(out, route)
	}
	return out, nil
}

func compileRule(r Rule, trailingSlash *bool) (Route, error) {
	if r.Destination == "" {
		return Route{}, derrors.ValidationError("destination is required").Build()
	}
	src, params, err := compileSource(r.Source, trailingSlash)
	if err != nil {
		return Route{}, err
	}
	dest := rewriteDestination(r.Destination, params)

	switch r.Kind {
	case KindRewrite:
		return Route{Kind: KindRewrite, Src: src, Dest: dest}, nil
	case KindRedirect:
		status, err := redirectStatus(r)
		if err != nil {
			return Route{}, err
		}
		return Route{
			Kind:    KindRedirect,
			Src:     src,
			Status:  status,
			Headers: map[string]string{"Location": dest},
		}, nil
	default:
		return Route{}, derrors.ValidationError("unknown rule kind").WithContext("kind", string(r.Kind)).Build()
	}
}

func redirectStatus(r Rule) (int, error) {
	switch r.StatusCode {
	case 0:
		if r.Permanent {
			return http.StatusPermanentRedirect, nil
		}
		return http.StatusTemporaryRedirect, nil
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return r.StatusCode, nil
	default:
		return 0, derrors.ValidationError("unsupported redirect status code").
			WithContext("status", r.StatusCode).
			Build()
	}
}

func compileSource(source string, trailingSlash *bool) (string, map[string]bool, error) {
	if !strings.HasPrefix(source, "/") {
		return "", nil, derrors.ValidationError("source must start with /").WithContext("source", source).Build()
	}
	params := map[string]bool{}
	if source == "/" {
		return "^/$", params, nil
	}

	segments := strings.Split(strings.TrimSuffix(source[1:], "/"), "/")
	var b strings.Builder
	b.WriteString("^")
	for _, seg := range segments {
		if seg == "" {
			return "", nil, derrors.ValidationError("source contains an empty segment").WithContext("source", source).Build()
		}
		frag, name, err := compileSegment(seg)
		if err != nil {
			return "", nil, err
		}
		if name != "" {
			if params[name] {
				return "", nil, derrors.ValidationError("duplicate parameter").WithContext("param", name).Build()
			}
			params[name] = true
		}
		b.WriteString(frag)
	}

	// File-like paths never carry a trailing slash.
	last := segments[len(segments)-1]
	fileLike := !strings.HasPrefix(last, ":") && !strings.HasPrefix(last, "(") && strings.Contains(last, ".")
	switch {
	case fileLike:
	case trailingSlash == nil:
		b.WriteString("/?")
	case *trailingSlash:
		b.WriteString("/")
	}
	b.WriteString("$")

	expr := b.String()
	if _, err := regexp.Compile(expr); err != nil {
		return "", nil, derrors.WrapError(err, derrors.CategoryValidation, "source does not compile").
			WithContext("source", source).
			Build()
	}
	return expr, params, nil
}

// compileSegment returns the expression for one path segment including its leading slash.
func compileSegment(seg string) (string, string, error) {
	if strings.HasPrefix(seg, "(") && strings.HasSuffix(seg, ")") {
		return "/" + seg, "", nil
	}
	if !strings.HasPrefix(seg, ":") {
		return "/" + regexp.QuoteMeta(seg), "", nil
	}

	name, modifier := seg[1:], byte(0)
	if n := len(name); n > 0 && strings.ContainsRune("?+*", rune(name[n-1])) {
		name, modifier = name[:n-1], name[n-1]
	}
	if !paramNameRe.MatchString(name) {
		return "", "", derrors.ValidationError("invalid parameter name").WithContext("segment", seg).Build()
	}

	switch modifier {
	case '?':
		return "(?:/(?P<" + name + ">[^/]+))?", name, nil
	case '+':
		return "/(?P<" + name + ">.+)", name, nil
	case '*':
		return "(?:/(?P<" + name + ">.*))?", name, nil
	default:
		return "/(?P<" + name + ">[^/]+)", name, nil
	}
}

// rewriteDestination replaces :name references to captured parameters with $name.
func rewriteDestination(dest string, params map[string]bool) string {
	if len(params) == 0 {
		return dest
	}
	return destParamRe.ReplaceAllStringFunc(dest, func(m string) string {
		if name := m[1:]; params[name] {
			return "$" + name
		}
		return m
	})
}
