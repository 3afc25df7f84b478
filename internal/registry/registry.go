/*
Package registry declares the tools hosted by the application shell.

The registry is metadata only: each tool's route, display name, metadata
directive, default logging preference, and URL parameter declarations. The
tool computations themselves live in the front-end; this service only
records their usage and serves their metadata.
*/
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/toolvault/toolvault/internal/config"
	"github.com/toolvault/toolvault/internal/payload"
	"github.com/toolvault/toolvault/internal/urlstate"
)

// Tool describes one hosted tool.
type Tool struct {
	// Name is the display name.
	Name string `json:"name"`

	// Route is the logical tool key, e.g. "/t/case-converter".
	Route string `json:"route"`

	// Directive is the tool-metadata key served at
	// /api/tool-metadata/{directive}.json.
	Directive string `json:"directive"`

	// DefaultLogging is the tool's declared default preference.
	DefaultLogging config.Preference `json:"defaultLogging"`

	// Params are the tool's externally addressable state fields.
	Params []urlstate.ParamDecl `json:"params"`
}

// Registry holds the known tools, looked up by route or directive.
type Registry struct {
	byRoute     map[string]*Tool
	byDirective map[string]*Tool
	order       []string
}

// New builds a registry from tool definitions.
func New(tools []Tool) (*Registry, error) {
	r := &Registry{
		byRoute:     make(map[string]*Tool, len(tools)),
		byDirective: make(map[string]*Tool, len(tools)),
	}

	for i := range tools {
		t := &tools[i]
		if t.Route == "" || t.Name == "" {
			return nil, fmt.Errorf("tool %d: missing route or name", i)
		}
		if t.Directive == "" {
			t.Directive = strings.TrimPrefix(strings.TrimSuffix(t.Route, "/"), "/t/")
		}
		if t.DefaultLogging == "" {
			t.DefaultLogging = config.GlobalDefault
		}
		if _, err := config.ParsePreference(string(t.DefaultLogging)); err != nil {
			return nil, fmt.Errorf("tool %s: %w", t.Route, err)
		}
		for _, p := range t.Params {
			if err := p.Validate(); err != nil {
				return nil, fmt.Errorf("tool %s: %w", t.Route, err)
			}
		}
		if _, dup := r.byRoute[t.Route]; dup {
			return nil, fmt.Errorf("duplicate tool route %s", t.Route)
		}
		if _, dup := r.byDirective[t.Directive]; dup {
			return nil, fmt.Errorf("duplicate tool directive %s", t.Directive)
		}
		r.byRoute[t.Route] = t
		r.byDirective[t.Directive] = t
		r.order = append(r.order, t.Route)
	}

	return r, nil
}

// ByRoute looks a tool up by route.
func (r *Registry) ByRoute(route string) (*Tool, bool) {
	t, ok := r.byRoute[route]
	return t, ok
}

// ByDirective looks a tool up by metadata directive.
func (r *Registry) ByDirective(directive string) (*Tool, bool) {
	t, ok := r.byDirective[directive]
	return t, ok
}

// Directive returns the metadata directive for a route, falling back to the
// route's last path segment for unregistered routes.
func (r *Registry) Directive(route string) string {
	if t, ok := r.byRoute[route]; ok {
		return t.Directive
	}
	trimmed := strings.TrimSuffix(route, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// Tools returns the registered tools in declaration order.
func (r *Registry) Tools() []*Tool {
	out := make([]*Tool, 0, len(r.order))
	for _, route := range r.order {
		out = append(out, r.byRoute[route])
	}
	return out
}

// Routes returns the registered routes sorted.
func (r *Registry) Routes() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	sort.Strings(out)
	return out
}

// Default returns the built-in tool set of the application shell.
func Default() *Registry {
	str := func(s string) payload.Value { return payload.String(s) }

	tools := []Tool{
		{
			Name:  "Case Converter",
			Route: "/t/case-converter",
			Params: []urlstate.ParamDecl{
				{Name: "input", Type: urlstate.TypeString, Default: str("")},
				{Name: "mode", Type: urlstate.TypeEnum, Default: str("upper"),
					Enum: []string{"upper", "lower", "title", "camel", "snake", "kebab"}},
			},
		},
		{
			Name:  "JSON Formatter",
			Route: "/t/json-formatter",
			Params: []urlstate.ParamDecl{
				{Name: "input", Type: urlstate.TypeString, Default: str("")},
				{Name: "indent", Type: urlstate.TypeNumber, Default: payload.Number(2)},
				{Name: "sortKeys", Type: urlstate.TypeBoolean, Default: payload.Bool(false)},
			},
		},
		{
			Name:  "Base64",
			Route: "/t/base64",
			Params: []urlstate.ParamDecl{
				{Name: "input", Type: urlstate.TypeString, Default: str("")},
				{Name: "direction", Type: urlstate.TypeEnum, Default: str("encode"),
					Enum: []string{"encode", "decode"}},
				{Name: "urlSafe", Type: urlstate.TypeBoolean, Default: payload.Bool(false)},
			},
		},
		{
			Name:  "Text Reverse",
			Route: "/t/text-reverse",
			Params: []urlstate.ParamDecl{
				{Name: "input", Type: urlstate.TypeString, Default: str("")},
			},
		},
		{
			Name:           "Wallet Generator",
			Route:          "/t/wallet-generator",
			DefaultLogging: config.PreferenceRestrictive,
			Params: []urlstate.ParamDecl{
				{Name: "chain", Type: urlstate.TypeEnum, Default: str("ethereum"),
					Enum: []string{"ethereum", "bitcoin", "solana"}, Primary: true},
				{Name: "count", Type: urlstate.TypeNumber, Default: payload.Number(1)},
			},
		},
		{
			Name:  "Zip Explorer",
			Route: "/t/zip-explorer",
			Params: []urlstate.ParamDecl{
				{Name: "file", Type: urlstate.TypeString, Default: str("")},
				{Name: "filter", Type: urlstate.TypeString, Default: str("")},
			},
		},
		{
			Name:  "Emoji Search",
			Route: "/t/emoji-search",
			Params: []urlstate.ParamDecl{
				{Name: "q", Type: urlstate.TypeString, Default: str("")},
				{Name: "limit", Type: urlstate.TypeNumber, Default: payload.Number(20)},
			},
		},
		{
			Name:           "Image Library",
			Route:          "/t/image-library",
			DefaultLogging: config.PreferenceOff,
			Params: []urlstate.ParamDecl{
				{Name: "album", Type: urlstate.TypeString, Default: str("")},
			},
		},
	}

	r, err := New(tools)
	if err != nil {
		// The built-in set is static; a failure here is a programming error.
		panic(fmt.Sprintf("invalid built-in tool registry: %v", err))
	}
	return r
}
