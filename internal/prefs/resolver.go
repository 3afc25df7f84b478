/*
Package prefs resolves the effective logging preference for tool routes.

Resolution priority: explicit override (settings) → fetched per-tool default
(cached for the session) → global default ("on"). Per-tool defaults come from
the tool-metadata endpoint:

  GET {base}/api/tool-metadata/{directive}.json
  → {"defaultLogging": "on" | "restrictive" | "off", ...}

A failed or malformed fetch downgrades silently to the global default, and
the downgrade is cached so the same route never retries within a session.
*/
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/toolvault/toolvault/internal/config"
)

// fetchTimeout bounds a single default-metadata request.
const fetchTimeout = 10 * time.Second

// DirectiveFunc maps a tool route to its metadata directive.
type DirectiveFunc func(route string) string

// Resolver resolves effective preferences against settings and the
// tool-metadata endpoint.
type Resolver struct {
	settings  *config.Store
	baseURL   string
	client    *http.Client
	directive DirectiveFunc

	mu       sync.RWMutex
	defaults map[string]config.Preference

	// group coalesces concurrent default fetches for the same route.
	group singleflight.Group
}

// NewResolver creates a resolver. baseURL is the tool-metadata endpoint root
// (no trailing slash). directive may be nil, in which case the last path
// segment of the route is used.
func NewResolver(settings *config.Store, baseURL string, directive DirectiveFunc) *Resolver {
	if directive == nil {
		directive = func(route string) string {
			route = strings.TrimSuffix(route, "/")
			if i := strings.LastIndex(route, "/"); i >= 0 {
				return route[i+1:]
			}
			return route
		}
	}
	return &Resolver{
		settings:  settings,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		client:    &http.Client{Timeout: fetchTimeout},
		directive: directive,
		defaults:  make(map[string]config.Preference),
	}
}

// Effective returns the logging preference applied to a call for route.
//
// If neither an override nor a cached default exists, a background fetch is
// kicked off and the global default is returned for this call only; the
// fetched value populates the cache for subsequent calls.
func (r *Resolver) Effective(ctx context.Context, route string) config.Preference {
	if pref, ok := r.settings.Override(route); ok {
		return pref
	}

	r.mu.RLock()
	def, ok := r.defaults[route]
	r.mu.RUnlock()
	if ok {
		return def
	}

	// Populate the cache without blocking this call. The singleflight group
	// collapses concurrent kicks for the same route into one request.
	go func() {
		fetchCtx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		r.DefaultFor(fetchCtx, route)
	}()

	return config.GlobalDefault
}

// DefaultFor returns the resolved default preference for route, fetching and
// caching it if it is not cached yet. Fetch failure caches the global
// default so the route is not retried for the rest of the session.
func (r *Resolver) DefaultFor(ctx context.Context, route string) config.Preference {
	r.mu.RLock()
	def, ok := r.defaults[route]
	r.mu.RUnlock()
	if ok {
		return def
	}

	v, _, _ := r.group.Do(route, func() (interface{}, error) {
		pref, err := r.fetchDefault(ctx, route)
		if err != nil {
			log.Printf("Warning: default preference fetch for %s failed, using global default: %v", route, err)
			pref = config.GlobalDefault
		}

		r.mu.Lock()
		r.defaults[route] = pref
		r.mu.Unlock()

		return pref, nil
	})

	return v.(config.Preference)
}

// Set stores value as route's override, or clears the override when value
// equals the route's resolved default, keeping the override map minimal.
func (r *Resolver) Set(ctx context.Context, route string, value config.Preference) error {
	if _, err := config.ParsePreference(string(value)); err != nil {
		return err
	}

	def := r.DefaultFor(ctx, route)
	if value == def {
		return r.settings.ClearOverride(route)
	}
	return r.settings.SetOverride(route, value)
}

// CachedDefault returns the cached default for route without fetching. Routes
// with no cached value report the global default.
func (r *Resolver) CachedDefault(route string) config.Preference {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if def, ok := r.defaults[route]; ok {
		return def
	}
	return config.GlobalDefault
}

// SeedDefault pre-populates the default cache for a route. Used when the
// registry already knows a tool's declared default and no fetch is needed.
func (r *Resolver) SeedDefault(route string, pref config.Preference) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults[route] = pref
}

// toolMetadata is the shape of the tool-metadata endpoint response. Fields
// other than defaultLogging are ignored.
type toolMetadata struct {
	DefaultLogging string `json:"defaultLogging"`
}

func (r *Resolver) fetchDefault(ctx context.Context, route string) (config.Preference, error) {
	if r.baseURL == "" {
		return "", fmt.Errorf("no metadata endpoint configured")
	}

	url := fmt.Sprintf("%s/api/tool-metadata/%s.json", r.baseURL, r.directive(route))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch tool metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tool metadata endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var meta toolMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return "", fmt.Errorf("failed to parse tool metadata: %w", err)
	}
	if meta.DefaultLogging == "" {
		return "", fmt.Errorf("tool metadata missing defaultLogging field")
	}

	pref, err := config.ParsePreference(meta.DefaultLogging)
	if err != nil {
		return "", fmt.Errorf("tool metadata invalid: %w", err)
	}

	return pref, nil
}
