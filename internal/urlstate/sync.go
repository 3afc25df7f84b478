package urlstate

import (
	"fmt"
	"log"
	"net/url"

	"github.com/toolvault/toolvault/internal/payload"
)

// Setter receives a resolved parameter value. Setters are the synchronizer's
// only side-effect boundary; it never invokes a tool's computation itself.
type Setter func(payload.Value)

// Result is the outcome of one synchronization pass.
type Result struct {
	// AutoRun is true when the primary input resolved to a present,
	// non-blank value, signalling the tool to run its computation once.
	autoRun bool

	// Values holds every resolved parameter by name.
	Values map[string]payload.Value
}

// ShouldAutoRun reports the auto-run signal.
func (r *Result) ShouldAutoRun() bool {
	return r.autoRun
}

// Reset consumes the auto-run signal so a qualifying navigation triggers at
// most one computation.
func (r *Result) Reset() {
	r.autoRun = false
}

// Synchronizer applies declared parameters from a query string to a tool's
// state setters.
type Synchronizer struct {
	decls   []ParamDecl
	setters map[string]Setter
}

// NewSynchronizer builds a synchronizer from declarations and setters.
// Declarations must be well-formed; setters for undeclared names are
// rejected, setters may be omitted for declared names.
func NewSynchronizer(decls []ParamDecl, setters map[string]Setter) (*Synchronizer, error) {
	if len(decls) == 0 {
		return nil, fmt.Errorf("no parameters declared")
	}

	byName := make(map[string]bool, len(decls))
	for _, d := range decls {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if byName[d.Name] {
			return nil, fmt.Errorf("duplicate parameter declaration %q", d.Name)
		}
		byName[d.Name] = true
	}

	for name := range setters {
		if !byName[name] {
			return nil, fmt.Errorf("setter for undeclared parameter %q", name)
		}
	}

	return &Synchronizer{decls: decls, setters: setters}, nil
}

// Apply resolves every declared parameter against query, invokes the
// matching setters, and derives the auto-run signal from the primary input.
//
// Absent parameters resolve to their defaults. Present-but-malformed values
// fall back to the default with a warning.
func (s *Synchronizer) Apply(query url.Values) *Result {
	result := &Result{Values: make(map[string]payload.Value, len(s.decls))}

	primary := primaryIndex(s.decls)
	primaryPresent := false

	for i, d := range s.decls {
		raw, present := firstValue(query, d.Name)

		resolved := d.Default
		if present {
			parsed, ok := d.parse(raw)
			if ok {
				resolved = parsed
			} else {
				log.Printf("Warning: query parameter %s=%q is not a valid %s, using default", d.Name, raw, d.Type)
			}
		}

		result.Values[d.Name] = resolved
		if i == primary {
			primaryPresent = present && !resolved.IsBlank()
		}

		if setter, ok := s.setters[d.Name]; ok {
			setter(resolved)
		}
	}

	result.autoRun = primaryPresent
	return result
}

// Encode renders typed values into query-string form per the declarations,
// the round-trip inverse of Apply. Unknown names are ignored.
func (s *Synchronizer) Encode(values map[string]payload.Value) url.Values {
	out := url.Values{}
	for _, d := range s.decls {
		v, ok := values[d.Name]
		if !ok {
			continue
		}
		out.Set(d.Name, d.encode(v))
	}
	return out
}

// firstValue reads the first occurrence of a query parameter, reporting
// whether it was present at all.
func firstValue(query url.Values, name string) (string, bool) {
	vs, ok := query[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}
