package registry

import (
	"testing"

	"github.com/toolvault/toolvault/internal/config"
	"github.com/toolvault/toolvault/internal/payload"
	"github.com/toolvault/toolvault/internal/urlstate"
)

// TestDefaultRegistry verifies the built-in tool set is well-formed.
func TestDefaultRegistry(t *testing.T) {
	r := Default()

	if len(r.Tools()) == 0 {
		t.Fatal("built-in registry is empty")
	}

	cc, ok := r.ByRoute("/t/case-converter")
	if !ok {
		t.Fatal("case converter not registered")
	}
	if cc.Directive != "case-converter" {
		t.Errorf("directive = %q", cc.Directive)
	}
	if cc.DefaultLogging != config.PreferenceOn {
		t.Errorf("default logging = %v, want on", cc.DefaultLogging)
	}

	wallet, ok := r.ByDirective("wallet-generator")
	if !ok {
		t.Fatal("wallet generator not found by directive")
	}
	if wallet.DefaultLogging != config.PreferenceRestrictive {
		t.Errorf("wallet default = %v, want restrictive", wallet.DefaultLogging)
	}
}

// TestDirectiveFallback verifies unregistered routes derive a directive.
func TestDirectiveFallback(t *testing.T) {
	r := Default()
	if got := r.Directive("/t/unknown-tool"); got != "unknown-tool" {
		t.Errorf("Directive = %q", got)
	}
	if got := r.Directive("/t/unknown-tool/"); got != "unknown-tool" {
		t.Errorf("Directive with trailing slash = %q", got)
	}
}

// TestNewValidation verifies registry construction rejects bad definitions.
func TestNewValidation(t *testing.T) {
	param := urlstate.ParamDecl{Name: "input", Type: urlstate.TypeString, Default: payload.String("")}

	tests := []struct {
		name  string
		tools []Tool
	}{
		{"missing route", []Tool{{Name: "X"}}},
		{"missing name", []Tool{{Route: "/t/x"}}},
		{"bad preference", []Tool{{Name: "X", Route: "/t/x", DefaultLogging: "loud"}}},
		{"bad param", []Tool{{Name: "X", Route: "/t/x", Params: []urlstate.ParamDecl{{Name: ""}}}}},
		{
			"duplicate route",
			[]Tool{
				{Name: "X", Route: "/t/x", Params: []urlstate.ParamDecl{param}},
				{Name: "Y", Route: "/t/x"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.tools); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// TestParamsDriveSynchronizer verifies registry declarations plug into the
// URL state synchronizer as-is.
func TestParamsDriveSynchronizer(t *testing.T) {
	r := Default()
	for _, tool := range r.Tools() {
		if len(tool.Params) == 0 {
			continue
		}
		if _, err := urlstate.NewSynchronizer(tool.Params, nil); err != nil {
			t.Errorf("tool %s params rejected: %v", tool.Route, err)
		}
	}
}
