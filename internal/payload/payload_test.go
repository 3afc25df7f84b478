package payload

import (
	"encoding/json"
	"testing"
)

// TestFromJSONRoundTrip verifies JSON parsing and canonical re-encoding.
func TestFromJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"string", `"hello"`, `"hello"`},
		{"number", `42`, `42`},
		{"float", `3.5`, `3.5`},
		{"bool", `true`, `true`},
		{"null", `null`, `null`},
		{"list", `[1,"two",false]`, `[1,"two",false]`},
		{"map sorts keys", `{"b":2,"a":1}`, `{"a":1,"b":2}`},
		{"nested", `{"z":{"y":[1,2]},"a":"x"}`, `{"a":"x","z":{"y":[1,2]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := FromJSON([]byte(tt.input))
			if err != nil {
				t.Fatalf("FromJSON failed: %v", err)
			}
			data, err := json.Marshal(v)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("got %s, want %s", data, tt.want)
			}
		})
	}
}

// TestFromJSONInvalid verifies malformed documents are rejected.
func TestFromJSONInvalid(t *testing.T) {
	if _, err := FromJSON([]byte(`{"a":`)); err == nil {
		t.Error("expected error for truncated JSON")
	}
	if _, err := FromJSON([]byte(``)); err == nil {
		t.Error("expected error for empty input")
	}
}

// TestEqualKeyOrderIndependent asserts {a:1,b:2} equals {b:2,a:1} as a
// history-dedup key.
func TestEqualKeyOrderIndependent(t *testing.T) {
	a, err := FromJSON([]byte(`{"a":1,"b":2}`))
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	b, err := FromJSON([]byte(`{"b":2,"a":1}`))
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}

	if !Equal(a, b) {
		t.Error("maps with different key order should be equal")
	}
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("maps with different key order should share a fingerprint")
	}
}

// TestEqual verifies structural equality rules across variants.
func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"equal strings", String("x"), String("x"), true},
		{"different strings", String("x"), String("y"), false},
		{"int vs float spelling", Number(1), Number(1.0), true},
		{"string vs number", String("1"), Number(1), false},
		{"nulls", Null(), Null(), true},
		{"null vs empty string", Null(), String(""), false},
		{"equal lists", List(Number(1), Number(2)), List(Number(1), Number(2)), true},
		{"list order matters", List(Number(1), Number(2)), List(Number(2), Number(1)), false},
		{"list length", List(Number(1)), List(Number(1), Number(2)), false},
		{
			"nested maps",
			Map(map[string]Value{"k": List(String("a"))}),
			Map(map[string]Value{"k": List(String("a"))}),
			true,
		},
		{
			"map missing key",
			Map(map[string]Value{"a": Number(1)}),
			Map(map[string]Value{"b": Number(1)}),
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestFingerprintDistinct verifies different payloads get different keys.
func TestFingerprintDistinct(t *testing.T) {
	if Fingerprint(String("a")) == Fingerprint(String("b")) {
		t.Error("distinct strings should not collide")
	}
	if Fingerprint(String("1")) == Fingerprint(Number(1)) {
		t.Error("string and number spellings should not collide")
	}
}

// TestIsBlank verifies the auto-run qualification rule.
func TestIsBlank(t *testing.T) {
	if !Null().IsBlank() {
		t.Error("null should be blank")
	}
	if !String("   ").IsBlank() {
		t.Error("whitespace string should be blank")
	}
	if String("x").IsBlank() {
		t.Error("non-empty string should not be blank")
	}
	if Number(0).IsBlank() {
		t.Error("zero number should not be blank")
	}
	if Bool(false).IsBlank() {
		t.Error("false should not be blank")
	}
}

// TestRedacted verifies the placeholder payload.
func TestRedacted(t *testing.T) {
	r := Redacted()
	if r.Kind() != KindString || r.Str() != RedactionPlaceholder {
		t.Errorf("unexpected redaction payload: %v", r.Text())
	}
}

// TestText verifies display rendering.
func TestText(t *testing.T) {
	if got := String("hi").Text(); got != "hi" {
		t.Errorf("string text = %q", got)
	}
	if got := Number(2.5).Text(); got != "2.5" {
		t.Errorf("number text = %q", got)
	}
	if got := Map(map[string]Value{"a": Number(1)}).Text(); got != `{"a":1}` {
		t.Errorf("map text = %q", got)
	}
}
