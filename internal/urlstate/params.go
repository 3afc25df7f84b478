/*
Package urlstate reconciles browser URL query parameters with tool-local
state.

Each tool declares an ordered list of parameters describing which state
fields are externally addressable and how to parse them. On navigation the
synchronizer reads the query string, resolves each declared parameter to a
typed value (falling back to the declared default on absence or parse
failure), pushes the values through the tool's state setters, and signals
whether the tool should auto-run its computation.
*/
package urlstate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/toolvault/toolvault/internal/payload"
)

// ParamType identifies how a query value is parsed.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeEnum    ParamType = "enum"
	TypeBoolean ParamType = "boolean"
	TypeNumber  ParamType = "number"
	TypeJSON    ParamType = "json"
)

// ParamDecl declares one externally addressable state field.
type ParamDecl struct {
	// Name is the query parameter name.
	Name string `json:"name"`

	// Type selects the parser.
	Type ParamType `json:"type"`

	// Default is the value used when the parameter is absent or fails to
	// parse.
	Default payload.Value `json:"default"`

	// Enum lists the accepted values for TypeEnum.
	Enum []string `json:"enum,omitempty"`

	// Primary marks this parameter as the tool's primary input. When no
	// declaration is marked, the first declared parameter is primary.
	Primary bool `json:"primary,omitempty"`
}

// Validate checks the declaration is well-formed.
func (d ParamDecl) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("parameter declaration missing name")
	}
	switch d.Type {
	case TypeString, TypeBoolean, TypeNumber, TypeJSON:
		return nil
	case TypeEnum:
		if len(d.Enum) == 0 {
			return fmt.Errorf("parameter %s: enum type requires values", d.Name)
		}
		return nil
	default:
		return fmt.Errorf("parameter %s: unknown type %q", d.Name, d.Type)
	}
}

// parse resolves a raw query value per the declared type. ok is false when
// the raw value is malformed and the default should apply.
func (d ParamDecl) parse(raw string) (payload.Value, bool) {
	switch d.Type {
	case TypeString:
		return payload.String(raw), true

	case TypeEnum:
		for _, allowed := range d.Enum {
			if raw == allowed {
				return payload.String(raw), true
			}
		}
		return payload.Value{}, false

	case TypeBoolean:
		switch strings.ToLower(raw) {
		case "true":
			return payload.Bool(true), true
		case "false":
			return payload.Bool(false), true
		}
		return payload.Value{}, false

	case TypeNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return payload.Value{}, false
		}
		return payload.Number(f), true

	case TypeJSON:
		v, err := payload.FromJSON([]byte(raw))
		if err != nil {
			return payload.Value{}, false
		}
		return v, true

	default:
		return payload.Value{}, false
	}
}

// encode renders a typed value into its query-string form.
func (d ParamDecl) encode(v payload.Value) string {
	switch d.Type {
	case TypeString, TypeEnum:
		return v.Str()
	case TypeBoolean:
		return strconv.FormatBool(v.BoolVal())
	case TypeNumber:
		return strconv.FormatFloat(v.Num(), 'g', -1, 64)
	case TypeJSON:
		data, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return ""
	}
}

// primaryIndex returns the index of the primary-input declaration.
func primaryIndex(decls []ParamDecl) int {
	for i, d := range decls {
		if d.Primary {
			return i
		}
	}
	return 0
}
