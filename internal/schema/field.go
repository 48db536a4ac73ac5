// Package schema provides model descriptors, records and reference
// resolution for the fetch engine.
package schema

import (
	"errors"
	"strings"
	"unicode"
)

// Kind tags how a name on a schema is evaluated.
type Kind int

const (
	// KindUnknown is a name the schema does not declare.
	KindUnknown Kind = iota
	// KindPlain is a declared field holding a scalar or nested value.
	KindPlain
	// KindReference is a declared field holding a foreign key.
	KindReference
	// KindComputed is a registered accessor function.
	KindComputed
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindReference:
		return "reference"
	case KindComputed:
		return "computed"
	default:
		return "unknown"
	}
}

// TypeAuto marks a field whose value is a nested object traversed by name.
const TypeAuto = "auto"

// Field describes one declared field.
type Field struct {
	Name      string
	Aka       string // alternate name accepted in queries and rows
	Reference string // referenced model name or aka
	Property  string // key on the referenced model, defaults to its identity
	Type      string
}

// ComputedFunc evaluates a computed accessor on a record. args are the raw
// call arguments of the query segment, e.g. "total(net,2)".
type ComputedFunc func(rec *Record, args []string) interface{}

// Computed is a registered accessor together with the dependent field
// expressions it reads. Fields entries may be space-separated templates.
type Computed struct {
	Fn     ComputedFunc
	Fields []string
}

// Descriptor is the input to Registry.Register.
type Descriptor struct {
	Name     string
	Aka      string
	Key      []string // identity fields, defaults to ["id"]
	Fields   []Field
	Computed map[string]Computed
}

// Registration errors.
var (
	ErrEmptyName        = errors.New("schema name is empty")
	ErrDuplicateField   = errors.New("duplicate field")
	ErrDuplicateSchema  = errors.New("schema already registered")
	ErrUnknownReference = errors.New("unknown referenced schema")
	ErrUnknownKey       = errors.New("identity field is not declared")
)

// Single extracts the field expressions from templates such as
// "first last" or "name (code)": tokens must start with a letter.
// The result is de-duplicated in order of appearance.
func Single(fields []string) []string {
	var single []string
	seen := make(map[string]bool)

	for _, tmpl := range fields {
		for _, tok := range strings.Split(tmpl, " ") {
			if tok == "" || !unicode.IsLetter(rune(tok[0])) || seen[tok] {
				continue
			}
			seen[tok] = true
			single = append(single, tok)
		}
	}

	return single
}
