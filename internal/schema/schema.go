package schema

import (
	"fmt"
	"strings"
	"sync"
)

// IDSeparator joins the values of a composite identity.
const IDSeparator = "-"

var (
	calendarYMD = []string{"year", "month", "day"}
	calendarYM  = []string{"year", "month"}
	calendarY   = []string{"year"}
	edgeNames   = []string{"begin", "end"}
)

// Schema is the immutable descriptor of one record type.
type Schema struct {
	Name     string
	Aka      string
	Fields   []Field
	IDFields []string

	positions map[string]int // field name and aka -> position
	kinds     map[string]Kind
	computed  map[string]Computed
	calendar  []string
	edges     []string

	registry *Registry
	infos    sync.Map // field -> RefInfo
}

func newSchema(d Descriptor, aka string) (*Schema, error) {
	s := &Schema{
		Name:      d.Name,
		Aka:       aka,
		Fields:    append([]Field(nil), d.Fields...),
		IDFields:  append([]string(nil), d.Key...),
		positions: make(map[string]int, len(d.Fields)*2),
		kinds:     make(map[string]Kind, len(d.Fields)+len(d.Computed)),
		computed:  make(map[string]Computed, len(d.Computed)),
	}
	if len(s.IDFields) == 0 {
		s.IDFields = []string{"id"}
	}

	for i, f := range s.Fields {
		if f.Name == "" {
			return nil, fmt.Errorf("%s: field %d has no name", d.Name, i)
		}
		if _, exists := s.positions[f.Name]; exists {
			return nil, fmt.Errorf("%s: %w %q", d.Name, ErrDuplicateField, f.Name)
		}
		s.positions[f.Name] = i

		kind := KindPlain
		if f.Reference != "" {
			kind = KindReference
		}
		s.kinds[f.Name] = kind

		if f.Aka != "" && f.Aka != f.Name {
			if _, exists := s.positions[f.Aka]; exists {
				return nil, fmt.Errorf("%s: %w %q", d.Name, ErrDuplicateField, f.Aka)
			}
			s.positions[f.Aka] = i
			s.kinds[f.Aka] = kind
		}
	}

	for name, c := range d.Computed {
		if _, exists := s.kinds[name]; exists {
			return nil, fmt.Errorf("%s: %w %q (computed)", d.Name, ErrDuplicateField, name)
		}
		if c.Fn == nil {
			return nil, fmt.Errorf("%s: computed %q has no function", d.Name, name)
		}
		s.computed[name] = c
		s.kinds[name] = KindComputed
	}

	for _, k := range s.IDFields {
		if _, ok := s.positions[k]; !ok && !(k == "id" && len(s.IDFields) == 1) {
			return nil, fmt.Errorf("%s: %w %q", d.Name, ErrUnknownKey, k)
		}
	}

	// A single non-"id" identity is reachable as "id" too.
	if _, ok := s.positions["id"]; !ok && len(s.IDFields) == 1 {
		if pos, ok := s.positions[s.IDFields[0]]; ok {
			s.positions["id"] = pos
			s.kinds["id"] = s.kinds[s.IDFields[0]]
		}
	}

	s.calendar = calendarNames(s.positions)
	if s.has("begin") && s.has("end") {
		s.edges = edgeNames
	}

	return s, nil
}

func calendarNames(positions map[string]int) []string {
	has := func(n string) bool { _, ok := positions[n]; return ok }
	switch {
	case !has("year"):
		return nil
	case !has("month"):
		return calendarY
	case !has("day"):
		return calendarYM
	default:
		return calendarYMD
	}
}

func (s *Schema) has(name string) bool {
	_, ok := s.positions[name]
	return ok
}

// String returns the alternate name, which is how models are addressed at runtime.
func (s *Schema) String() string {
	return s.Aka
}

// HasField reports whether name is a declared field (by name or aka).
func (s *Schema) HasField(name string) bool {
	return s.has(name)
}

// Position returns the position of a declared field.
func (s *Schema) Position(name string) (int, bool) {
	pos, ok := s.positions[name]
	return pos, ok
}

// Field returns the declared field addressed by name or aka.
func (s *Schema) Field(name string) (*Field, bool) {
	pos, ok := s.positions[name]
	if !ok {
		return nil, false
	}
	return &s.Fields[pos], true
}

// Kind returns the tag of a name on this schema.
func (s *Schema) Kind(name string) Kind {
	return s.kinds[name]
}

// Computed returns the computed accessor registered under name.
func (s *Schema) Computed(name string) (Computed, bool) {
	c, ok := s.computed[name]
	return c, ok
}

// Origin returns the key of the identity index: "id", or the joined
// composite key fields.
func (s *Schema) Origin() string {
	if len(s.IDFields) > 1 {
		return strings.Join(s.IDFields, IDSeparator)
	}
	return "id"
}

// Calendar returns the year/month/day fields the schema is partitioned by,
// or nil.
func (s *Schema) Calendar() []string {
	return s.calendar
}

// Edges returns the begin/end interval fields, or nil.
func (s *Schema) Edges() []string {
	return s.edges
}

// IsTimebased reports whether the schema is partitioned by calendar or
// interval fields.
func (s *Schema) IsTimebased() bool {
	return s.calendar != nil || s.edges != nil
}

// Registry returns the registry the schema belongs to.
func (s *Schema) Registry() *Registry {
	return s.registry
}
