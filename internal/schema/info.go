package schema

import "strings"

// RefKind classifies a resolved field name.
type RefKind int

const (
	// RefPlain is a plain field or a name nothing resolves.
	RefPlain RefKind = iota
	// RefForward is a field of this schema holding a foreign key.
	RefForward
	// RefInverse is a field of another schema pointing back here.
	RefInverse
)

func (k RefKind) String() string {
	switch k {
	case RefForward:
		return "forward"
	case RefInverse:
		return "inverse"
	default:
		return "plain"
	}
}

// RefInfo describes how a field name relates to another schema.
//
// For a forward reference Field is the local foreign key field and Index the
// key on the target collection. For an inverse reference Field is the local
// key the foreign key matches and Index the foreign key field on the target.
// Inverse is the name under which the relation is traversed back.
type RefInfo struct {
	Kind    RefKind
	Field   string
	Inverse string
	Model   string
	Index   string
	Type    string
	Target  *Schema
}

// IsReference reports whether the info points at another schema.
func (i RefInfo) IsReference() bool {
	return i.Kind != RefPlain
}

// Info resolves field on s as a forward reference, an inverse reference
// ("field@suffix" picks one of several referencing fields) or a plain field.
// Results are memoised per field name.
func (s *Schema) Info(field string) RefInfo {
	if cached, ok := s.infos.Load(field); ok {
		return cached.(RefInfo)
	}
	info := s.resolve(field)
	s.infos.Store(field, info)
	return info
}

func (s *Schema) resolve(field string) RefInfo {
	reg := s.registry

	if f, ok := s.Field(field); ok && f.Reference != "" && reg != nil {
		if target, ok := reg.Lookup(f.Reference); ok {
			return s.forward(f, target)
		}
		reg.log.Warnw("Reference to unregistered schema", "model", s.Name, "field", f.Name, "reference", f.Reference)
	}

	name, suffix, _ := strings.Cut(field, "@")
	if reg != nil && !s.HasField(name) {
		candidates := reg.convention.Backrefs(s, name, reg.Referrers(s))
		for _, m := range candidates {
			for _, meta := range reg.edgeMeta(m, s) {
				if suffix != "" && meta.Field != suffix {
					continue
				}
				return inverse(s, m, meta.Field, meta.Property)
			}
		}
	}

	info := RefInfo{Kind: RefPlain, Field: name}
	if f, ok := s.Field(name); ok {
		info.Type = f.Type
	}
	return info
}

func (s *Schema) forward(f *Field, target *Schema) RefInfo {
	suffix := ""
	for i := range s.Fields {
		other := &s.Fields[i]
		if other == f {
			break
		}
		if t, ok := s.registry.Lookup(other.Reference); ok && t == target {
			suffix = "@" + f.Name
			break
		}
	}

	index := "id"
	if len(target.IDFields) == 1 && f.Property != "" && f.Property != "id" && f.Property != target.IDFields[0] {
		index = f.Property
	}

	return RefInfo{
		Kind:    RefForward,
		Field:   f.Name,
		Inverse: s.registry.convention.Backverse(s, suffix),
		Model:   target.Aka,
		Index:   index,
		Type:    f.Type,
		Target:  target,
	}
}

func inverse(s, referrer *Schema, fk, property string) RefInfo {
	local := "id"
	if property != "" && property != "id" && !(len(s.IDFields) == 1 && s.IDFields[0] == property) {
		local = property
	}

	index := fk
	if len(referrer.IDFields) == 1 && referrer.IDFields[0] == fk {
		index = "id"
	}

	return RefInfo{
		Kind:    RefInverse,
		Field:   local,
		Inverse: fk,
		Model:   referrer.Aka,
		Index:   index,
		Target:  referrer,
	}
}
