package schema

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/dbsmedya/gofetch/internal/graph"
	"github.com/dbsmedya/gofetch/internal/logger"
)

// Options configures a Registry.
type Options struct {
	// AliasPattern is stripped from a model name to derive its alternate
	// name when the descriptor does not set one.
	AliasPattern *regexp.Regexp
	// Convention names backward references. Defaults to NameConvention.
	Convention Convention
	Log        *logger.Logger
}

// Registry holds every registered schema of one engine instance, together
// with the reference graph between them.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema // name and aka -> schema
	order   []*Schema
	graph   *graph.Graph
	linked  map[string]bool // "model.field" references already in the graph

	pattern    *regexp.Regexp
	convention Convention
	log        *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Convention.Backrefs == nil || opts.Convention.Backverse == nil {
		opts.Convention = NameConvention
	}
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}
	return &Registry{
		schemas:    make(map[string]*Schema),
		graph:      graph.NewGraph(),
		linked:     make(map[string]bool),
		pattern:    opts.AliasPattern,
		convention: opts.Convention,
		log:        opts.Log,
	}
}

// Register validates d, freezes it into a Schema and indexes it by name and
// alternate name.
func (r *Registry) Register(d Descriptor) (*Schema, error) {
	if d.Name == "" {
		return nil, ErrEmptyName
	}

	aka := d.Aka
	if aka == "" && r.pattern != nil {
		aka = r.pattern.ReplaceAllString(d.Name, "")
	}
	if aka == "" {
		aka = d.Name
	}

	s, err := newSchema(d, aka)
	if err != nil {
		return nil, err
	}
	s.registry = r

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range []string{s.Name, s.Aka} {
		if _, exists := r.schemas[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSchema, name)
		}
	}
	r.schemas[s.Name] = s
	r.schemas[s.Aka] = s
	r.order = append(r.order, s)

	r.graph.AddNode(s.Name, &graph.Node{Aka: s.Aka, Key: s.Origin()})
	r.link()

	// New schemas can introduce inverse references for existing ones.
	for _, other := range r.order {
		other.infos.Range(func(k, _ interface{}) bool {
			other.infos.Delete(k)
			return true
		})
	}

	r.log.Debugw("Registered schema", "model", s.Name, "aka", s.Aka, "key", s.Origin())
	return s, nil
}

// link adds graph edges for every reference whose target is registered.
// Called with r.mu held.
func (r *Registry) link() {
	for _, s := range r.order {
		for _, f := range s.Fields {
			if f.Reference == "" || r.linked[s.Name+"."+f.Name] {
				continue
			}
			target, ok := r.schemas[f.Reference]
			if !ok {
				continue
			}
			r.graph.AddEdgeWithMeta(s.Name, target.Name, f.Name, f.Property)
			r.linked[s.Name+"."+f.Name] = true
		}
	}
}

// Resolve checks that every reference names a registered schema.
func (r *Registry) Resolve() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.order {
		for _, f := range s.Fields {
			if f.Reference == "" {
				continue
			}
			if _, ok := r.schemas[f.Reference]; !ok {
				return fmt.Errorf("%s.%s: %w %q", s.Name, f.Name, ErrUnknownReference, f.Reference)
			}
		}
	}
	return nil
}

// Lookup returns the schema registered under a name or alternate name.
func (r *Registry) Lookup(name string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}

// Schemas returns every schema in registration order.
func (r *Registry) Schemas() []*Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Schema(nil), r.order...)
}

// Graph returns the reference graph. Parents of a model are the models
// referencing it.
func (r *Registry) Graph() *graph.Graph {
	return r.graph
}

// Referrers returns the schemas holding a reference to s.
func (r *Registry) Referrers(s *Schema) []*Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parents := r.graph.GetParents(s.Name)
	out := make([]*Schema, 0, len(parents))
	for _, name := range parents {
		out = append(out, r.schemas[name])
	}
	return out
}

func (r *Registry) edgeMeta(from, to *Schema) []*graph.EdgeMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.graph.GetEdgeMeta(from.Name, to.Name)
}

// Info resolves field on s. See Schema.Info.
func (r *Registry) Info(s *Schema, field string) RefInfo {
	return s.Info(field)
}

// Convention names backward references: Backrefs picks the referencing
// schemas an inverse field name may address, Backverse names the inverse of
// a forward reference from s.
type Convention struct {
	Backrefs  func(target *Schema, field string, referrers []*Schema) []*Schema
	Backverse func(s *Schema, suffix string) string
}

// NameConvention addresses an inverse reference by the referencing model's
// name or alternate name, case-insensitively ("Site.job").
var NameConvention = Convention{
	Backrefs: func(_ *Schema, field string, referrers []*Schema) []*Schema {
		var out []*Schema
		for _, m := range referrers {
			if strings.EqualFold(field, m.Name) || strings.EqualFold(field, m.Aka) {
				out = append(out, m)
			}
		}
		return out
	},
	Backverse: func(s *Schema, suffix string) string {
		return strings.ToLower(s.Aka) + suffix
	},
}

// PluralConvention addresses an inverse reference by the plural of the
// referencing model's name ("Site.jobs").
var PluralConvention = Convention{
	Backrefs: func(_ *Schema, field string, referrers []*Schema) []*Schema {
		var out []*Schema
		for _, m := range referrers {
			if strings.EqualFold(field, m.Name+"s") || strings.EqualFold(field, m.Aka+"s") {
				out = append(out, m)
			}
		}
		return out
	},
	Backverse: func(s *Schema, suffix string) string {
		return strings.ToLower(s.Aka) + "s" + suffix
	},
}

// ConventionByName maps a configuration value to a Convention.
func ConventionByName(name string) (Convention, bool) {
	switch name {
	case "", "name":
		return NameConvention, true
	case "plural":
		return PluralConvention, true
	default:
		return Convention{}, false
	}
}
