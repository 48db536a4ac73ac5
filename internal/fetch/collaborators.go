package fetch

import (
	"context"
	"sort"

	"github.com/dbsmedya/gofetch/internal/config"
	"github.com/dbsmedya/gofetch/internal/query"
	"github.com/dbsmedya/gofetch/internal/schema"
	"github.com/dbsmedya/gofetch/internal/types"
)

// Request is what a loader asks the transport for: the rows of Model
// matching any of Params. Edges and Range are set for interval-shaped
// models fetched within a range.
type Request struct {
	Model  string
	Params []types.Params
	Edges  []string
	Range  *types.Range
}

// Transport performs a remote fetch. Rows may be tuples in field order or
// objects keyed by field name.
type Transport interface {
	Request(ctx context.Context, req *Request) ([]interface{}, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request) ([]interface{}, error)

// Request calls f.
func (f TransportFunc) Request(ctx context.Context, req *Request) ([]interface{}, error) {
	return f(ctx, req)
}

// ExtraResolver fetches records referenced from root records but missing
// locally. ids are identities of rootModel records, path the field path
// from the root to the missing model.
type ExtraResolver interface {
	Extra(ctx context.Context, rootModel string, ids []interface{}, path, model string) ([]interface{}, error)
}

// ExtraFunc adapts a function to ExtraResolver.
type ExtraFunc func(ctx context.Context, rootModel string, ids []interface{}, path, model string) ([]interface{}, error)

// Extra calls f.
func (f ExtraFunc) Extra(ctx context.Context, rootModel string, ids []interface{}, path, model string) ([]interface{}, error) {
	return f(ctx, rootModel, ids, path, model)
}

// Classification partitions extra records into authoritative and
// reference-only ones.
type Classification struct {
	Valid   []interface{}
	Invalid []interface{}
}

// Classifier partitions fetched extra records by identity.
type Classifier interface {
	Classify(ctx context.Context, model string, ids []interface{}) (Classification, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, model string, ids []interface{}) (Classification, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, model string, ids []interface{}) (Classification, error) {
	return f(ctx, model, ids)
}

// Hooks are the named switches of an engine. Every hook is optional.
type Hooks struct {
	// Absent overrides detection of identities missing locally. A nil
	// result falls back to the index lookup.
	Absent func(x *Expeditor) []interface{}
	// ClassifyExtra enables the Classifier for extra records reached
	// through inverse references.
	ClassifyExtra bool
	// KeyOrder reorders index key paths.
	KeyOrder func(keys []string)
	// Selectors are added to the built-in query selectors.
	Selectors map[string]query.SelectorFunc
	// Collect handles a dependent field itself when it returns true.
	Collect func(data []*schema.Record, step *query.Step, s *schema.Schema, tail string, x *Expeditor) bool
	// Propagate is called for every child a dependent field is routed to.
	Propagate func(child *Expeditor)
	// Spawn may adjust the params of a child before it is created.
	Spawn func(params types.Params, info schema.RefInfo)
}

// HooksFromConfig selects the built-in hook variants named by the engine
// configuration.
func HooksFromConfig(cfg config.EngineConfig) Hooks {
	h := Hooks{ClassifyExtra: cfg.ClassifyExtra}
	if cfg.KeyOrder == "sorted" {
		h.KeyOrder = sort.Strings
	}
	return h
}
