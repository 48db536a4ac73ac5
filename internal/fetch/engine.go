// Package fetch resolves fetch trees: a root Expeditor loads its model,
// then cascades dependent field expressions into child Expeditors for the
// referenced models, level by level.
package fetch

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/dbsmedya/gofetch/internal/collection"
	"github.com/dbsmedya/gofetch/internal/logger"
	"github.com/dbsmedya/gofetch/internal/query"
	"github.com/dbsmedya/gofetch/internal/schema"
	"github.com/dbsmedya/gofetch/internal/similar"
)

// Errors returned while building or resolving fetch trees.
var (
	ErrTimebased   = errors.New("time-partitioned model must be fetched with params or range")
	ErrExpandRange = errors.New("range expansion requires a range value")
	ErrNoRegistry  = errors.New("engine requires a schema registry")
	ErrNoTransport = errors.New("engine requires a transport")
)

// Options configure an Engine. Registry and Transport are required.
type Options struct {
	Registry   *schema.Registry
	Transport  Transport
	Extra      ExtraResolver
	Classifier Classifier
	Hooks      Hooks

	// Store and Similar are created when nil.
	Store   *collection.Store
	Similar *similar.Registry

	SimilarLimit int
	ChunkSize    int
	Log          *logger.Logger
}

// Engine is the context shared by every fetch tree of one instance: the
// schema registry, record store, similarity registry and collaborators.
type Engine struct {
	registry   *schema.Registry
	store      *collection.Store
	exec       *query.Executor
	similar    *similar.Registry
	transport  Transport
	extra      ExtraResolver
	classifier Classifier
	hooks      Hooks
	log        *logger.Logger

	extraGroup singleflight.Group
	extraSeen  sync.Map // "rootModel/path/ids" -> struct{}
}

// NewEngine creates an engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Registry == nil {
		return nil, ErrNoRegistry
	}
	if opts.Transport == nil {
		return nil, ErrNoTransport
	}
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}

	if opts.Store == nil {
		parser := query.NewParser(query.NewSelectors(opts.Hooks.Selectors))
		opts.Store = collection.NewStore(opts.Registry, parser, collection.Options{
			Chunk:    opts.ChunkSize,
			KeyOrder: opts.Hooks.KeyOrder,
			Log:      opts.Log,
		})
	}
	if opts.Similar == nil {
		opts.Similar = similar.NewRegistry(opts.SimilarLimit)
	}

	return &Engine{
		registry:   opts.Registry,
		store:      opts.Store,
		exec:       opts.Store.Executor(),
		similar:    opts.Similar,
		transport:  opts.Transport,
		extra:      opts.Extra,
		classifier: opts.Classifier,
		hooks:      opts.Hooks,
		log:        opts.Log,
	}, nil
}

// Store returns the record store.
func (e *Engine) Store() *collection.Store {
	return e.store
}

// Executor returns the query executor bound to the store.
func (e *Engine) Executor() *query.Executor {
	return e.exec
}

// Registry returns the schema registry.
func (e *Engine) Registry() *schema.Registry {
	return e.registry
}

// Similar returns the similarity registry.
func (e *Engine) Similar() *similar.Registry {
	return e.similar
}

// Expeditor creates a root fetch node.
func (e *Engine) Expeditor(opts ExpeditorOptions) (*Expeditor, error) {
	return newExpeditor(e, opts, nil)
}

// Load creates a root node and resolves it.
func (e *Engine) Load(ctx context.Context, opts ExpeditorOptions) ([]*schema.Record, *Expeditor, error) {
	x, err := e.Expeditor(opts)
	if err != nil {
		return nil, nil, err
	}
	data, err := x.Sequent(ctx, nil)
	return data, x, err
}

// Reset drops every stored record, remembered request and extra marker.
func (e *Engine) Reset() {
	e.store.Reset()
	e.similar.Reset()
	e.extraSeen.Range(func(k, _ interface{}) bool {
		e.extraSeen.Delete(k)
		return true
	})
}
