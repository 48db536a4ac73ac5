// Package collection holds the per-model record stores of an engine and the
// secondary indexes over them.
package collection

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dbsmedya/gofetch/internal/index"
	"github.com/dbsmedya/gofetch/internal/logger"
	"github.com/dbsmedya/gofetch/internal/query"
	"github.com/dbsmedya/gofetch/internal/schema"
	"github.com/dbsmedya/gofetch/internal/types"
)

// ErrNotFound is wrapped by NotFoundError.
var ErrNotFound = errors.New("not found")

// NotFoundError is returned by FindOrFail when nothing matches.
type NotFoundError struct {
	Model  string
	Params types.Params
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s using %v", ErrNotFound, e.Model, map[string]interface{}(e.Params))
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// Options configure a Store.
type Options struct {
	// Chunk is the index copy chunk size.
	Chunk int
	// KeyOrder reorders index key paths before an index is built.
	KeyOrder func(keys []string)
	Log      *logger.Logger
}

// Store owns the collections of one engine. A single mutex serialises every
// splice and index mutation, so each one is atomic with respect to
// concurrent fetch trees.
type Store struct {
	mu          sync.Mutex
	registry    *schema.Registry
	collections *Layered[string, *Collection]

	exec  *query.Executor // resolves through the locking Store
	inner *query.Executor // resolves with the lock already held

	opts Options
	log  *logger.Logger
}

// NewStore creates an empty store for the models of registry.
func NewStore(registry *schema.Registry, parser *query.Parser, opts Options) *Store {
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}
	s := &Store{
		registry:    registry,
		collections: NewLayered[string, *Collection](),
		opts:        opts,
		log:         opts.Log,
	}
	s.exec = query.NewExecutor(parser, s, opts.Log)
	s.inner = query.NewExecutor(parser, held{s}, opts.Log)
	return s
}

// Executor returns the query executor bound to this store.
func (s *Store) Executor() *query.Executor {
	return s.exec
}

// Registry returns the schema registry of the store.
func (s *Store) Registry() *schema.Registry {
	return s.registry
}

// Collection returns the collection of a model, creating it on first use.
func (s *Store) Collection(model string) (*Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collection(model)
}

// Loaded returns the collection of a model only if it exists already.
func (s *Store) Loaded(model string) (*Collection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collections.Get(model)
}

func (s *Store) collection(model string) (*Collection, error) {
	if c, ok := s.collections.Get(model); ok {
		return c, nil
	}

	sc, ok := s.registry.Lookup(model)
	if !ok {
		return nil, fmt.Errorf("model %q is not registered", model)
	}
	if c, ok := s.collections.Get(sc.Name); ok {
		return c, nil
	}

	c := newCollection(s, sc)
	s.collections.Set(sc.Name, c)
	s.collections.Set(sc.Aka, c)
	return c, nil
}

// Related implements query.Resolver.
func (s *Store) Related(info schema.RefInfo, value interface{}) ([]*schema.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.related(info, value)
}

func (s *Store) related(info schema.RefInfo, value interface{}) ([]*schema.Record, bool) {
	c, ok := s.collections.Get(info.Model)
	if !ok {
		return nil, false
	}
	return c.find(types.Params{info.Index: value}), true
}

// held resolves references for the inner executor, which only runs while
// the store lock is already held.
type held struct {
	s *Store
}

func (h held) Related(info schema.RefInfo, value interface{}) ([]*schema.Record, bool) {
	return h.s.related(info, value)
}

// keyValue evaluates an index key path on a record. Called with the lock held.
func (s *Store) keyValue(rec *schema.Record, key string) interface{} {
	if key == "id" || rec.Schema().HasField(key) {
		return rec.Value(key)
	}

	seq, err := s.inner.Parser().Parse(key)
	if err != nil {
		s.log.Warnw("Invalid index key", "model", rec.Schema().Aka, "key", key, "error", err)
		return nil
	}
	return s.inner.Execute([]interface{}{rec}, seq, query.Options{FetchRefID: true})
}

// Find selects records of a model.
func (s *Store) Find(model string, params interface{}) ([]*schema.Record, error) {
	c, err := s.Collection(model)
	if err != nil {
		return nil, err
	}
	return c.Find(params), nil
}

// FindOne returns the first matching record of a model, or nil.
func (s *Store) FindOne(model string, params interface{}) (*schema.Record, error) {
	c, err := s.Collection(model)
	if err != nil {
		return nil, err
	}
	return c.FindOne(params), nil
}

// FindOrFail returns the first matching record of a model or a
// NotFoundError.
func (s *Store) FindOrFail(model string, params interface{}) (*schema.Record, error) {
	c, err := s.Collection(model)
	if err != nil {
		return nil, err
	}
	return c.FindOrFail(params)
}

// Fork starts a scoped overlay: collections created until Free are
// discarded by it.
func (s *Store) Fork() {
	s.mu.Lock()
	s.collections.Fork()
	s.log.Debugw("Forked store overlay", "depth", s.collections.Depth())
	s.mu.Unlock()
}

// Free discards the newest overlay.
func (s *Store) Free() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.collections.Free() {
		return false
	}
	s.log.Debugw("Freed store overlay", "depth", s.collections.Depth())
	return true
}

// Reset drops every collection.
func (s *Store) Reset() {
	s.mu.Lock()
	s.collections.Reset()
	s.mu.Unlock()
}

// Models returns the names of the models holding a collection.
func (s *Store) Models() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	s.collections.Range(func(name string, c *Collection) bool {
		if name == c.schema.Name {
			names = append(names, name)
		}
		return true
	})
	sort.Strings(names)
	return names
}

func (s *Store) newIndex(keys []string) *index.Index {
	return index.New(keys, s.keyValue, index.Options{Chunk: s.opts.Chunk, Order: s.opts.KeyOrder})
}
