package fetch

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dbsmedya/gofetch/internal/collection"
	"github.com/dbsmedya/gofetch/internal/logger"
	"github.com/dbsmedya/gofetch/internal/query"
	"github.com/dbsmedya/gofetch/internal/schema"
	"github.com/dbsmedya/gofetch/internal/similar"
	"github.com/dbsmedya/gofetch/internal/types"
)

// Loader turns the params of one node into remote requests and reads the
// result back from the store.
type Loader struct {
	engine   *Engine
	schema   *schema.Schema
	model    string
	rng      *types.Range
	calendar []string
	edges    []string
	log      *logger.Logger

	mu      sync.Mutex
	params  types.Params
	fields  []string
	calls   uint64
	tracked uint64 // call currently tracked, 0 when idle
}

// NewLoader creates a loader for model. params are copied.
func (e *Engine) NewLoader(model string, params types.Params, rng *types.Range) (*Loader, error) {
	s, ok := e.registry.Lookup(model)
	if !ok {
		return nil, fmt.Errorf("model %q is not registered", model)
	}
	if params == nil {
		params = types.Params{}
	}
	l := &Loader{
		engine:   e,
		schema:   s,
		model:    s.Aka,
		calendar: s.Calendar(),
		edges:    s.Edges(),
		params:   params.Clone(),
		log:      e.log.WithModel(s.Aka),
	}
	if s.IsTimebased() {
		l.rng = rng
	}
	return l, nil
}

// Params returns a copy of the current params.
func (l *Loader) Params() types.Params {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.params.Clone()
}

// Fields returns the params turned into dependent fields by purify.
func (l *Loader) Fields() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.fields...)
}

// Loading reports whether a Load call is in progress.
func (l *Loader) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tracked != 0
}

// AddField adds a dependent field once.
func (l *Loader) AddField(field string) {
	if field == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range l.fields {
		if f == field {
			return
		}
	}
	l.fields = append(l.fields, field)
}

// AddParam merges values into a param. See types.Params.Add.
func (l *Loader) AddParam(field string, value interface{}) {
	l.mu.Lock()
	l.params.Add(field, value)
	l.mu.Unlock()
}

func (l *Loader) deleteParam(field string) {
	l.mu.Lock()
	delete(l.params, field)
	l.mu.Unlock()
}

// Load resolves the records of x. With data it only filters the given
// records; otherwise it fetches, loads extra records and reads back from
// the store. Params naming paths are resolved as dependent fields first
// and applied locally afterwards. A call made while another is running is
// logged and replaces it as the tracked call.
func (l *Loader) Load(ctx context.Context, x *Expeditor, data []*schema.Record) ([]*schema.Record, error) {
	l.mu.Lock()
	if l.tracked != 0 {
		l.log.Warnw("Loader is already loading", "call", l.tracked)
	}
	l.calls++
	call := l.calls
	l.tracked = call
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		if l.tracked == call {
			l.tracked = 0
		}
		l.mu.Unlock()
	}()

	if err := l.purify(ctx); err != nil {
		return nil, err
	}

	if data != nil {
		data = l.filter(data, l.Params())
		if len(l.Fields()) > 0 {
			if err := l.cascade(ctx, data, x); err != nil {
				return nil, err
			}
			data = l.filter(data, x.params)
		}
		return data, nil
	}

	if err := l.settle(ctx, x); err != nil {
		return nil, err
	}

	data, err := l.local(l.Params())
	if err != nil {
		return nil, err
	}

	if len(l.Fields()) > 0 {
		if err := l.cascade(ctx, data, x); err != nil {
			return nil, err
		}
		return l.local(x.params)
	}
	return data, nil
}

// settle fetches, loads extra records for x and completes the loader's
// flight so that similar requests waiting on it proceed.
func (l *Loader) settle(ctx context.Context, x *Expeditor) error {
	entry, err := l.fetch(ctx)
	if err == nil && x != nil {
		err = l.engine.loadExtra(ctx, x)
	}
	if entry != nil {
		entry.Flight.Finish(err)
		if err != nil {
			l.engine.similar.Remove(entry)
		}
	}
	return err
}

func (l *Loader) cascade(ctx context.Context, data []*schema.Record, x *Expeditor) error {
	if x.IsRoot() {
		x.setData(data)
	}
	return l.engine.cascade(ctx, data, l.Fields(), x)
}

// purify rewrites params the transport cannot take. "ref.field" on a
// reference whose target field is plain is resolved into identities of
// the target through a nested loader; any other path becomes a dependent
// field applied locally.
func (l *Loader) purify(ctx context.Context) error {
	parser := l.engine.exec.Parser()

	// Every key is parsed before any nested fetch starts.
	keys := l.Params().Keys()
	seqs := make([]*query.Sequence, len(keys))
	for i, key := range keys {
		seq, err := parser.Parse(key)
		if err != nil {
			return err
		}
		seqs[i] = seq
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		seq := seqs[i]

		var f [3]string
		for i := 0; i < len(seq.Steps) && i < len(f); i++ {
			f[i] = seq.Steps[i].Field
		}

		if f[0] == "id" || l.schema.HasField(f[0]) {
			if len(seq.Steps) == 1 {
				continue
			}

			info := l.schema.Info(f[0])
			if info.IsReference() && f[2] == "" && len(seq.Steps) == 2 && !info.Target.Info(f[1]).IsReference() {
				key, value := key, l.Params()[key]
				g.Go(func() error {
					return l.resolveParam(gctx, key, f[0], info.Model, f[1], value)
				})
				continue
			}
		}

		l.AddField(key)
		l.deleteParam(key)
	}

	return g.Wait()
}

// resolveParam replaces param key by the identities of target records
// whose field matches value.
func (l *Loader) resolveParam(ctx context.Context, key, ref, target, field string, value interface{}) error {
	nested, err := l.engine.NewLoader(target, types.Params{field: value}, nil)
	if err != nil {
		return err
	}
	if err := nested.settle(ctx, nil); err != nil {
		return err
	}
	data, err := nested.local(nested.Params())
	if err != nil {
		return err
	}

	ids := make([]interface{}, len(data))
	for i, rec := range data {
		ids[i] = rec.ID()
	}

	l.mu.Lock()
	l.params.Add(ref, ids)
	if !l.params.Has(ref) {
		l.params[ref] = []interface{}{}
	}
	delete(l.params, key)
	l.mu.Unlock()

	l.log.Debugw("Resolved param", "param", key, "field", ref, "ids", len(ids))
	return nil
}

// fetch issues the request for the loader's params unless a similar
// request covers it. It returns the similarity entry registered for this
// loader, if any.
func (l *Loader) fetch(ctx context.Context) (*similar.Entry, error) {
	params := l.Params()
	full, partial := l.engine.similar.Find(l.model, params, l.rng)

	switch {
	case full != nil:
		l.log.Debugw("Reusing similar request", "params", map[string]interface{}(params))
		return nil, full.Flight.Wait(ctx)

	case partial != nil:
		entry := similar.NewEntry(l.model, params, l.rng)
		l.engine.similar.Add(entry)
		l.log.Debugw("Shrinking request", "params", map[string]interface{}(partial.Params))

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return l.request(gctx, partial.Params) })
		// The covering request may still be loading extra records.
		g.Go(func() error { return partial.Flight.Wait(gctx) })
		return entry, g.Wait()

	default:
		entry := similar.NewEntry(l.model, params, l.rng)
		l.engine.similar.Add(entry)
		return entry, l.request(ctx, params)
	}
}

// local reads the records matching params back from the store, expanding
// a calendar range like the request did.
func (l *Loader) local(params types.Params) ([]*schema.Record, error) {
	c, ok := l.engine.store.Loaded(l.model)
	if !ok {
		return []*schema.Record{}, nil
	}

	sets, err := similar.Decompose(params, l.calendar, l.rng)
	if err != nil {
		return nil, err
	}

	data := make([]*schema.Record, 0)
	for _, p := range sets {
		data = append(data, c.Find(p)...)
	}
	return data, nil
}

// filter keeps records matching every param by loose equality; a list
// param matches any of its values.
func (l *Loader) filter(data []*schema.Record, params types.Params) []*schema.Record {
	out := make([]*schema.Record, 0, len(data))
	for _, rec := range data {
		if l.match(rec, params) {
			out = append(out, rec)
		}
	}
	return out
}

func (l *Loader) match(rec *schema.Record, params types.Params) bool {
	for field, want := range params {
		got, err := l.engine.exec.Query(rec, field, query.Options{FetchRefID: true})
		if err != nil {
			l.log.Warnw("Cannot evaluate param", "param", field, "error", err)
			return false
		}
		if !anyEqual(got, want) {
			return false
		}
	}
	return true
}

// anyEqual reports whether some value of got equals some wanted value.
func anyEqual(got []interface{}, want interface{}) bool {
	values := types.List(want)
	if !types.IsList(want) {
		values = []interface{}{want}
	}
	for _, g := range got {
		for _, v := range values {
			if types.LooseEqual(v, g) {
				return true
			}
		}
	}
	return false
}

// splice stores rows fetched for the loader's model.
func (l *Loader) splice(rows []interface{}, mode collection.Mode) error {
	if len(rows) == 0 {
		return nil
	}
	c, err := l.engine.store.Collection(l.model)
	if err != nil {
		return err
	}
	_, err = c.Splice(rows, mode)
	return err
}
