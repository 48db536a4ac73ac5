package fetch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/dbsmedya/gofetch/internal/logger"
	"github.com/dbsmedya/gofetch/internal/schema"
	"github.com/dbsmedya/gofetch/internal/types"
)

// AbortReason tells why a fetch tree stopped.
type AbortReason int

const (
	// NotAborted lets the tree continue.
	NotAborted AbortReason = iota
	// Superseded means a newer generation of the same request took over.
	Superseded
	// Destroyed means the consumer went away.
	Destroyed
)

func (r AbortReason) String() string {
	switch r {
	case NotAborted:
		return "not-aborted"
	case Superseded:
		return "superseded"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// AbortFunc is polled before a node loads and before it cascades.
type AbortFunc func() AbortReason

// State is the progress of one node.
type State int

// Node states in pipeline order.
const (
	StateCreated State = iota
	StateLoading
	StateFiltered
	StateRangeRestricted
	StateRangeExpanded
	StateCascading
	StateResolved
	StateAborted
	StateFailed
)

var stateNames = [...]string{
	"created", "loading", "filtered", "range-restricted",
	"range-expanded", "cascading", "resolved", "aborted", "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// ExpeditorOptions describe a root fetch node.
type ExpeditorOptions struct {
	Model   string
	Fields  []string
	Params  types.Params
	Range   *types.Range
	Aborted AbortFunc
	// Name tags every node of the tree, e.g. with the requesting view.
	Name string
}

// child-only attributes set by cascade.
type spawnOptions struct {
	ExpeditorOptions
	field    string
	nullable bool
	index    string
	inversed []string
}

// Expeditor is one node of a fetch tree: a model, the params and fields
// requested for it, and the children its dependent fields spawned.
type Expeditor struct {
	engine *Engine
	schema *schema.Schema
	model  string
	parent *Expeditor

	params   types.Params
	rng      *types.Range
	calendar []string
	edges    []string

	field    string
	nullable bool
	index    string
	inversed []string
	name     string
	aborted  AbortFunc

	log *logger.Logger

	mu       sync.Mutex
	fields   []string
	state    State
	expanded *types.Range
	data     []*schema.Record
	children *orderedmap.OrderedMap[string, *Expeditor]
	previous []*Expeditor
}

func newExpeditor(e *Engine, opts ExpeditorOptions, parent *Expeditor) (*Expeditor, error) {
	return build(e, spawnOptions{ExpeditorOptions: opts}, parent)
}

func build(e *Engine, opts spawnOptions, parent *Expeditor) (*Expeditor, error) {
	s, ok := e.registry.Lookup(opts.Model)
	if !ok {
		return nil, fmt.Errorf("model %q is not registered", opts.Model)
	}

	x := &Expeditor{
		engine:   e,
		schema:   s,
		model:    s.Aka,
		parent:   parent,
		params:   make(types.Params),
		field:    opts.field,
		nullable: opts.nullable,
		index:    opts.index,
		inversed: opts.inversed,
		name:     opts.Name,
		aborted:  opts.Aborted,
		children: orderedmap.NewOrderedMap[string, *Expeditor](),
	}
	if x.index == "" {
		x.index = "id"
	}
	if x.inversed == nil {
		x.inversed = []string{"id"}
	}

	for _, f := range opts.Fields {
		x.addField(f)
	}
	for _, k := range opts.Params.Keys() {
		x.params.Add(k, opts.Params[k])
		if !x.params.Has(k) && types.IsList(opts.Params[k]) {
			x.params[k] = []interface{}{}
		}
	}

	x.log = e.log.WithModel(x.model).WithPath(strings.Join(x.Path(), "."))

	x.calendar, x.edges = s.Calendar(), s.Edges()
	if s.IsTimebased() {
		x.rng = opts.Range
		for p := parent; x.rng == nil && p != nil; p = p.parent {
			x.rng = p.rng
		}
		if x.rng == nil && len(x.params) == 0 {
			return nil, fmt.Errorf("%s: %w", x.model, ErrTimebased)
		}
	}

	return x, nil
}

// spawn creates a child inheriting the abort predicate, name and expanded
// range of x.
func (x *Expeditor) spawn(opts spawnOptions) (*Expeditor, error) {
	opts.Aborted = x.aborted
	opts.Name = x.name
	opts.Range = x.Expanded()
	return build(x.engine, opts, x)
}

func (x *Expeditor) addField(f string) {
	if f == "" {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, have := range x.fields {
		if have == f {
			return
		}
	}
	x.fields = append(x.fields, f)
}

// Model returns the alternate name of the node's model.
func (x *Expeditor) Model() string { return x.model }

// Schema returns the node's model.
func (x *Expeditor) Schema() *schema.Schema { return x.schema }

// Params returns a copy of the requested params.
func (x *Expeditor) Params() types.Params { return x.params.Clone() }

// Fields returns the dependent field expressions.
func (x *Expeditor) Fields() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]string(nil), x.fields...)
}

// Range returns the inherited range, nil for models without time fields.
func (x *Expeditor) Range() *types.Range { return x.rng }

// Expanded returns the range widened to the edges of the loaded data.
func (x *Expeditor) Expanded() *types.Range {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.expanded
}

// Field returns the parent field this node was spawned for.
func (x *Expeditor) Field() string { return x.field }

// Index returns the key on this model the node's params address.
func (x *Expeditor) Index() string { return x.index }

// Nullable reports whether the spawning field was marked nullable.
func (x *Expeditor) Nullable() bool { return x.nullable }

// Inversed returns the field names leading back to the root, nearest first.
func (x *Expeditor) Inversed() []string { return append([]string(nil), x.inversed...) }

// Name returns the tree tag.
func (x *Expeditor) Name() string { return x.name }

// Parent returns the spawning node, nil at the root.
func (x *Expeditor) Parent() *Expeditor { return x.parent }

// IsRoot reports whether x has no parent.
func (x *Expeditor) IsRoot() bool { return x.parent == nil }

// Root returns the top node of the tree.
func (x *Expeditor) Root() *Expeditor {
	r := x
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Path returns the fields leading from the root to x.
func (x *Expeditor) Path() []string {
	var path []string
	for n := x; n.parent != nil; n = n.parent {
		path = append([]string{n.field}, path...)
	}
	return path
}

// State returns the pipeline state.
func (x *Expeditor) State() State {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.state
}

func (x *Expeditor) setState(s State) {
	x.mu.Lock()
	x.state = s
	x.mu.Unlock()
}

// Data returns the records x resolved. A root holds them from the start
// of its cascade.
func (x *Expeditor) Data() []*schema.Record {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.data
}

func (x *Expeditor) setData(data []*schema.Record) {
	x.mu.Lock()
	x.data = data
	x.mu.Unlock()
}

// Children returns the nodes spawned by the latest cascade, in spawn order.
func (x *Expeditor) Children() []*Expeditor {
	x.mu.Lock()
	defer x.mu.Unlock()

	out := make([]*Expeditor, 0, x.children.Len())
	for el := x.children.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value)
	}
	return out
}

// Previous returns the children replaced by the latest cascade.
func (x *Expeditor) Previous() []*Expeditor {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]*Expeditor(nil), x.previous...)
}

func (x *Expeditor) abortReason(ctx context.Context) AbortReason {
	if ctx.Err() != nil {
		return Destroyed
	}
	if x.aborted == nil {
		return NotAborted
	}
	return x.aborted()
}

func (x *Expeditor) abort(reason AbortReason) []*schema.Record {
	x.setState(StateAborted)
	x.log.Debugw("Fetch aborted", "reason", reason.String())
	return []*schema.Record{}
}

func (x *Expeditor) fail(err error) error {
	x.setState(StateFailed)
	x.log.Debugw("Fetch failed", "error", err)
	return err
}

// Sequent runs the node pipeline: load, drop extra records at the root,
// restrict to the range, expand the range and, at the root, cascade the
// dependent fields. data, when given, replaces the remote fetch.
// An aborted node returns an empty result without error.
func (x *Expeditor) Sequent(ctx context.Context, data []*schema.Record) ([]*schema.Record, error) {
	if reason := x.abortReason(ctx); reason != NotAborted {
		return x.abort(reason), nil
	}

	x.setState(StateLoading)
	data, err := x.load(ctx, data)
	if err != nil {
		return nil, x.fail(err)
	}

	data = x.filter(data)
	x.setState(StateFiltered)

	data = x.ranger(data)
	x.setState(StateRangeRestricted)

	if err := x.expand(data); err != nil {
		return nil, x.fail(err)
	}
	x.setState(StateRangeExpanded)

	if x.IsRoot() && len(x.Fields()) > 0 {
		if reason := x.abortReason(ctx); reason != NotAborted {
			return x.abort(reason), nil
		}
		x.setState(StateCascading)
		x.log.Debugw("Resolving dependencies", "fields", x.Fields())
		x.setData(data)
		if err := x.engine.cascade(ctx, data, x.Fields(), x); err != nil {
			return nil, x.fail(err)
		}
	}

	x.setData(data)
	x.setState(StateResolved)
	return data, nil
}

func (x *Expeditor) load(ctx context.Context, data []*schema.Record) ([]*schema.Record, error) {
	x.log.Debugw("Loading", "params", map[string]interface{}(x.params))

	l, err := x.engine.NewLoader(x.model, x.params, x.rng)
	if err != nil {
		return nil, err
	}
	return l.Load(ctx, x, data)
}

// filter drops reference-only records from root results.
func (x *Expeditor) filter(data []*schema.Record) []*schema.Record {
	if !x.IsRoot() {
		return data
	}
	out := make([]*schema.Record, 0, len(data))
	for _, rec := range data {
		if !rec.IsExtra() {
			out = append(out, rec)
		}
	}
	return out
}

func (x *Expeditor) isRanged() bool {
	return x.rng != nil && x.edges != nil
}

// ranger keeps records whose [begin, end] interval intersects the range.
// A missing bound is unbounded.
func (x *Expeditor) ranger(data []*schema.Record) []*schema.Record {
	if !x.isRanged() {
		return data
	}
	out := make([]*schema.Record, 0, len(data))
	for _, rec := range data {
		begin, end := rec.Value(x.edges[0]), rec.Value(x.edges[1])
		if (!types.Truthy(begin) || types.Compare(begin, x.rng.Max) <= 0) &&
			(!types.Truthy(end) || types.Compare(x.rng.Min, end) <= 0) {
			out = append(out, rec)
		}
	}
	return out
}

// expand widens the range once to the smallest begin and largest end
// present in data.
func (x *Expeditor) expand(data []*schema.Record) error {
	if !x.isRanged() || x.Expanded() != nil {
		return nil
	}

	lo, ok := extreme(data, x.edges[0], x.rng.Min, -1)
	if !ok {
		return fmt.Errorf("%s: %w", x.model, ErrExpandRange)
	}
	hi, ok := extreme(data, x.edges[1], x.rng.Max, 1)
	if !ok {
		return fmt.Errorf("%s: %w", x.model, ErrExpandRange)
	}

	x.mu.Lock()
	x.expanded = &types.Range{Min: lo, Max: hi}
	x.mu.Unlock()
	return nil
}

func extreme(data []*schema.Record, field string, bound interface{}, sign int) (interface{}, bool) {
	var best interface{}
	found := false
	consider := func(v interface{}) {
		if !types.Truthy(v) {
			return
		}
		if !found || types.Compare(v, best)*sign > 0 {
			best, found = v, true
		}
	}

	consider(bound)
	for _, rec := range data {
		consider(rec.Value(field))
	}
	return best, found
}

// resetChildren starts a new child set, remembering the current one.
func (x *Expeditor) resetChildren() {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.children.Len() > 0 {
		x.previous = x.previous[:0:0]
		for el := x.children.Front(); el != nil; el = el.Next() {
			x.previous = append(x.previous, el.Value)
		}
	}
	x.children = orderedmap.NewOrderedMap[string, *Expeditor]()
}

func (x *Expeditor) child(key string) (*Expeditor, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.children.Get(key)
}

func (x *Expeditor) adopt(key string, c *Expeditor) {
	x.mu.Lock()
	x.children.Set(key, c)
	x.mu.Unlock()
}
