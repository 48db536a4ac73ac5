package query

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dbsmedya/gofetch/internal/logger"
	"github.com/dbsmedya/gofetch/internal/schema"
	"github.com/dbsmedya/gofetch/internal/types"
)

// Resolver looks up related records through the index named by a
// reference. ok is false when the target collection or index is not
// available at all; a missing bucket is (nil, true).
type Resolver interface {
	Related(info schema.RefInfo, value interface{}) (records []*schema.Record, ok bool)
}

// Options tune a single execution.
type Options struct {
	// FetchRefID collapses the terminal step to identities: a terminal
	// forward reference yields the raw foreign key, records yield their id.
	FetchRefID bool
}

// Executor evaluates parsed sequences against records, maps and scalars.
type Executor struct {
	parser   *Parser
	resolver Resolver
	log      *logger.Logger
}

// NewExecutor creates an executor resolving references through resolver.
func NewExecutor(parser *Parser, resolver Resolver, log *logger.Logger) *Executor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Executor{parser: parser, resolver: resolver, log: log}
}

// Parser returns the parser used by Query and Get.
func (e *Executor) Parser() *Parser {
	return e.parser
}

// Query parses expr and executes it against a single value.
func (e *Executor) Query(value interface{}, expr string, opts Options) ([]interface{}, error) {
	seq, err := e.parser.Parse(expr)
	if err != nil {
		return nil, err
	}
	return e.Execute([]interface{}{value}, seq, opts), nil
}

// Get resolves expr on value for display. Space-separated templates resolve
// every token starting with a letter and join the non-empty parts with a
// space; multi-valued results are joined with ", ". Terminal references
// yield identities.
func (e *Executor) Get(value interface{}, expr string) (interface{}, error) {
	if strings.Contains(expr, " ") {
		var parts []string
		for _, tok := range strings.Split(expr, " ") {
			if tok == "" {
				continue
			}
			if !unicode.IsLetter(rune(tok[0])) {
				parts = append(parts, tok)
				continue
			}
			v, err := e.Get(value, tok)
			if err != nil {
				return nil, err
			}
			if s := display(v); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " "), nil
	}

	values, err := e.Query(value, expr, Options{FetchRefID: true})
	if err != nil {
		return nil, err
	}

	switch len(values) {
	case 0:
		return nil, nil
	case 1:
		return values[0], nil
	}

	parts := make([]string, 0, len(values))
	for _, v := range values {
		if s := display(v); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", "), nil
}

func display(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Produce projects a record into a plain map of the given expressions.
// Unresolvable expressions map to nil.
func (e *Executor) Produce(value interface{}, fields []string) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		v, err := e.Get(value, f)
		if err != nil {
			e.log.Warnw("Cannot produce field", "field", f, "error", err)
		}
		out[f] = v
	}
	return out
}

// Execute runs seq over values. It never fails: unresolvable steps degrade
// to empty results and are logged.
func (e *Executor) Execute(values []interface{}, seq *Sequence, opts Options) []interface{} {
	for i := range seq.Steps {
		step := &seq.Steps[i]

		if step.Field != "" {
			values = e.doField(values, step, seq, opts)
		}

		if len(step.Filters) > 0 {
			values = e.doFilter(values, step)
		}

		if step.Last && opts.FetchRefID && len(values) > 0 && hasID(values[0]) {
			ids := make([]interface{}, len(values))
			for j, v := range values {
				ids[j] = identity(v)
			}
			values = ids
		}

		if step.Selector != "" {
			fn, _ := e.parser.selectors.Get(step.Selector)
			values = types.List(fn(values))
			if values == nil {
				values = []interface{}{nil}
			}
		}
	}

	return values
}

func hasID(v interface{}) bool {
	switch t := v.(type) {
	case *schema.Record:
		return true
	case map[string]interface{}:
		_, ok := t["id"]
		return ok
	}
	return false
}

func identity(v interface{}) interface{} {
	switch t := v.(type) {
	case *schema.Record:
		return t.ID()
	case map[string]interface{}:
		return t["id"]
	}
	return v
}

func (e *Executor) doField(values []interface{}, step *Step, seq *Sequence, opts Options) []interface{} {
	next := make([]interface{}, 0, len(values))

	for _, value := range values {
		var result interface{}

		switch v := value.(type) {
		case *schema.Record:
			var ok bool
			result, ok = e.field(v, step, seq, opts)
			if !ok {
				continue
			}
		case map[string]interface{}:
			r, ok := v[step.Field]
			if !ok || r == nil {
				continue
			}
			result = r
		default:
			continue
		}

		switch r := result.(type) {
		case []*schema.Record:
			for _, rec := range r {
				next = append(next, rec)
			}
		case []interface{}:
			next = append(next, r...)
		default:
			next = append(next, r)
		}
	}

	return next
}

// field evaluates one step on a record. ok is false when the step yields
// nothing for the record.
func (e *Executor) field(rec *schema.Record, step *Step, seq *Sequence, opts Options) (interface{}, bool) {
	s := rec.Schema()

	if c, ok := s.Computed(step.Field); ok {
		return c.Fn(rec, step.Args), true
	}

	info := s.Info(step.Field)
	if info.IsReference() {
		value := rec.Value(info.Field)

		if step.Last && opts.FetchRefID && info.Field == step.Field && len(step.Filters) == 0 {
			return value, true
		}
		if value == nil || (types.IsNumber(value) && !types.Truthy(value)) {
			return nil, false
		}
		if e.resolver == nil {
			return nil, false
		}

		related, ok := e.resolver.Related(info, value)
		if !ok {
			e.log.WithQuery(seq.Query).WithModel(s.Aka).
				Warnw("Record has no loaded reference", "reference", info.Model)
			return nil, false
		}
		if related == nil {
			return nil, false
		}
		return related, true
	}

	value, declared := rec.Lookup(step.Field)
	if !declared {
		if !step.Last {
			e.log.WithQuery(seq.Query).WithModel(s.Aka).
				Warnw("Record has no reference", "field", step.Field)
		}
		return nil, false
	}
	if info.Type == schema.TypeAuto && value == nil {
		return nil, false
	}
	return value, true
}

func (e *Executor) doFilter(values []interface{}, step *Step) []interface{} {
	out := values[:0:0]
	for _, v := range values {
		if e.match(v, step.Filters) {
			out = append(out, v)
		}
	}
	return out
}

func (e *Executor) match(value interface{}, clauses []Clause) bool {
	for _, c := range clauses {
		if !c.Match(e.lookup(value, c.Field)) {
			return false
		}
	}
	return true
}

// lookup reads a filter field off a value.
func (e *Executor) lookup(value interface{}, field string) interface{} {
	switch v := value.(type) {
	case *schema.Record:
		got, err := e.Get(v, field)
		if err != nil {
			e.log.Warnw("Cannot evaluate filter field", "field", field, "error", err)
			return nil
		}
		return got
	case map[string]interface{}:
		return v[field]
	}
	return nil
}

// Match reports whether v satisfies the clause.
func (c Clause) Match(v interface{}) bool {
	switch c.Op {
	case OpEq, OpNe:
		var r bool
		if c.Between != nil {
			r = v != nil && types.Compare(c.Between[0], v) <= 0 && types.Compare(v, c.Between[1]) <= 0
		} else {
			for _, item := range c.List {
				if types.LooseEqual(item, v) {
					r = true
					break
				}
			}
		}
		return r != (c.Op == OpNe)
	}

	if v == nil {
		return false
	}
	cmp := types.Compare(v, c.Value)
	switch c.Op {
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	}
	return false
}
