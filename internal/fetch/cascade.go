package fetch

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dbsmedya/gofetch/internal/query"
	"github.com/dbsmedya/gofetch/internal/schema"
	"github.com/dbsmedya/gofetch/internal/types"
)

// cascade routes the dependent fields of x over data into children, runs
// every child concurrently, then recurses into the children's own fields.
// Each tree level is resolved completely before the next one starts.
func (e *Engine) cascade(ctx context.Context, data []*schema.Record, fields []string, x *Expeditor) error {
	if len(data) == 0 || len(fields) == 0 {
		return nil
	}

	x.resetChildren()
	if err := e.collect(data, fields, x); err != nil {
		return err
	}

	children := x.Children()
	results := make([][]*schema.Record, len(children))

	g, gctx := errgroup.WithContext(ctx)
	for i, child := range children {
		i, child := i, child
		g.Go(func() error {
			res, err := child.Sequent(gctx, nil)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	g, gctx = errgroup.WithContext(ctx)
	for i, child := range children {
		i, child := i, child
		if fields := child.Fields(); len(fields) > 0 {
			g.Go(func() error {
				return e.cascade(gctx, results[i], fields, child)
			})
		}
	}
	return g.Wait()
}

// collect routes each field expression: references propagate to a child,
// computed fields expand into their dependent fields, own fields need
// nothing.
func (e *Engine) collect(data []*schema.Record, fields []string, x *Expeditor) error {
	s := x.schema
	parser := e.exec.Parser()

	for _, field := range fields {
		seq, err := parser.Parse(field)
		if err != nil {
			return err
		}

		idx := -1
		for i := range seq.Steps {
			if seq.Steps[i].Field != "" {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		step := &seq.Steps[idx]
		tail := seq.Tail(idx + 1)

		if e.hooks.Collect != nil && e.hooks.Collect(data, step, s, tail, x) {
			continue
		}

		if info := s.Info(step.Field); info.IsReference() {
			if err := e.propagate(data, step, info, tail, x); err != nil {
				return err
			}
			continue
		}

		if c, ok := s.Computed(step.Field); ok {
			if len(c.Fields) > 0 {
				expanded := schema.Single(c.Fields)
				x.log.Debugw("Expanding computed field", "field", step.Field, "fields", expanded)
				if err := e.collect(data, expanded, x); err != nil {
					return err
				}
			}
			continue
		}

		if !s.HasField(step.Field) {
			x.log.Warnw("Model has no property", "property", step.Field, "field", field)
		}
	}

	return nil
}

// propagate routes a reference step to the child keyed by target model,
// field and filters, so sibling expressions over the same relation share
// one fetch.
func (e *Engine) propagate(data []*schema.Record, step *query.Step, info schema.RefInfo, tail string, x *Expeditor) error {
	filters := make([]string, len(step.Filters))
	for i, c := range step.Filters {
		filters[i] = c.String()
	}
	key := info.Model + "|" + step.Field + "|" + strings.Join(filters, ",")

	child, ok := x.child(key)
	if !ok {
		var err error
		if child, err = e.spawn(data, step, info, x); err != nil {
			return err
		}
		x.adopt(key, child)
	}

	child.addField(tail)

	if e.hooks.Propagate != nil {
		e.hooks.Propagate(child)
	}
	return nil
}

// spawn creates the child fetching the records data references through
// info. Equality filters become params, other filters become fields.
func (e *Engine) spawn(data []*schema.Record, step *query.Step, info schema.RefInfo, x *Expeditor) (*Expeditor, error) {
	params := make(types.Params)
	values := make([]interface{}, 0, len(data))
	for _, rec := range data {
		values = append(values, rec.Value(info.Field))
	}
	params.Add(info.Index, values)
	if !params.Has(info.Index) {
		// Nothing to follow: an empty list never dispatches.
		params[info.Index] = []interface{}{}
	}

	var fields []string
	for _, c := range step.Filters {
		if c.Op == query.OpEq && c.Between == nil {
			list := make([]interface{}, len(c.List))
			for i, v := range c.List {
				list[i] = v
			}
			params.Add(c.Field, list)
		} else {
			fields = append(fields, c.Field)
		}
	}

	if e.hooks.Spawn != nil {
		e.hooks.Spawn(params, info)
	}

	inverse := info.Inverse
	if inverse == "" {
		inverse = x.model
	}

	return x.spawn(spawnOptions{
		ExpeditorOptions: ExpeditorOptions{
			Model:  info.Model,
			Fields: fields,
			Params: params,
		},
		field:    step.Field,
		nullable: step.Nullable,
		index:    info.Index,
		inversed: append([]string{inverse}, x.inversed...),
	})
}
