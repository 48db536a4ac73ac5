package fetch

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbsmedya/gofetch/internal/collection"
	"github.com/dbsmedya/gofetch/internal/query"
	"github.com/dbsmedya/gofetch/internal/schema"
	"github.com/dbsmedya/gofetch/internal/types"
)

// loadExtra fetches records a child node needs that its own request could
// not return, through the extra resolver and addressed by root identities.
// Each (root model, path, roots) combination is requested once.
func (e *Engine) loadExtra(ctx context.Context, x *Expeditor) error {
	if x.IsRoot() || x.nullable || e.extra == nil {
		return nil
	}

	ids, err := e.absent(x)
	if err != nil || len(ids) == 0 {
		return err
	}

	path := x.Path()
	if x.index != "id" {
		// Inverse children are addressed by their parent's identities.
		path = path[:len(path)-1]
	}
	expr := strings.Join(path, ".")

	root := x.Root()
	roots, err := e.rootsOf(root, expr, ids)
	if err != nil || len(roots) == 0 {
		return err
	}

	key := root.model + "/" + expr + "/" + types.Key(roots)
	if _, seen := e.extraSeen.Load(key); seen {
		return nil
	}

	_, err, shared := e.extraGroup.Do(key, func() (interface{}, error) {
		x.log.Debugw("Loading extra records", "roots", len(roots), "absent", len(ids))

		rows, err := e.extra.Extra(ctx, root.model, roots, expr, x.model)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch extra %s: %w", x.model, err)
		}
		if err := e.registerExtra(ctx, x, rows); err != nil {
			return nil, err
		}
		e.extraSeen.Store(key, struct{}{})
		return nil, nil
	})
	if shared {
		x.log.Debugw("Joined extra request in flight")
	}
	return err
}

// absent returns the values of the node's index param with no local record.
func (e *Engine) absent(x *Expeditor) ([]interface{}, error) {
	if e.hooks.Absent != nil {
		if ids := e.hooks.Absent(x); ids != nil {
			return ids, nil
		}
	}

	c, err := e.store.Collection(x.model)
	if err != nil {
		return nil, err
	}

	var ids []interface{}
	for _, v := range types.List(x.params[x.index]) {
		if !c.Contains(x.index, v) {
			ids = append(ids, v)
		}
	}
	return ids, nil
}

// rootsOf returns the identities of root records reaching any of ids
// through expr.
func (e *Engine) rootsOf(root *Expeditor, expr string, ids []interface{}) ([]interface{}, error) {
	var roots []interface{}
	for _, rec := range root.Data() {
		values := []interface{}{rec.ID()}
		if expr != "" {
			var err error
			if values, err = e.exec.Query(rec, expr, query.Options{FetchRefID: true}); err != nil {
				return nil, err
			}
		}
		if intersects(values, ids) {
			roots = append(roots, rec.ID())
		}
	}
	return roots, nil
}

func intersects(a, b []interface{}) bool {
	for _, v := range a {
		for _, w := range b {
			if types.LooseEqual(v, w) {
				return true
			}
		}
	}
	return false
}

// registerExtra stores extra rows. Rows reached by identity are always
// reference-only. Rows reached through an inverse reference are stored only
// when classification is enabled: valid rows as regular records, invalid
// ones as reference-only.
func (e *Engine) registerExtra(ctx context.Context, x *Expeditor, rows []interface{}) error {
	if len(rows) == 0 {
		return nil
	}

	c, err := e.store.Collection(x.model)
	if err != nil {
		return err
	}

	if x.index == "id" {
		_, err := c.Splice(rows, collection.Extra)
		return err
	}

	if !e.hooks.ClassifyExtra || e.classifier == nil {
		x.log.Debugw("Skipping unclassified extra records", "records", len(rows))
		return nil
	}

	byID := make(map[string]interface{}, len(rows))
	ids := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		rec, err := schema.NewRecord(x.schema, row)
		if err != nil {
			return err
		}
		byID[types.Key(rec.ID())] = row
		ids = append(ids, rec.ID())
	}

	cls, err := e.classifier.Classify(ctx, x.model, ids)
	if err != nil {
		return fmt.Errorf("failed to classify %s: %w", x.model, err)
	}

	pick := func(ids []interface{}) []interface{} {
		out := make([]interface{}, 0, len(ids))
		for _, id := range ids {
			if row, ok := byID[types.Key(id)]; ok {
				out = append(out, row)
			}
		}
		return out
	}

	if _, err := c.Splice(pick(cls.Valid), collection.Merge); err != nil {
		return err
	}
	_, err = c.Splice(pick(cls.Invalid), collection.Extra)
	return err
}
