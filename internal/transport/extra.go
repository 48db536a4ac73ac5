package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbsmedya/gofetch/internal/schema"
	"github.com/dbsmedya/gofetch/internal/sqlutil"
)

// Extra implements fetch.ExtraResolver. It follows path from the root
// identities table by table and returns the rows of model reached at the
// end: by identity when the path ends on model itself, otherwise through
// the field of model referencing the last table.
func (m *MySQL) Extra(ctx context.Context, rootModel string, ids []interface{}, path, model string) ([]interface{}, error) {
	cur, err := m.table(rootModel)
	if err != nil {
		return nil, err
	}
	values := ids

	if path != "" {
		for _, step := range strings.Split(path, ".") {
			if len(values) == 0 {
				return nil, nil
			}
			if cur, values, err = m.follow(ctx, cur, step, values); err != nil {
				return nil, err
			}
		}
	}

	target, err := m.table(model)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}

	key := "id"
	if target != cur {
		if key, values, err = m.backref(ctx, target, cur, values); err != nil {
			return nil, err
		}
	}

	col, err := target.column(key)
	if err != nil {
		return nil, err
	}

	var out []interface{}
	for i := 0; i < len(values); i += m.batchSize {
		end := i + m.batchSize
		if end > len(values) {
			end = len(values)
		}
		var w sqlutil.Where
		w.In(col, values[i:end])
		rows, err := m.selectRows(ctx, target, &w)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}

	m.log.Debugw("Fetched extra rows", "root", rootModel, "path", path, "model", model, "rows", len(out))
	return out, nil
}

// follow moves one reference step from the identities of cur to the
// identities of the referenced table.
func (m *MySQL) follow(ctx context.Context, cur *table, step string, ids []interface{}) (*table, []interface{}, error) {
	name, _, _ := strings.Cut(step, "(")
	info := cur.schema.Info(name)

	next, err := m.table(info.Model)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot follow %s.%s: %w", cur.schema.Name, name, err)
	}

	switch info.Kind {
	case schema.RefForward:
		keys, err := m.pluck(ctx, cur, "id", ids, info.Field)
		if err != nil {
			return nil, nil, err
		}
		if info.Index == "id" {
			return next, keys, nil
		}
		ids, err := m.pluck(ctx, next, info.Index, keys, "id")
		return next, ids, err

	case schema.RefInverse:
		keys := ids
		if info.Field != "id" {
			if keys, err = m.pluck(ctx, cur, "id", ids, info.Field); err != nil {
				return nil, nil, err
			}
		}
		ids, err := m.pluck(ctx, next, info.Inverse, keys, "id")
		return next, ids, err

	default:
		return nil, nil, fmt.Errorf("%s.%s is not a reference", cur.schema.Name, name)
	}
}

// backref finds the field of target referencing parent and returns it with
// the parent keys it matches.
func (m *MySQL) backref(ctx context.Context, target, parent *table, ids []interface{}) (string, []interface{}, error) {
	for _, f := range target.schema.Fields {
		if f.Reference == "" {
			continue
		}
		info := target.schema.Info(f.Name)
		if info.Target != parent.schema {
			continue
		}
		if info.Index == "id" {
			return f.Name, ids, nil
		}
		keys, err := m.pluck(ctx, parent, "id", ids, info.Index)
		return f.Name, keys, err
	}
	return "", nil, fmt.Errorf("%s has no reference to %s", target.schema.Name, parent.schema.Name)
}
