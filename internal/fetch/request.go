package fetch

import (
	"context"
	"fmt"

	"github.com/dbsmedya/gofetch/internal/collection"
	"github.com/dbsmedya/gofetch/internal/similar"
	"github.com/dbsmedya/gofetch/internal/types"
)

// request shapes params into a transport request and stores the rows.
// Identities already in the store are not requested again. A param left
// with an empty list selects nothing, so no request is sent.
func (l *Loader) request(ctx context.Context, params types.Params) error {
	params = params.Clone()

	if ids, ok := params["id"]; ok {
		if c, loaded := l.engine.store.Loaded(l.model); loaded {
			var missing []interface{}
			for _, id := range types.List(ids) {
				if c.FindID(id) == nil {
					missing = append(missing, id)
				}
			}
			if missing == nil {
				missing = []interface{}{}
			}
			params["id"] = missing
		}
	}

	for k, v := range params {
		if types.IsList(v) && len(types.List(v)) == 0 {
			l.log.Debugw("Nothing to request", "param", k)
			return nil
		}
	}

	sets, err := similar.Decompose(params, l.calendar, l.rng)
	if err != nil {
		return err
	}
	if len(sets) == 0 {
		return nil
	}

	req := &Request{Model: l.model, Params: sets}
	if l.rng != nil && l.edges != nil {
		req.Edges = l.edges
		req.Range = l.rng
	}

	l.log.Debugw("Requesting", "sets", len(sets), "ranged", req.Range != nil)

	rows, err := l.engine.transport.Request(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", l.model, err)
	}
	return l.splice(rows, collection.Merge)
}
