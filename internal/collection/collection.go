package collection

import (
	"strings"
	"time"

	"github.com/dbsmedya/gofetch/internal/index"
	"github.com/dbsmedya/gofetch/internal/schema"
	"github.com/dbsmedya/gofetch/internal/types"
)

// Mode selects how Splice treats its input.
type Mode int

const (
	// Merge inserts or updates records and marks them permanent.
	Merge Mode = iota
	// Extra inserts or updates records loaded only to satisfy references.
	// Records already permanent stay permanent.
	Extra
	// Remove drops the matching records.
	Remove
)

func (m Mode) String() string {
	switch m {
	case Merge:
		return "merge"
	case Extra:
		return "extra"
	case Remove:
		return "remove"
	default:
		return "unknown"
	}
}

// Collection is the authoritative record set of one model.
type Collection struct {
	store   *Store
	schema  *schema.Schema
	indexes map[string]*index.Index
}

func newCollection(store *Store, s *schema.Schema) *Collection {
	c := &Collection{
		store:   store,
		schema:  s,
		indexes: make(map[string]*index.Index),
	}
	c.index()
	return c
}

// Schema returns the model of the collection.
func (c *Collection) Schema() *schema.Schema {
	return c.schema
}

// index returns the index over keys, building and populating it on first
// use. Indexes over keys that do not start with an own field follow
// one-to-many relations and are returned without being cached.
// Called with the store lock held.
func (c *Collection) index(keys ...string) *index.Index {
	name := strings.Join(keys, index.KeySeparator)
	if idx, ok := c.indexes[name]; ok {
		return idx
	}

	if len(keys) == 1 && strings.Contains(name, index.KeySeparator) {
		keys = strings.Split(name, index.KeySeparator)
	}
	idx := c.store.newIndex(keys)

	if name != "" {
		start := time.Now()
		if all, ok := c.indexes[""]; ok {
			for _, rec := range all.Select(nil, nil) {
				idx.Register(rec)
			}
		}
		c.store.log.Debugw("Created index",
			"model", c.schema.Aka, "keys", name, "records", idx.Len(), "duration", time.Since(start))
	}

	if c.oneTime(keys) {
		c.store.log.Debugw("One-time index", "model", c.schema.Aka, "keys", name)
		return idx
	}

	c.indexes[name] = idx
	return idx
}

func (c *Collection) oneTime(keys []string) bool {
	for _, k := range keys {
		if k == "" || k == "id" {
			continue
		}
		seq, err := c.store.inner.Parser().Parse(k)
		if err != nil {
			return true
		}
		for _, st := range seq.Steps {
			if st.Field == "" {
				continue
			}
			if !c.schema.HasField(st.Field) {
				return true
			}
			break
		}
	}
	return false
}

// Splice inserts, merges or removes rows. Rows may be tuples, objects or
// records. A row matching an existing record by identity is merged into it
// in place, so the returned slice holds the stored instances.
func (c *Collection) Splice(rows []interface{}, mode Mode) ([]*schema.Record, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	start := time.Now()
	origin := c.index(c.schema.Origin())
	out := make([]*schema.Record, 0, len(rows))

	for _, row := range rows {
		rec, err := schema.NewRecord(c.schema, row)
		if err != nil {
			return out, err
		}

		var exist *schema.Record
		if found := origin.Records(c.identity(origin, rec)); len(found) > 0 {
			exist = found[0]
		}

		if mode == Remove {
			if exist != nil {
				for _, idx := range c.indexes {
					idx.Unregister(exist)
				}
				out = append(out, exist)
			}
			continue
		}

		target := rec
		if exist != nil {
			if r, ok := row.(*schema.Record); !ok || r != exist {
				if m, ok := row.(map[string]interface{}); ok {
					err = exist.Merge(m)
				} else {
					err = exist.Merge(rec)
				}
				if err != nil {
					return out, err
				}
			}
			target = exist
		}

		switch {
		case mode == Merge:
			target.SetExtra(false)
		case exist == nil:
			target.SetExtra(true)
		}

		// Register moves a known record to the buckets of its new values.
		for _, idx := range c.indexes {
			idx.Register(target)
		}
		out = append(out, target)
	}

	c.store.log.Debugw("Spliced records",
		"model", c.schema.Aka, "mode", mode.String(), "records", len(out), "duration", time.Since(start))
	return out, nil
}

// identity builds the params addressing rec in the identity index.
func (c *Collection) identity(origin *index.Index, rec *schema.Record) types.Params {
	params := make(types.Params)
	for _, k := range origin.Keys() {
		params[k] = c.store.keyValue(rec, k)
	}
	return params
}

// Find selects records through the index over the param names. A scalar or
// list argument is shorthand for {"id": v}; nil selects everything.
func (c *Collection) Find(params interface{}) []*schema.Record {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	return c.find(params)
}

func (c *Collection) find(params interface{}) []*schema.Record {
	p := toParams(params)
	return c.index(p.Keys()...).Select(p, nil)
}

func toParams(params interface{}) types.Params {
	switch p := params.(type) {
	case nil:
		return types.Params{}
	case types.Params:
		return p
	case map[string]interface{}:
		return types.Params(p)
	default:
		return types.Params{"id": p}
	}
}

// FindID returns the record with the given identity, or nil.
func (c *Collection) FindID(id interface{}) *schema.Record {
	return c.FindOne(types.Params{"id": id})
}

// FindOne returns the first matching record, or nil.
func (c *Collection) FindOne(params interface{}) *schema.Record {
	if found := c.Find(params); len(found) > 0 {
		return found[0]
	}
	return nil
}

// FindOrFail returns the first matching record or a NotFoundError.
func (c *Collection) FindOrFail(params interface{}) (*schema.Record, error) {
	if rec := c.FindOne(params); rec != nil {
		return rec, nil
	}
	return nil, &NotFoundError{Model: c.schema.Aka, Params: toParams(params)}
}

// All returns every record in insertion order.
func (c *Collection) All() []*schema.Record {
	return c.Find(nil)
}

// Len returns the number of records.
func (c *Collection) Len() int {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	return c.indexes[""].Len()
}

// Contains reports whether some record has value under the key path.
func (c *Collection) Contains(key string, value interface{}) bool {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	return c.index(key).Contains(value)
}
