// Package index implements the compound-key record index used by
// collections.
package index

import (
	"strings"

	"github.com/dbsmedya/gofetch/internal/schema"
	"github.com/dbsmedya/gofetch/internal/types"
)

// DefaultChunk bounds how many records are copied at once when assembling a
// selection.
const DefaultChunk = 256 * 256

// KeySeparator joins key paths in an index name.
const KeySeparator = "-"

// KeyFunc evaluates one key path on a record.
type KeyFunc func(rec *schema.Record, key string) interface{}

// Options configure an index.
type Options struct {
	// Chunk is the copy chunk size, DefaultChunk when zero.
	Chunk int
	// Order reorders key paths in place before the index is built.
	Order func(keys []string)
}

type node struct {
	next   map[string]*node
	bucket []*schema.Record
}

func (n *node) child(k string, create bool) *node {
	c := n.next[k]
	if c == nil && create {
		if n.next == nil {
			n.next = make(map[string]*node)
		}
		c = &node{}
		n.next[k] = c
	}
	return c
}

// Index maps the values of successive key paths to buckets of records. It is
// not safe for concurrent use; collections guard it with their store lock.
type Index struct {
	keys  []string
	keyFn KeyFunc
	chunk int
	root  *node
	where map[*schema.Record][]string
}

// New creates an empty index over key paths. No key paths yields the index
// of all records.
func New(keys []string, fn KeyFunc, opts Options) *Index {
	keys = append([]string(nil), keys...)
	if len(keys) == 0 {
		keys = []string{""}
	}
	if opts.Order != nil {
		opts.Order(keys)
	}
	if opts.Chunk <= 0 {
		opts.Chunk = DefaultChunk
	}
	return &Index{
		keys:  keys,
		keyFn: fn,
		chunk: opts.Chunk,
		root:  &node{},
		where: make(map[*schema.Record][]string),
	}
}

// Keys returns the key paths in index order.
func (i *Index) Keys() []string {
	return append([]string(nil), i.keys...)
}

// Name returns the key paths joined with KeySeparator.
func (i *Index) Name() string {
	return strings.Join(i.keys, KeySeparator)
}

// Len returns the number of registered records.
func (i *Index) Len() int {
	return len(i.where)
}

func (i *Index) path(rec *schema.Record) []string {
	path := make([]string, len(i.keys))
	for n, k := range i.keys {
		if k != "" {
			path[n] = types.Key(i.keyFn(rec, k))
		}
	}
	return path
}

// Register adds rec to the bucket addressed by its key values. A record
// already registered is moved to its current bucket.
func (i *Index) Register(rec *schema.Record) {
	if _, ok := i.where[rec]; ok {
		i.Unregister(rec)
	}

	path := i.path(rec)
	n := i.root
	for _, k := range path {
		n = n.child(k, true)
	}
	n.bucket = append(n.bucket, rec)
	i.where[rec] = path
}

// Unregister removes rec from the bucket it was registered in.
func (i *Index) Unregister(rec *schema.Record) {
	path, ok := i.where[rec]
	if !ok {
		return
	}
	delete(i.where, rec)

	trail := make([]*node, 0, len(path)+1)
	n := i.root
	trail = append(trail, n)
	for _, k := range path {
		if n = n.child(k, false); n == nil {
			return
		}
		trail = append(trail, n)
	}

	for j, r := range n.bucket {
		if r == rec {
			n.bucket = append(n.bucket[:j:j], n.bucket[j+1:]...)
			break
		}
	}

	// Prune empty levels bottom-up.
	for d := len(path); d > 0; d-- {
		c := trail[d]
		if len(c.bucket) > 0 || len(c.next) > 0 {
			break
		}
		delete(trail[d-1].next, path[d-1])
	}
}

// Records returns a copy of the bucket addressed by scalar params, or nil.
func (i *Index) Records(params types.Params) []*schema.Record {
	n := i.root
	for _, k := range i.keys {
		var key string
		if k != "" {
			key = types.Key(params[k])
		}
		if n = n.child(key, false); n == nil {
			return nil
		}
	}
	if len(n.bucket) == 0 {
		return nil
	}
	return append([]*schema.Record(nil), n.bucket...)
}

// Select appends to buffer every record matching params. A list param
// expands into one selection per element; results are concatenated without
// de-duplication.
func (i *Index) Select(params types.Params, buffer []*schema.Record) []*schema.Record {
	for _, k := range i.keys {
		v, ok := params[k]
		if !ok || !types.IsList(v) {
			continue
		}
		plain := params.Clone()
		for _, item := range types.List(v) {
			plain[k] = item
			buffer = i.Select(plain, buffer)
		}
		return buffer
	}

	n := i.root
	for _, k := range i.keys {
		var key string
		if k != "" {
			key = types.Key(params[k])
		}
		if n = n.child(key, false); n == nil {
			return buffer
		}
	}

	for start := 0; start < len(n.bucket); start += i.chunk {
		end := start + i.chunk
		if end > len(n.bucket) {
			end = len(n.bucket)
		}
		buffer = append(buffer, n.bucket[start:end]...)
	}
	return buffer
}

// Contains reports whether the first-level bucket for value is non-empty.
func (i *Index) Contains(value interface{}) bool {
	n := i.root.child(types.Key(value), false)
	return n != nil && len(n.bucket) > 0
}
