package collection

// Layered is a stack of maps. Reads check the newest layer first and fall
// through to older ones; writes go to the newest layer. Fork pushes an empty
// layer and Free discards it again, restoring the previous view. The base
// layer is never discarded.
type Layered[K comparable, V any] struct {
	layers []map[K]V
}

// NewLayered creates a layered map holding only its base layer.
func NewLayered[K comparable, V any]() *Layered[K, V] {
	return &Layered[K, V]{layers: []map[K]V{make(map[K]V)}}
}

// Get returns the value visible for k.
func (l *Layered[K, V]) Get(k K) (V, bool) {
	for i := len(l.layers) - 1; i >= 0; i-- {
		if v, ok := l.layers[i][k]; ok {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// Set stores v under k in the newest layer.
func (l *Layered[K, V]) Set(k K, v V) {
	l.layers[len(l.layers)-1][k] = v
}

// Fork pushes a new empty layer.
func (l *Layered[K, V]) Fork() {
	l.layers = append(l.layers, make(map[K]V))
}

// Free discards the newest layer. It reports false when only the base layer
// is left.
func (l *Layered[K, V]) Free() bool {
	if len(l.layers) == 1 {
		return false
	}
	l.layers[len(l.layers)-1] = nil
	l.layers = l.layers[:len(l.layers)-1]
	return true
}

// Depth returns the number of forked layers above the base.
func (l *Layered[K, V]) Depth() int {
	return len(l.layers) - 1
}

// Range calls fn for every visible entry; newer layers shadow older ones.
// Iteration stops when fn returns false.
func (l *Layered[K, V]) Range(fn func(K, V) bool) {
	seen := make(map[K]bool)
	for i := len(l.layers) - 1; i >= 0; i-- {
		for k, v := range l.layers[i] {
			if seen[k] {
				continue
			}
			seen[k] = true
			if !fn(k, v) {
				return
			}
		}
	}
}

// Reset drops every layer and leaves an empty base.
func (l *Layered[K, V]) Reset() {
	l.layers = []map[K]V{make(map[K]V)}
}
