package query

import (
	"sync"

	"github.com/dbsmedya/gofetch/internal/types"
)

// SelectorFunc reduces the current value set of a query step.
type SelectorFunc func(values []interface{}) interface{}

// Selectors is the registry of named aggregations usable as {name}.
type Selectors struct {
	mu    sync.RWMutex
	funcs map[string]SelectorFunc
}

// NewSelectors returns the built-in selectors extended by custom ones.
// Custom selectors replace built-ins of the same name.
func NewSelectors(custom map[string]SelectorFunc) *Selectors {
	s := &Selectors{funcs: map[string]SelectorFunc{
		"first":  first,
		"last":   last,
		"min":    func(v []interface{}) interface{} { return extreme(v, -1) },
		"max":    func(v []interface{}) interface{} { return extreme(v, 1) },
		"sum":    sum,
		"avg":    avg,
		"count":  count,
		"uniq":   uniq,
		"unique": uniq,
	}}
	for name, fn := range custom {
		s.funcs[name] = fn
	}
	return s
}

// Register adds or replaces a selector.
func (s *Selectors) Register(name string, fn SelectorFunc) {
	s.mu.Lock()
	s.funcs[name] = fn
	s.mu.Unlock()
}

// Has reports whether a selector is registered.
func (s *Selectors) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Get returns the selector registered under name.
func (s *Selectors) Get(name string) (SelectorFunc, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.funcs[name]
	return fn, ok
}

func first(values []interface{}) interface{} {
	if len(values) == 0 {
		return nil
	}
	return values[0]
}

func last(values []interface{}) interface{} {
	if len(values) == 0 {
		return nil
	}
	return values[len(values)-1]
}

func extreme(values []interface{}, sign int) interface{} {
	if len(values) == 0 {
		return nil
	}
	best := values[0]
	for _, v := range values[1:] {
		if types.Compare(v, best)*sign > 0 {
			best = v
		}
	}
	return best
}

func sum(values []interface{}) interface{} {
	if len(values) == 0 {
		return nil
	}
	var total float64
	for _, v := range values {
		f, _ := types.ToFloat64(v)
		total += f
	}
	return total
}

func avg(values []interface{}) interface{} {
	if len(values) == 0 {
		return nil
	}
	return sum(values).(float64) / float64(len(values))
}

func count(values []interface{}) interface{} {
	if len(values) == 0 {
		return nil
	}
	return len(values)
}

func uniq(values []interface{}) interface{} {
	seen := make(map[string]bool, len(values))
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		k := types.Key(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}
