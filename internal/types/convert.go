package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ToInt64 converts an interface{} to int64.
// Supports all integer kinds, float32/float64 and numeric strings.
func ToInt64(v interface{}) int64 {
	switch i := v.(type) {
	case int64:
		return i
	case int:
		return int64(i)
	case int32:
		return int64(i)
	case int16:
		return int64(i)
	case int8:
		return int64(i)
	case uint:
		return int64(i)
	case uint64:
		return int64(i)
	case uint32:
		return int64(i)
	case uint16:
		return int64(i)
	case uint8:
		return int64(i)
	case float64:
		return int64(i)
	case float32:
		return int64(i)
	case string:
		if f, ok := ToFloat64(i); ok {
			return int64(f)
		}
		return 0
	default:
		return 0
	}
}

// ToFloat64 converts numeric values and numeric strings to float64.
// The second return value is false when v has no numeric interpretation.
func ToFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return float64(ToInt64(n)), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case []byte:
		return ToFloat64(string(n))
	default:
		return 0, false
	}
}

// IsNumber reports whether v holds a Go numeric kind (strings excluded).
func IsNumber(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// Key renders a scalar as the string used to address index buckets and
// de-duplicate values. Numerically equal values share a key regardless of
// their Go type, so 7, int64(7), 7.0 and "7" all map to "7".
func Key(v interface{}) string {
	switch k := v.(type) {
	case nil:
		return "null"
	case string:
		return k
	case []byte:
		return string(k)
	case bool:
		return strconv.FormatBool(k)
	case float64:
		return formatFloat(k)
	case float32:
		return formatFloat(float64(k))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return strconv.FormatInt(ToInt64(k), 10)
	case []interface{}:
		parts := make([]string, len(k))
		for i, p := range k {
			parts[i] = Key(p)
		}
		return strings.Join(parts, ",")
	case fmt.Stringer:
		return k.String()
	default:
		return fmt.Sprint(k)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Truthy reports whether v counts as a present value: nil, false, zero,
// NaN and the empty string do not.
func Truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	case float32:
		return t != 0
	default:
		if IsNumber(v) {
			return ToInt64(v) != 0
		}
		return true
	}
}

// LooseEqual compares two scalars the way parameter values are matched:
// numbers compare numerically with numeric strings, everything else by key.
func LooseEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if IsNumber(a) || IsNumber(b) {
		fa, oka := ToFloat64(a)
		fb, okb := ToFloat64(b)
		if oka && okb {
			return fa == fb
		}
		return false
	}
	return Key(a) == Key(b)
}

// Compare orders two scalars. When either side is a number and both have a
// numeric reading the comparison is numeric; otherwise keys are compared
// lexicographically. nil orders as zero against numbers and as "" otherwise.
func Compare(a, b interface{}) int {
	if IsNumber(a) || IsNumber(b) {
		fa, oka := numeric(a)
		fb, okb := numeric(b)
		if oka && okb {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	ka, kb := "", ""
	if a != nil {
		ka = Key(a)
	}
	if b != nil {
		kb = Key(b)
	}
	return strings.Compare(ka, kb)
}

func numeric(v interface{}) (float64, bool) {
	if v == nil {
		return 0, true
	}
	return ToFloat64(v)
}
