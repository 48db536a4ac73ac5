package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dbsmedya/gofetch/internal/types"
)

// parseParams turns repeated key=value flags into a parameter bag. A comma
// separated value becomes a list; repeated keys are merged.
func parseParams(pairs []string) (types.Params, error) {
	params := types.Params{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q: expected key=value", pair)
		}
		if strings.Contains(raw, ",") {
			var list []interface{}
			for _, part := range strings.Split(raw, ",") {
				list = append(list, parseValue(part))
			}
			params.Add(key, list)
			continue
		}
		params.Add(key, parseValue(raw))
	}
	return params, nil
}

// parseValue reads integers as int64 and leaves anything else a string.
func parseValue(raw string) interface{} {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}

// parseRange builds a range from the --min/--max flags; nil when both are empty.
func parseRange(min, max string) (*types.Range, error) {
	if min == "" && max == "" {
		return nil, nil
	}
	if min == "" || max == "" {
		return nil, fmt.Errorf("both --min and --max are required for a range")
	}
	return &types.Range{Min: parseValue(min), Max: parseValue(max)}, nil
}

// formatParams renders a parameter bag as sorted key=value pairs.
func formatParams(p types.Params) string {
	parts := make([]string, 0, len(p))
	for _, k := range p.Keys() {
		parts = append(parts, k+"="+display(p[k]))
	}
	return strings.Join(parts, " ")
}
