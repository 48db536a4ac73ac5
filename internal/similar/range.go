package similar

import (
	"fmt"
	"time"

	"github.com/dbsmedya/gofetch/internal/types"
)

// Decompose splits a request over a calendar range into the fewest
// sub-requests aligned to whole years, months or days. names are the
// calendar fields of the model, coarsest first ("year", "month", "day");
// range bounds are numbers shaped like them (2020, 202011, 20201101).
//
// params are returned unchanged when there is no range, the model has no
// calendar fields, or params select by id.
func Decompose(params types.Params, names []string, rng *types.Range) ([]types.Params, error) {
	if rng == nil || len(names) == 0 || params.Has("id") {
		return []types.Params{params}, nil
	}
	if len(names) > 3 {
		return nil, fmt.Errorf("unsupported calendar names %v", names)
	}

	cursor, err := calendarDate(rng.Min, len(names))
	if err != nil {
		return nil, fmt.Errorf("range min: %w", err)
	}
	last, err := calendarDate(rng.Max, len(names))
	if err != nil {
		return nil, fmt.Errorf("range max: %w", err)
	}
	end := step(last, names[len(names)-1])

	var out []types.Params
	for {
		p := params.Clone()
		parts := map[string]int{
			"year":  cursor.Year(),
			"month": int(cursor.Month()),
			"day":   cursor.Day(),
		}

		span := ""
		for i, name := range names {
			p[name] = parts[name]
			if !aligned(parts, names[i+1:]) {
				continue
			}
			if next := step(cursor, name); !next.After(end) {
				span = name
				break
			}
		}
		if span == "" {
			return out, nil
		}

		out = append(out, p)
		cursor = step(cursor, span)
	}
}

func aligned(parts map[string]int, finer []string) bool {
	for _, f := range finer {
		if parts[f] != 1 {
			return false
		}
	}
	return true
}

func step(t time.Time, unit string) time.Time {
	switch unit {
	case "year":
		return t.AddDate(1, 0, 0)
	case "month":
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// calendarDate reads YYYY, YYYYMM or YYYYMMDD depending on depth.
func calendarDate(v interface{}, depth int) (time.Time, error) {
	f, ok := types.ToFloat64(v)
	if !ok {
		return time.Time{}, fmt.Errorf("%v is not a calendar value", v)
	}
	n := int(f)

	year, month, day := n, 1, 1
	switch depth {
	case 2:
		year, month = n/100, n%100
	case 3:
		year, month, day = n/10000, n/100%100, n%100
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalises overflow, so 20200231 would become March 2nd.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("%v is not a calendar value", v)
	}
	return t, nil
}
