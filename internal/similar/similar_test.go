package similar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gofetch/internal/types"
)

func TestFind_Range(t *testing.T) {
	tests := []struct {
		name      string
		candidate *types.Range
		request   *types.Range
		wantFull  bool
	}{
		{"same range", &types.Range{Min: 20201101, Max: 20201130}, &types.Range{Min: 20201101, Max: 20201130}, true},
		{"narrower request", &types.Range{Min: 20201101, Max: 20201130}, &types.Range{Min: 20201105, Max: 20201110}, true},
		{"wider request", &types.Range{Min: 20201101, Max: 20201130}, &types.Range{Min: 20201030, Max: 20201201}, false},
		{"candidate without range", nil, &types.Range{Min: 20201030, Max: 20201201}, true},
		{"request without range", &types.Range{Min: 20201101, Max: 20201130}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(0)
			r.Add(NewEntry("Daily", types.Params{"sector": 5}, tt.candidate))

			full, partial := r.Find("Daily", types.Params{"sector": 5}, tt.request)
			assert.Equal(t, tt.wantFull, full != nil)
			assert.Nil(t, partial, "ranges never produce a residual")
		})
	}
}

func TestFind_Params(t *testing.T) {
	tests := []struct {
		name         string
		candidate    types.Params
		request      types.Params
		wantFull     bool
		wantResidual types.Params
	}{
		{
			name:      "unconstrained extra param",
			candidate: types.Params{"month": 1, "day": []interface{}{1, 2}},
			request:   types.Params{"month": 1, "day": 1, "sector": []interface{}{5, 6}},
			wantFull:  true,
		},
		{
			name:         "one residual value",
			candidate:    types.Params{"month": 1, "day": 1},
			request:      types.Params{"month": 1, "day": []interface{}{1, 2}},
			wantResidual: types.Params{"day": []interface{}{2}, "month": 1},
		},
		{
			name:      "request wider than candidate key",
			candidate: types.Params{"month": 1},
			request:   types.Params{"day": 1},
		},
		{
			name:      "nothing covered",
			candidate: types.Params{"month": 1},
			request:   types.Params{"month": 2},
		},
		{
			name:      "two residual fields",
			candidate: types.Params{"month": 1, "day": 1},
			request:   types.Params{"month": []interface{}{1, 2}, "day": []interface{}{1, 2}},
		},
		{
			name:      "zero is a value",
			candidate: types.Params{"shift": 0},
			request:   types.Params{"shift": 0},
			wantFull:  true,
		},
		{
			name:      "loose equality",
			candidate: types.Params{"id": []interface{}{"1", "2"}},
			request:   types.Params{"id": 2},
			wantFull:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(0)
			e := NewEntry("Daily", tt.candidate, nil)
			r.Add(e)

			full, partial := r.Find("Daily", tt.request, nil)
			if tt.wantFull {
				assert.Same(t, e, full)
				assert.Nil(t, partial)
				return
			}
			assert.Nil(t, full)
			if tt.wantResidual == nil {
				assert.Nil(t, partial)
				return
			}
			require.NotNil(t, partial)
			assert.Equal(t, tt.wantResidual, partial.Params)
			assert.Same(t, e.Flight, partial.Flight)
			assert.Positive(t, partial.Weight)
		})
	}
}

func TestFind_FirstMatchWins(t *testing.T) {
	r := NewRegistry(0)
	a := NewEntry("Daily", types.Params{"day": []interface{}{1}}, nil)
	b := NewEntry("Daily", types.Params{"day": []interface{}{1, 2}}, nil)
	r.Add(a)
	r.Add(b)

	full, partial := r.Find("Daily", types.Params{"day": []interface{}{1, 2, 3}}, nil)
	assert.Nil(t, full)
	require.NotNil(t, partial)
	assert.Same(t, a.Flight, partial.Flight)
}

func TestRegistry_AddRemoveLimit(t *testing.T) {
	r := NewRegistry(2)
	a := NewEntry("M", types.Params{"k": 1}, nil)
	b := NewEntry("M", types.Params{"k": 2}, nil)
	c := NewEntry("M", types.Params{"k": 3}, nil)

	r.Add(a)
	r.Add(b)
	r.Add(c)
	assert.Equal(t, 2, r.Len("M"))

	full, _ := r.Find("M", types.Params{"k": 1}, nil)
	assert.Nil(t, full, "oldest entry replaced")

	r.Remove(b)
	assert.Equal(t, 1, r.Len("M"))

	r.Reset()
	assert.Equal(t, 0, r.Len("M"))
}

func TestFlight(t *testing.T) {
	f := NewFlight()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.Wait(ctx), context.DeadlineExceeded)

	go f.Finish(nil)
	assert.NoError(t, f.Wait(context.Background()))

	f.Finish(assert.AnError)
	assert.NoError(t, f.Wait(context.Background()), "first finish wins")

	<-f.Done()
}

func TestDecompose(t *testing.T) {
	ymd := []string{"year", "month", "day"}

	tests := []struct {
		name   string
		params types.Params
		names  []string
		rng    *types.Range
		want   []types.Params
	}{
		{
			name:   "two full years",
			params: types.Params{},
			names:  ymd,
			rng:    &types.Range{Min: 20200101, Max: 20211231},
			want:   []types.Params{{"year": 2020}, {"year": 2021}},
		},
		{
			name:   "partial years",
			params: types.Params{"sector": 5},
			names:  ymd,
			rng:    &types.Range{Min: 20201130, Max: 20210201},
			want: []types.Params{
				{"sector": 5, "year": 2020, "month": 11, "day": 30},
				{"sector": 5, "year": 2020, "month": 12},
				{"sector": 5, "year": 2021, "month": 1},
				{"sector": 5, "year": 2021, "month": 2, "day": 1},
			},
		},
		{
			name:   "months",
			params: types.Params{},
			names:  []string{"year", "month"},
			rng:    &types.Range{Min: 202011, Max: 202102},
			want: []types.Params{
				{"year": 2020, "month": 11},
				{"year": 2020, "month": 12},
				{"year": 2021, "month": 1},
				{"year": 2021, "month": 2},
			},
		},
		{
			name:   "years only",
			params: types.Params{},
			names:  []string{"year"},
			rng:    &types.Range{Min: 2019, Max: 2020},
			want:   []types.Params{{"year": 2019}, {"year": 2020}},
		},
		{
			name:   "ids bypass",
			params: types.Params{"id": 1},
			names:  ymd,
			rng:    &types.Range{Min: 20200101, Max: 20211231},
			want:   []types.Params{{"id": 1}},
		},
		{
			name:   "no range",
			params: types.Params{"a": 1},
			names:  ymd,
			want:   []types.Params{{"a": 1}},
		},
		{
			name:   "inverted range",
			params: types.Params{},
			names:  ymd,
			rng:    &types.Range{Min: 20200201, Max: 20200101},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decompose(tt.params, tt.names, tt.rng)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecompose_Invalid(t *testing.T) {
	ymd := []string{"year", "month", "day"}
	tests := []struct {
		name  string
		names []string
		rng   *types.Range
	}{
		{"not a number", ymd, &types.Range{Min: "soon", Max: 20200101}},
		{"month out of range", ymd, &types.Range{Min: 20201301, Max: 20201401}},
		{"day past month end", ymd, &types.Range{Min: 20200231, Max: 20200302}},
		{"day zero", ymd, &types.Range{Min: 20200100, Max: 20200105}},
		{"month zero", []string{"year", "month"}, &types.Range{Min: 202000, Max: 202003}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sets, err := Decompose(types.Params{}, tt.names, tt.rng)
			assert.Error(t, err)
			assert.Nil(t, sets)
		})
	}
}
