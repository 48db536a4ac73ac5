package index

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gofetch/internal/schema"
	"github.com/dbsmedya/gofetch/internal/types"
)

func fieldKey(rec *schema.Record, key string) interface{} {
	return rec.Value(key)
}

func testRecords(t *testing.T) []*schema.Record {
	t.Helper()
	reg := schema.NewRegistry(schema.Options{})
	s, err := reg.Register(schema.Descriptor{
		Name:   "Entry",
		Fields: []schema.Field{{Name: "id"}, {Name: "month"}, {Name: "day"}},
	})
	require.NoError(t, err)

	rows := [][]interface{}{
		{1, 1, 1},
		{2, 1, 2},
		{3, 2, 1},
		{4, 1, 1},
	}
	recs := make([]*schema.Record, len(rows))
	for i, row := range rows {
		recs[i], err = schema.NewRecord(s, row)
		require.NoError(t, err)
	}
	return recs
}

func ids(recs []*schema.Record) []interface{} {
	out := make([]interface{}, len(recs))
	for i, r := range recs {
		out[i] = r.ID()
	}
	return out
}

func TestIndex_Records(t *testing.T) {
	recs := testRecords(t)
	idx := New([]string{"month", "day"}, fieldKey, Options{})
	for _, r := range recs {
		idx.Register(r)
	}

	assert.Equal(t, 4, idx.Len())
	assert.Equal(t, "month-day", idx.Name())
	assert.Equal(t, []interface{}{1, 4}, ids(idx.Records(types.Params{"month": 1, "day": 1})))
	assert.Equal(t, []interface{}{3}, ids(idx.Records(types.Params{"month": "2", "day": 1.0})))
	assert.Nil(t, idx.Records(types.Params{"month": 3, "day": 1}))
}

func TestIndex_SelectCartesian(t *testing.T) {
	recs := testRecords(t)
	idx := New([]string{"month", "day"}, fieldKey, Options{})
	for _, r := range recs {
		idx.Register(r)
	}

	got := idx.Select(types.Params{"month": []interface{}{1, 2}, "day": []interface{}{1, 2}}, nil)
	assert.Equal(t, []interface{}{1, 4, 2, 3}, ids(got))

	got = idx.Select(types.Params{"month": []interface{}{}, "day": 1}, nil)
	assert.Empty(t, got)
}

func TestIndex_SelectChunked(t *testing.T) {
	recs := testRecords(t)
	idx := New(nil, fieldKey, Options{Chunk: 1})
	for _, r := range recs {
		idx.Register(r)
	}

	assert.Equal(t, []interface{}{1, 2, 3, 4}, ids(idx.Select(types.Params{}, nil)))
}

func TestIndex_RoundTrip(t *testing.T) {
	recs := testRecords(t)
	idx := New([]string{"id"}, fieldKey, Options{})

	idx.Register(recs[0])
	assert.True(t, idx.Contains(1))
	assert.True(t, idx.Contains("1"))

	idx.Unregister(recs[0])
	assert.False(t, idx.Contains(1))
	assert.Equal(t, 0, idx.Len())

	// Unregistering twice is harmless.
	idx.Unregister(recs[0])
}

func TestIndex_SharedBucket(t *testing.T) {
	recs := testRecords(t)
	idx := New([]string{"day"}, fieldKey, Options{})
	idx.Register(recs[0])
	idx.Register(recs[2])

	idx.Unregister(recs[0])
	assert.True(t, idx.Contains(1), "bucket still holds another record")
}

func TestIndex_ReRegisterMovesRecord(t *testing.T) {
	recs := testRecords(t)
	idx := New([]string{"day"}, fieldKey, Options{})
	idx.Register(recs[0])

	require.True(t, recs[0].Set("day", 9))
	idx.Register(recs[0])

	assert.False(t, idx.Contains(1))
	assert.True(t, idx.Contains(9))
	assert.Equal(t, 1, idx.Len())
}

func TestIndex_Order(t *testing.T) {
	idx := New([]string{"month", "day"}, fieldKey, Options{Order: sort.Strings})
	assert.Equal(t, []string{"day", "month"}, idx.Keys())
}
