package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord_Rows(t *testing.T) {
	reg := newTestRegistry(t)
	job, _ := reg.Lookup("Job")

	t.Run("tuple", func(t *testing.T) {
		rec, err := NewRecord(job, []interface{}{1, 10, nil, "Dig"})
		require.NoError(t, err)
		assert.Equal(t, 1, rec.ID())
		assert.Equal(t, 10, rec.Value("site"))
		assert.Equal(t, "Dig", rec.Value("caption"))
		assert.Nil(t, rec.Value("meta"))
	})

	t.Run("object", func(t *testing.T) {
		rec, err := NewRecord(job, map[string]interface{}{"id": 2, "caption": "Haul", "unknown": true})
		require.NoError(t, err)
		assert.Equal(t, 2, rec.ID())
		assert.Equal(t, "Haul", rec.Value("title"))
		_, declared := rec.Lookup("unknown")
		assert.False(t, declared)
	})

	t.Run("record", func(t *testing.T) {
		src, err := NewRecord(job, map[string]interface{}{"id": 3})
		require.NoError(t, err)
		rec, err := NewRecord(job, src)
		require.NoError(t, err)
		assert.Equal(t, 3, rec.ID())
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := NewRecord(job, "nope")
		assert.Error(t, err)
	})
}

func TestRecord_CompositeID(t *testing.T) {
	reg := NewRegistry(Options{})
	daily, err := reg.Register(Descriptor{
		Name:   "Daily",
		Key:    []string{"year", "month"},
		Fields: []Field{{Name: "year"}, {Name: "month"}, {Name: "amount"}},
	})
	require.NoError(t, err)

	rec, err := NewRecord(daily, []interface{}{2020, 11, 5})
	require.NoError(t, err)
	assert.Equal(t, "2020-11", rec.ID())

	require.True(t, rec.Set("month", 12))
	assert.Equal(t, "2020-12", rec.ID())
}

func TestRecord_Merge(t *testing.T) {
	reg := newTestRegistry(t)
	job, _ := reg.Lookup("Job")

	rec, err := NewRecord(job, map[string]interface{}{"id": 1, "site": 10, "title": "Dig"})
	require.NoError(t, err)

	require.NoError(t, rec.Merge(map[string]interface{}{"title": "Fill"}))
	assert.Equal(t, "Fill", rec.Value("title"))
	assert.Equal(t, 10, rec.Value("site"), "object merge keeps absent keys")

	require.NoError(t, rec.Merge([]interface{}{1, 11}))
	assert.Equal(t, 11, rec.Value("site"))
	assert.Nil(t, rec.Value("title"), "tuple merge overwrites every field")

	site, _ := reg.Lookup("Site")
	other, err := NewRecord(site, map[string]interface{}{"id": 1})
	require.NoError(t, err)
	assert.Error(t, rec.Merge(other))
}

func TestRecord_Accessors(t *testing.T) {
	reg := newTestRegistry(t)
	job, _ := reg.Lookup("Job")

	rec, err := NewRecord(job, map[string]interface{}{"id": 7, "title": "Dig"})
	require.NoError(t, err)

	assert.False(t, rec.IsExtra())
	rec.SetExtra(true)
	assert.True(t, rec.IsExtra())

	assert.Same(t, job, rec.Schema())
	assert.Len(t, rec.Tuple(), 5)
	assert.Equal(t, "Dig", rec.Map()["title"])
	assert.Equal(t, 7, rec.Map()["id"])
	assert.Equal(t, "Job(7)", rec.String())
	assert.False(t, rec.Set("nope", 1))
}
