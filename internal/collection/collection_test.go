package collection

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dbsmedya/gofetch/internal/logger"
	"github.com/dbsmedya/gofetch/internal/query"
	"github.com/dbsmedya/gofetch/internal/schema"
	"github.com/dbsmedya/gofetch/internal/types"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()

	reg := schema.NewRegistry(schema.Options{})
	_, err := reg.Register(schema.Descriptor{
		Name:   "Site",
		Fields: []schema.Field{{Name: "id"}, {Name: "name"}},
	})
	require.NoError(t, err)
	_, err = reg.Register(schema.Descriptor{
		Name: "Job",
		Fields: []schema.Field{
			{Name: "id"},
			{Name: "site", Reference: "Site"},
			{Name: "state"},
		},
	})
	require.NoError(t, err)
	_, err = reg.Register(schema.Descriptor{
		Name:   "Daily",
		Key:    []string{"year", "month", "day"},
		Fields: []schema.Field{{Name: "year"}, {Name: "month"}, {Name: "day"}, {Name: "amount"}},
	})
	require.NoError(t, err)

	return NewStore(reg, query.NewParser(nil), opts)
}

func splice(t *testing.T, s *Store, model string, mode Mode, rows ...interface{}) []*schema.Record {
	t.Helper()
	c, err := s.Collection(model)
	require.NoError(t, err)
	out, err := c.Splice(rows, mode)
	require.NoError(t, err)
	return out
}

func TestSplice_IdentityStable(t *testing.T) {
	s := newTestStore(t, Options{})

	first := splice(t, s, "Job", Merge, map[string]interface{}{"id": 1, "state": "open", "site": 10})
	second := splice(t, s, "Job", Merge, map[string]interface{}{"id": 1, "state": "done"})
	third := splice(t, s, "Job", Merge, []interface{}{1, 11, "closed"})

	require.Len(t, first, 1)
	assert.Same(t, first[0], second[0])
	assert.Same(t, first[0], third[0])
	assert.Equal(t, "closed", first[0].Value("state"))
	assert.Equal(t, 11, first[0].Value("site"))

	c, _ := s.Collection("Job")
	assert.Equal(t, 1, c.Len())
}

func TestSplice_ObjectKeepsAbsentFields(t *testing.T) {
	s := newTestStore(t, Options{})

	rec := splice(t, s, "Job", Merge, map[string]interface{}{"id": 1, "state": "open", "site": 10})[0]
	splice(t, s, "Job", Merge, map[string]interface{}{"id": 1, "state": "done"})

	assert.Equal(t, 10, rec.Value("site"))
}

func TestSplice_ReindexesOnMerge(t *testing.T) {
	s := newTestStore(t, Options{})
	c, err := s.Collection("Job")
	require.NoError(t, err)

	splice(t, s, "Job", Merge, map[string]interface{}{"id": 1, "state": "open"})
	assert.Len(t, c.Find(types.Params{"state": "open"}), 1)

	splice(t, s, "Job", Merge, map[string]interface{}{"id": 1, "state": "done"})
	assert.Empty(t, c.Find(types.Params{"state": "open"}))
	assert.Len(t, c.Find(types.Params{"state": "done"}), 1)
}

func TestSplice_ExtraMarker(t *testing.T) {
	s := newTestStore(t, Options{})

	extra := splice(t, s, "Site", Extra, map[string]interface{}{"id": 10})[0]
	assert.True(t, extra.IsExtra())

	splice(t, s, "Site", Merge, map[string]interface{}{"id": 10, "name": "North"})
	assert.False(t, extra.IsExtra())

	// Extra loads never demote a permanent record.
	splice(t, s, "Site", Extra, map[string]interface{}{"id": 10})
	assert.False(t, extra.IsExtra())
}

func TestSplice_Remove(t *testing.T) {
	s := newTestStore(t, Options{})
	splice(t, s, "Job", Merge,
		map[string]interface{}{"id": 1, "state": "open"},
		map[string]interface{}{"id": 2, "state": "open"},
	)

	removed := splice(t, s, "Job", Remove, map[string]interface{}{"id": 1}, map[string]interface{}{"id": 3})
	require.Len(t, removed, 1, "unknown rows are dropped")
	assert.Equal(t, 1, removed[0].ID())

	c, _ := s.Collection("Job")
	assert.Equal(t, 1, c.Len())
	assert.Nil(t, c.FindID(1))
	assert.Len(t, c.Find(types.Params{"state": "open"}), 1)
}

func TestSplice_InvalidRow(t *testing.T) {
	s := newTestStore(t, Options{})
	c, _ := s.Collection("Job")
	_, err := c.Splice([]interface{}{"nope"}, Merge)
	assert.Error(t, err)
}

func TestFind(t *testing.T) {
	s := newTestStore(t, Options{})
	splice(t, s, "Job", Merge,
		map[string]interface{}{"id": 1, "site": 10, "state": "open"},
		map[string]interface{}{"id": 2, "site": 10, "state": "done"},
		map[string]interface{}{"id": 3, "site": 20, "state": "open"},
	)
	c, _ := s.Collection("Job")

	tests := []struct {
		name   string
		params interface{}
		want   []interface{}
	}{
		{"scalar id", 2, []interface{}{2}},
		{"id list", []interface{}{3, 1}, []interface{}{3, 1}},
		{"compound", types.Params{"site": 10, "state": "open"}, []interface{}{1}},
		{"any of", map[string]interface{}{"state": []interface{}{"done", "open"}}, []interface{}{2, 1, 3}},
		{"all", nil, []interface{}{1, 2, 3}},
		{"missing", types.Params{"site": 30}, []interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Find(tt.params)
			ids := make([]interface{}, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ID())
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestFindOrFail(t *testing.T) {
	s := newTestStore(t, Options{})
	splice(t, s, "Job", Merge, map[string]interface{}{"id": 1})

	rec, err := s.FindOrFail("Job", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.ID())

	_, err = s.FindOrFail("Job", 9)
	assert.True(t, errors.Is(err, ErrNotFound))
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Job", nf.Model)

	one, err := s.FindOne("Job", 9)
	require.NoError(t, err)
	assert.Nil(t, one)

	_, err = s.Find("Nope", 1)
	assert.Error(t, err)
}

func TestCompositeIdentity(t *testing.T) {
	s := newTestStore(t, Options{})
	a := splice(t, s, "Daily", Merge, []interface{}{2020, 1, 1, 5})[0]
	b := splice(t, s, "Daily", Merge, map[string]interface{}{"year": 2020, "month": 1, "day": 1, "amount": 7})[0]

	assert.Same(t, a, b)
	assert.Equal(t, "2020-1-1", a.ID())
	assert.Equal(t, 7, a.Value("amount"))

	got, err := s.Find("Daily", types.Params{"year": 2020, "month": 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRelatedAndQuery(t *testing.T) {
	s := newTestStore(t, Options{})
	splice(t, s, "Site", Merge, map[string]interface{}{"id": 10, "name": "North"})
	job := splice(t, s, "Job", Merge, map[string]interface{}{"id": 1, "site": 10})[0]

	name, err := s.Executor().Get(job, "site.name")
	require.NoError(t, err)
	assert.Equal(t, "North", name)

	site, _ := s.FindOne("Site", 10)
	jobs, err := s.Executor().Get(site, "job")
	require.NoError(t, err)
	assert.Equal(t, 1, jobs)
}

func TestIndexOverReferencePath(t *testing.T) {
	s := newTestStore(t, Options{})
	splice(t, s, "Site", Merge, map[string]interface{}{"id": 10, "name": "North"})
	splice(t, s, "Job", Merge,
		map[string]interface{}{"id": 1, "site": 10},
		map[string]interface{}{"id": 2, "site": 20},
	)

	got, err := s.Find("Job", types.Params{"site.name": "North"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].ID())
}

func TestOneTimeIndex(t *testing.T) {
	s := newTestStore(t, Options{})
	splice(t, s, "Site", Merge, map[string]interface{}{"id": 10})
	splice(t, s, "Job", Merge, map[string]interface{}{"id": 1, "site": 10, "state": "open"})

	c, _ := s.Collection("Site")
	got := c.Find(types.Params{"job.state": "open"})
	require.Len(t, got, 1)

	s.mu.Lock()
	_, cached := c.indexes["job.state"]
	s.mu.Unlock()
	assert.False(t, cached)
}

func TestContains(t *testing.T) {
	s := newTestStore(t, Options{})
	splice(t, s, "Job", Merge, map[string]interface{}{"id": 1, "site": 10})
	c, _ := s.Collection("Job")

	assert.True(t, c.Contains("id", 1))
	assert.True(t, c.Contains("site", "10"))
	assert.False(t, c.Contains("site", 20))
}

func TestStore_ForkFree(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := newTestStore(t, Options{Log: logger.FromCore(core)})
	splice(t, s, "Job", Merge, map[string]interface{}{"id": 1})

	s.Fork()
	splice(t, s, "Site", Merge, map[string]interface{}{"id": 10})
	_, ok := s.Loaded("Site")
	assert.True(t, ok)

	// Collections of the base stay visible in the fork.
	rec, err := s.FindOne("Job", 1)
	require.NoError(t, err)
	assert.NotNil(t, rec)

	assert.True(t, s.Free())
	_, ok = s.Loaded("Site")
	assert.False(t, ok)
	assert.Equal(t, []string{"Job"}, s.Models())
	assert.False(t, s.Free(), "base is kept")

	forked := logs.FilterMessage("Forked store overlay").All()
	require.Len(t, forked, 1)
	assert.Equal(t, int64(1), forked[0].ContextMap()["depth"])
	freed := logs.FilterMessage("Freed store overlay").All()
	require.Len(t, freed, 1)
	assert.Equal(t, int64(0), freed[0].ContextMap()["depth"])

	s.Reset()
	assert.Empty(t, s.Models())
}

func TestKeyOrder(t *testing.T) {
	s := newTestStore(t, Options{KeyOrder: sort.Strings, Chunk: 1})
	splice(t, s, "Job", Merge,
		map[string]interface{}{"id": 1, "site": 10, "state": "open"},
		map[string]interface{}{"id": 2, "site": 10, "state": "open"},
	)
	got, err := s.Find("Job", types.Params{"state": "open", "site": 10})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "merge", Merge.String())
	assert.Equal(t, "extra", Extra.String())
	assert.Equal(t, "remove", Remove.String())
}
