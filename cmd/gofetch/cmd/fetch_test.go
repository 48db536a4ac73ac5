package cmd

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gofetch/internal/fetch"
	"github.com/dbsmedya/gofetch/internal/types"
)

func TestFetchCommandFlags(t *testing.T) {
	assert.Equal(t, "fetch", fetchCmd.Use)
	assert.NotNil(t, fetchCmd.RunE)

	flags := fetchCmd.Flags()
	modelFlag := flags.Lookup("model")
	require.NotNil(t, modelFlag)
	assert.Contains(t, modelFlag.Annotations, "cobra_annotation_bash_completion_one_required_flag")
	for _, name := range []string{"param", "field", "min", "max"} {
		assert.NotNil(t, flags.Lookup(name), name)
	}
}

func TestFetchOptions(t *testing.T) {
	m, p, f, lo, hi := fetchModel, fetchParams, fetchFields, fetchMin, fetchMax
	defer func() { fetchModel, fetchParams, fetchFields, fetchMin, fetchMax = m, p, f, lo, hi }()

	fetchModel = "Job"
	fetchParams = []string{"state=open,done"}
	fetchFields = []string{"site.name"}
	fetchMin, fetchMax = "", ""

	opts, err := fetchOptions()
	require.NoError(t, err)
	assert.Equal(t, "Job", opts.Model)
	assert.Equal(t, types.Params{"state": []interface{}{"open", "done"}}, opts.Params)
	assert.Equal(t, []string{"site.name"}, opts.Fields)
	assert.Nil(t, opts.Range)

	fetchParams = []string{"broken"}
	_, err = fetchOptions()
	assert.Error(t, err)
}

// stubTransport answers every request of a model with fixed rows.
type stubTransport struct {
	mu    sync.Mutex
	rows  map[string][]interface{}
	calls []string
	err   error
}

func (s *stubTransport) Request(ctx context.Context, req *fetch.Request) ([]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req.Model)
	if s.err != nil {
		return nil, s.err
	}
	return s.rows[req.Model], nil
}

func newTestEngine(t *testing.T, tr fetch.Transport) *fetch.Engine {
	t.Helper()
	useConfig(t, testConfig)
	cfg, log, reg, err := setup(false)
	require.NoError(t, err)

	engine, err := fetch.NewEngine(fetch.Options{
		Registry:     reg,
		Transport:    tr,
		Hooks:        fetch.HooksFromConfig(cfg.Engine),
		SimilarLimit: cfg.Engine.SimilarLimit,
		ChunkSize:    cfg.Engine.ChunkSize,
		Log:          log,
	})
	require.NoError(t, err)
	return engine
}

func TestFetchAndPrint(t *testing.T) {
	tr := &stubTransport{rows: map[string][]interface{}{
		"Job": {
			map[string]interface{}{"id": 1, "site": 10, "state": "open"},
		},
		"Site": {
			map[string]interface{}{"id": 10, "name": "North"},
		},
	}}
	engine := newTestEngine(t, tr)

	var buf bytes.Buffer
	setOutputWriter(&buf)
	defer resetOutputWriter()

	err := fetchAndPrint(context.Background(), engine, fetch.ExpeditorOptions{
		Model:  "Job",
		Params: types.Params{"state": "open"},
		Fields: []string{"site.name"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Fetch: Job")
	assert.Contains(t, out, "Params: state=open")
	assert.Contains(t, out, "site.name")
	assert.Contains(t, out, "North")
	assert.Contains(t, out, "site -> Site")
	assert.Contains(t, out, "1 records")
	assert.Equal(t, []string{"Job", "Site"}, tr.calls)
}

func TestFetchAndPrintTransportError(t *testing.T) {
	tr := &stubTransport{err: errors.New("connection refused")}
	engine := newTestEngine(t, tr)

	var buf bytes.Buffer
	setOutputWriter(&buf)
	defer resetOutputWriter()

	err := fetchAndPrint(context.Background(), engine, fetch.ExpeditorOptions{
		Model:  "Job",
		Params: types.Params{"state": "open"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Contains(t, buf.String(), "Fetch failed")
}

func TestFetchAndPrintUnknownModel(t *testing.T) {
	engine := newTestEngine(t, &stubTransport{})

	var buf bytes.Buffer
	setOutputWriter(&buf)
	defer resetOutputWriter()

	err := fetchAndPrint(context.Background(), engine, fetch.ExpeditorOptions{Model: "Nope"})
	assert.Error(t, err)
}

func TestPrintTreeReplacedChildren(t *testing.T) {
	tr := &stubTransport{rows: map[string][]interface{}{
		"Job":  {map[string]interface{}{"id": 1, "site": 10, "state": "open"}},
		"Site": {map[string]interface{}{"id": 10, "name": "North"}},
	}}
	engine := newTestEngine(t, tr)
	ctx := context.Background()

	x, err := engine.Expeditor(fetch.ExpeditorOptions{Model: "Job", Fields: []string{"site.name"}})
	require.NoError(t, err)

	var buf bytes.Buffer
	setOutputWriter(&buf)
	defer resetOutputWriter()

	_, err = x.Sequent(ctx, nil)
	require.NoError(t, err)
	printTree(x, 0)
	assert.NotContains(t, buf.String(), "replaced")

	buf.Reset()
	_, err = x.Sequent(ctx, nil)
	require.NoError(t, err)
	printTree(x, 0)
	assert.Contains(t, buf.String(), "Job (resolved; 1 records; fields: site.name; 1 replaced)")
}
