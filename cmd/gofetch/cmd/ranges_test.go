package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangesCommandFlags(t *testing.T) {
	assert.Equal(t, "ranges", rangesCmd.Use)
	for _, name := range []string{"model", "min", "max"} {
		f := rangesCmd.Flags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Contains(t, f.Annotations, "cobra_annotation_bash_completion_one_required_flag")
	}
	assert.NotNil(t, rangesCmd.Flags().Lookup("param"))
}

func TestRunRanges(t *testing.T) {
	useConfig(t, testConfig)

	m, lo, hi, p := rangesModel, rangesMin, rangesMax, rangesParams
	defer func() { rangesModel, rangesMin, rangesMax, rangesParams = m, lo, hi, p }()

	t.Run("months and a whole year", func(t *testing.T) {
		var buf bytes.Buffer
		setOutputWriter(&buf)
		defer resetOutputWriter()

		rangesModel, rangesMin, rangesMax = "Monthly", "201911", "202102"
		rangesParams = []string{"amount=10"}
		require.NoError(t, runRanges(rangesCmd, nil))

		out := buf.String()
		assert.Contains(t, out, "amount=10 month=11 year=2019")
		assert.Contains(t, out, "amount=10 month=12 year=2019")
		assert.Contains(t, out, "amount=10 year=2020")
		assert.Contains(t, out, "amount=10 month=2 year=2021")
		assert.Contains(t, out, "5 requests")
	})

	t.Run("model without calendar", func(t *testing.T) {
		rangesModel, rangesMin, rangesMax, rangesParams = "Job", "2020", "2021", nil
		err := runRanges(rangesCmd, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no calendar fields")
	})

	t.Run("invalid bound", func(t *testing.T) {
		rangesModel, rangesMin, rangesMax = "Monthly", "201913", "202002"
		assert.Error(t, runRanges(rangesCmd, nil))
	})
}
