package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommandStructure(t *testing.T) {
	assert.NotNil(t, validateCmd)
	assert.Equal(t, "validate", validateCmd.Use)
	assert.NotEmpty(t, validateCmd.Short)
	assert.Contains(t, validateCmd.Long, "Example:")
	assert.Contains(t, validateCmd.Long, "gofetch validate")
	assert.NotNil(t, validateCmd.RunE)
}

func TestValidateCommandNoModelFlag(t *testing.T) {
	assert.Nil(t, validateCmd.Flags().Lookup("model"), "validate command should not have a model flag")
}

func TestRunValidate(t *testing.T) {
	useConfig(t, testConfig)

	var buf bytes.Buffer
	setOutputWriter(&buf)
	defer resetOutputWriter()

	require.NoError(t, runValidate(validateCmd, nil))

	out := buf.String()
	assert.Contains(t, out, "[Models]")
	assert.Contains(t, out, "Monthly")
	assert.Contains(t, out, "year,month")
	assert.Contains(t, out, "[References]")
	assert.Contains(t, out, "FROM")
	assert.Contains(t, out, "3 models validated")
}

func TestRunValidateInvalidConfig(t *testing.T) {
	useConfig(t, `
models:
  - name: Job
    fields:
      - id
      - name: site
        reference: Site
`)

	var buf bytes.Buffer
	setOutputWriter(&buf)
	defer resetOutputWriter()

	err := runValidate(validateCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Site")
	assert.Contains(t, buf.String(), "Validation failed")
}
