package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "jobs", "`jobs`"},
		{"underscore", "job_notes", "`job_notes`"},
		{"empty", "", "``"},
		{"inner backtick", "my`table", "`my``table`"},
		{"only backticks", "``", "``````"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, QuoteIdentifier(tt.input))
		})
	}
}

func TestQuoteIdentifierSafe(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"sites", true},
		{"Site_2", true},
		{"", false},
		{"db.table", false},
		{"my-table", false},
		{"jobs; DROP TABLE jobs--", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidIdentifier(tt.input))

			quoted, err := QuoteIdentifierSafe(tt.input)
			if tt.valid {
				require.NoError(t, err)
				assert.Equal(t, "`"+tt.input+"`", quoted)
				return
			}
			var invalid *InvalidIdentifierError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.input, invalid.Name)
			assert.Empty(t, quoted)
		})
	}
}
