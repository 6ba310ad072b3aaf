package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "retail sales", NormalizeName("  retail \t  sales "))
	assert.Equal(t, "", NormalizeName(" \n "))
}

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"nil stays nil", nil, nil},
		{"empty stays empty", []string{}, []string{}},
		{"activities keep registration order", []string{" wholesale", "retail  "}, []string{"wholesale", "retail"}},
		{"spacing variants collapse", []string{"import export", "import   export", "leasing"}, []string{"import export", "leasing"}},
		{"blank authorities dropped", []string{"", "   ", "sign contracts"}, []string{"sign contracts"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestSortedKeys(t *testing.T) {
	set := map[string]struct{}{"software": {}, "consulting": {}, "leasing": {}}
	assert.Equal(t, []string{"consulting", "leasing", "software"}, SortedKeys(set))
	assert.Equal(t, []string{}, SortedKeys(nil))
}
