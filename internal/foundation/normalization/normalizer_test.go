package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backoff string

const (
	backoffFixed       backoff = "fixed"
	backoffExponential backoff = "exponential"
)

func newBackoff() *Normalizer[backoff] {
	return NewNormalizer("backoff mode", map[string]backoff{
		"fixed":       backoffFixed,
		"constant":    backoffFixed,
		"exponential": backoffExponential,
	}, backoffExponential)
}

func TestNormalize(t *testing.T) {
	n := newBackoff()
	tests := []struct {
		name     string
		input    string
		expected backoff
	}{
		{"exact match", "fixed", backoffFixed},
		{"case insensitive", "FIXED", backoffFixed},
		{"with spaces", "  exponential ", backoffExponential},
		{"alias", "Constant", backoffFixed},
		{"unknown falls back to default", "jitter", backoffExponential},
		{"empty falls back to default", "", backoffExponential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, n.Normalize(tt.input))
		})
	}
}

func TestNormalizeWithError(t *testing.T) {
	n := newBackoff()

	v, err := n.NormalizeWithError(" Exponential")
	require.NoError(t, err)
	assert.Equal(t, backoffExponential, v)

	v, err = n.NormalizeWithError("jitter")
	require.Error(t, err)
	assert.Empty(t, v)
	assert.Equal(t, `invalid backoff mode "jitter", valid options: constant, exponential, fixed`, err.Error())
}

func TestValidKeysIsACopy(t *testing.T) {
	n := newBackoff()
	keys := n.ValidKeys()
	keys[0] = "mutated"
	assert.Equal(t, []string{"constant", "exponential", "fixed"}, n.ValidKeys())
}
