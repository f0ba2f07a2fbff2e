package store

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	d, err := parseAmount("money", "67")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.NewFromInt(67)))

	for _, bad := range []string{"", "NaN", "sixty"} {
		_, err := parseAmount("money", bad)
		assert.Error(t, err, "value %q", bad)
	}
}
