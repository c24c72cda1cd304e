package store

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumeric(t *testing.T) {
	v, err := parseNumeric("orders.quantity", "12.50000000")
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.RequireFromString("12.5")))

	v, err = parseNumeric("trading fees", "0")
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	for _, bad := range []string{"", "NaN", "1,5"} {
		_, err := parseNumeric("trading fees", bad)
		assert.ErrorContains(t, err, "parse trading fees", bad)
	}
}
