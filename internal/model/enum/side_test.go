package enum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSide(t *testing.T) {
	assert.True(t, SideBuy.IsAvailable())
	assert.True(t, SideSell.IsAvailable())
	assert.False(t, Side(0).IsAvailable())
	assert.False(t, _side_end.IsAvailable())

	assert.Equal(t, "buy", SideBuy.String())
	assert.Equal(t, "sell", SideSell.String())
	assert.Equal(t, "unknown", Side(0).String())

	assert.Equal(t, SideBuy, ParseSide("buy"))
	assert.Equal(t, SideSell, ParseSide("sell"))
	assert.False(t, ParseSide("hold").IsAvailable())
}
