package gather

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for _, mode := range Modes() {
		parsed, err := ParseMode(string(mode))
		require.NoError(t, err)
		assert.Equal(t, mode, parsed)
		assert.True(t, parsed.Valid())
	}

	_, err := ParseMode("teleport")
	require.Error(t, err)
	assert.False(t, Mode("teleport").Valid())
}
