package mailapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlagColor(t *testing.T) {
	for _, name := range []string{"none", "red", "orange", "yellow", "green", "blue", "purple", "gray"} {
		c, err := ParseFlagColor(name)
		require.NoError(t, err, name)
		assert.Equal(t, FlagColor(name), c)
	}

	_, err := ParseFlagColor("magenta")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = ParseFlagColor("")
	assert.Error(t, err)
}

func TestFlagColor_Index(t *testing.T) {
	assert.Equal(t, -1, FlagNone.Index())
	assert.Equal(t, 0, FlagRed.Index())
	assert.Equal(t, 1, FlagOrange.Index())
	assert.Equal(t, 2, FlagYellow.Index())
	assert.Equal(t, 3, FlagGreen.Index())
	assert.Equal(t, 4, FlagBlue.Index())
	assert.Equal(t, 5, FlagPurple.Index())
	assert.Equal(t, 6, FlagGray.Index())
}

func TestFlagColor_Flagged(t *testing.T) {
	assert.False(t, FlagNone.Flagged())
	assert.True(t, FlagRed.Flagged())
	assert.True(t, FlagGray.Flagged())
}

func TestBulkResult_Count(t *testing.T) {
	assert.Equal(t, 0, BulkResult{}.Count())
	assert.Equal(t, 2, BulkResult{Succeeded: []string{"1", "2"}}.Count())
}
