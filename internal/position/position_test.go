package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecfantasy/league-engine/internal/model"
)

func TestParse_Canonical(t *testing.T) {
	for _, r := range model.Roles {
		got, err := Parse(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
}

func TestParse_BottomSynonyms(t *testing.T) {
	for _, token := range []string{"bottom", "Bottom", "BOT", " adc ", "ADC"} {
		got, err := Parse(token)
		require.NoError(t, err, token)
		assert.Equal(t, model.RoleADC, got, token)
	}
}

func TestParse_CaseInsensitive(t *testing.T) {
	got, err := Parse("MiD")
	require.NoError(t, err)
	assert.Equal(t, model.RoleMid, got)
}

func TestParse_Unknown(t *testing.T) {
	for _, token := range []string{"", "none", "coach", "midlaner"} {
		_, err := Parse(token)
		assert.ErrorIs(t, err, ErrUnknownRole, token)
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(model.RoleSupport))
	assert.False(t, Valid(model.Role("bottom")))
	assert.False(t, Valid(""))
}
