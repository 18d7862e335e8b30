package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenProviderRejectsBlankToken(t *testing.T) {
	t.Parallel()

	for _, token := range []string{"", "   ", "Bearer   "} {
		_, err := NewTokenProvider(token)
		assert.ErrorIs(t, err, ErrEmptyToken, "token %q", token)
	}
}

func TestTokenProviderHeaders(t *testing.T) {
	t.Parallel()

	p, err := NewTokenProvider("  bearer abc123 ")
	require.NoError(t, err)

	assert.Equal(t, "abc123", p.AuthToken())
	headers := p.GetAuthHeaders()
	assert.Equal(t, "Bearer abc123", headers["Authorization"])
	assert.Contains(t, headers["User-Agent"], "guildkit/")
}

func TestSetTokenReplacesToken(t *testing.T) {
	t.Parallel()

	p, err := NewTokenProvider("old")
	require.NoError(t, err)

	require.NoError(t, p.SetToken("new"))
	assert.Equal(t, "new", p.AuthToken())

	assert.ErrorIs(t, p.SetToken(" "), ErrEmptyToken)
	assert.Equal(t, "new", p.AuthToken(), "failed rotation keeps the previous token")
}
