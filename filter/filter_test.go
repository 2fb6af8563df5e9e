package filter

import (
	"testing"

	"github.com/esc4n0rx/streamhive/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeMasksTerms(t *testing.T) {
	m, err := NewModerator(config.ModerationConfig{BlockedTerms: []string{"spam", "flood"}})
	require.NoError(t, err)

	assert.Equal(t, "this is ****", m.Sanitize("this is spam"))
	assert.Equal(t, "***** warning", m.Sanitize("flood warning"))
	assert.Equal(t, "no match here", m.Sanitize("no match here"))
}

func TestSanitizeCaseInsensitive(t *testing.T) {
	m, err := NewModerator(config.ModerationConfig{BlockedTerms: []string{"spam"}})
	require.NoError(t, err)

	assert.Equal(t, "**** and ****", m.Sanitize("SPAM and SpAm"))
}

func TestSanitizeKeepsLength(t *testing.T) {
	m, err := NewModerator(config.ModerationConfig{BlockedTerms: []string{"spam"}})
	require.NoError(t, err)

	in := "leading spam trailing"
	assert.Equal(t, len(in), len(m.Sanitize(in)))
}

func TestSanitizeMasksPerCharacter(t *testing.T) {
	m, err := NewModerator(config.ModerationConfig{BlockedTerms: []string{"café"}})
	require.NoError(t, err)

	// four characters, five bytes: the mask covers characters
	assert.Equal(t, "meet at the ****", m.Sanitize("meet at the café"))
}

func TestBlockedExpression(t *testing.T) {
	m, err := NewModerator(config.ModerationConfig{
		BlockExpressions: []string{`MessageType == "text" && len(Message) > 10 && Role == "participant"`},
	})
	require.NoError(t, err)

	assert.True(t, m.Blocked(Env{Role: "participant", Message: "a very long message", MessageType: "text"}))
	assert.False(t, m.Blocked(Env{Role: "moderator", Message: "a very long message", MessageType: "text"}))
	assert.False(t, m.Blocked(Env{Role: "participant", Message: "short", MessageType: "text"}))
}

func TestBrokenExpressionFailsConstruction(t *testing.T) {
	_, err := NewModerator(config.ModerationConfig{BlockExpressions: []string{"NoSuchField =="}})
	assert.Error(t, err)
}
