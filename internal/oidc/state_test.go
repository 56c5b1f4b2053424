package oidc

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParseState(t *testing.T) {
	state := IssueState("corp")

	providerID, randomPart, err := ParseState(state)
	require.NoError(t, err)
	assert.Equal(t, "corp", providerID)
	assert.Len(t, randomPart, 22)
}

func TestParseStateMalformed(t *testing.T) {
	for _, state := range []string{"", "no-separator", ":missing-provider", "corp:"} {
		_, _, err := ParseState(state)
		assert.ErrorIs(t, err, ErrMalformedState, "state %q", state)
	}
}

func TestParseStateSplitsOnFirstSeparator(t *testing.T) {
	providerID, randomPart, err := ParseState("corp:rand:with:colons")
	require.NoError(t, err)
	assert.Equal(t, "corp", providerID)
	assert.Equal(t, "rand:with:colons", randomPart)
}

func TestStateTokensAreUnique(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		state := IssueState("corp")
		require.True(t, strings.HasPrefix(state, "corp:"))
		assert.False(t, seen[state])
		seen[state] = true
	}
}

func TestStateStoreSingleUse(t *testing.T) {
	store := newStateStore(time.Minute)

	store.add("corp:abc")

	assert.True(t, store.consume("corp:abc"))
	// second use fails
	assert.False(t, store.consume("corp:abc"))
	// never issued
	assert.False(t, store.consume("corp:xyz"))
}

func TestStateStoreExpiry(t *testing.T) {
	store := newStateStore(-time.Second)

	store.add("corp:abc")

	assert.False(t, store.consume("corp:abc"))
}
