package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopUpRefRoundTrip(t *testing.T) {
	userID := "5f4c1e3a-9d2b-4c8e-b1a6-7e0f2d3c4b5a"

	ref := NewTopUpRef(userID)
	parsed, ok := ParseTopUpRef(ref)
	require.True(t, ok)
	assert.Equal(t, userID, parsed)
}

func TestTopUpRefUniqueness(t *testing.T) {
	// every session gets a fresh nonce even for the same user
	a := NewTopUpRef("user-1")
	b := NewTopUpRef("user-1")
	assert.NotEqual(t, a, b)
}

func TestParseTopUpRefRejectsOrderIDs(t *testing.T) {
	cases := []string{
		"",
		"8a1b2c3d-4e5f-6789-abcd-ef0123456789", // plain order id
		"wallet_topup_",
		"wallet_topup_useronly",
		"wallet_topup__nonce", // empty user id
		"wallet_topup_user-1_",
		"topup_user-1_nonce",
	}

	for _, ref := range cases {
		_, ok := ParseTopUpRef(ref)
		assert.False(t, ok, "ref %q should not parse", ref)
		assert.False(t, IsTopUpRef(ref))
	}
}

func TestParseTopUpRefUnderscoreUserID(t *testing.T) {
	// the nonce is everything after the last underscore, so user ids
	// containing underscores still parse
	ref := "wallet_topup_user_with_underscores_nonce123"
	parsed, ok := ParseTopUpRef(ref)
	require.True(t, ok)
	assert.Equal(t, "user_with_underscores", parsed)
}
