package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const topUpPrefix = "wallet_topup_"

// NewTopUpRef synthesizes the order-like reference the gateway echoes back
// for wallet top-ups. The uuid nonce makes every session reference unique,
// and the webhook must still match it against the pending payment row
// recorded at initiation, so a fabricated reference alone buys nothing.
func NewTopUpRef(userID string) string {
	return fmt.Sprintf("%s%s_%s", topUpPrefix, userID, uuid.New().String())
}

// ParseTopUpRef extracts the user id from a top-up reference. The second
// return value is false for anything that is not a well-formed reference,
// including plain order ids.
func ParseTopUpRef(ref string) (string, bool) {
	if !strings.HasPrefix(ref, topUpPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(ref, topUpPrefix)
	idx := strings.LastIndex(rest, "_")
	if idx <= 0 || idx == len(rest)-1 {
		return "", false
	}
	userID := rest[:idx]
	return userID, true
}

// IsTopUpRef reports whether a reference denotes a wallet top-up session
func IsTopUpRef(ref string) bool {
	_, ok := ParseTopUpRef(ref)
	return ok
}
