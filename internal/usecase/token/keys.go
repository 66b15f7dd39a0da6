package token

import (
	"encoding/hex"
	"fmt"
	"io"
)

const (
	tokenKeyPrefix      = "token:"
	userTokensKeyPrefix = "user_tokens:"

	// IDPrefix starts every token id.
	IDPrefix = "token_"

	idBytes     = 8
	secretBytes = 32
)

func tokenKey(tokenID string) string {
	return tokenKeyPrefix + tokenID
}

func userTokensKey(userID string) string {
	return userTokensKeyPrefix + userID
}

func randomHex(r io.Reader, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func generateID(r io.Reader) (string, error) {
	suffix, err := randomHex(r, idBytes)
	if err != nil {
		return "", err
	}
	return IDPrefix + suffix, nil
}

func generateSecret(r io.Reader) (string, error) {
	return randomHex(r, secretBytes)
}
