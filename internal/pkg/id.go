package pkg

import (
	"crypto/rand"
	"fmt"
)

// gameIDAlphabet skips visually confusable characters (0/O, 1/I) so codes
// survive being read aloud or retyped from a screen.
const (
	gameIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	gameIDLength   = 6
)

// GenerateGameID returns a 6-character id such as "K7QF2M".
func GenerateGameID() (string, error) {
	buf := make([]byte, gameIDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	// 32-character alphabet, so the modulo is unbiased
	for i, b := range buf {
		buf[i] = gameIDAlphabet[int(b)%len(gameIDAlphabet)]
	}

	return string(buf), nil
}
