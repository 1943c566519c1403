// Package id generates short random identifiers.
package id

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// Base62 alphabet: 0-9, A-Z, a-z
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// SubscriptionIDLength is the length of the per-subscription opaque ID
	// that prefixes installed font files.
	SubscriptionIDLength = 10
)

// Generate creates a random short ID with the specified length using Base62
// encoding. The generated ID is cryptographically random and filename-safe.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = SubscriptionIDLength
	}

	result := make([]byte, length)
	alphabetLen := big.NewInt(int64(len(alphabet)))

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		result[i] = alphabet[num.Int64()]
	}

	return string(result), nil
}

// MustGenerate creates a random short ID and panics on error. crypto/rand
// only fails when the OS entropy source is broken.
func MustGenerate(length int) string {
	id, err := Generate(length)
	if err != nil {
		panic(err)
	}
	return id
}
