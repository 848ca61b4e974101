package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// codeAlphabet excludes visually ambiguous characters (0/O, 1/I, U/V)
// so codes survive being read aloud or retyped from an email.
var codeAlphabet = []rune("23456789ABCDEFGHJKLMNPQRSTVWXYZ")

// RandomChars returns n characters drawn from the unambiguous code alphabet.
func RandomChars(n int) (string, error) {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		idx, err := RandomIntn(len(codeAlphabet))
		if err != nil {
			return "", fmt.Errorf("generating random char index: %w", err)
		}
		sb.WriteRune(codeAlphabet[idx])
	}
	return sb.String(), nil
}

// RandomIntn returns a uniform random int in [0, max) from crypto/rand.
func RandomIntn(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("generating random number: %w", err)
	}
	return int(n.Int64()), nil
}

// RandomBytes returns n bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating random bytes: %w", err)
	}
	return b, nil
}
