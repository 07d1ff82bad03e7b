// Package otp generates numeric one-time codes for physical handoffs.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"math/big"
	mathrand "math/rand"
	"sync"
)

// Generator produces numeric codes of a fixed number of digits. Call sites depend on
// this interface only, so the randomness source can change without touching them.
type Generator interface {
	Generate(digits int) (string, error)
}

// Source generates codes from a uniform random reader.
type Source struct {
	mu     sync.Mutex
	random io.Reader
}

// NewCryptoSource returns the production generator backed by crypto/rand.
func NewCryptoSource() *Source {
	return &Source{random: rand.Reader}
}

// NewSeededSource returns a deterministic generator. Only meant for tests and local
// fixtures.
func NewSeededSource(seed int64) *Source {
	return &Source{random: mathrand.New(mathrand.NewSource(seed))}
}

// Generate returns a zero-padded code with exactly digits digits.
func (s *Source) Generate(digits int) (string, error) {
	if digits <= 0 || digits > 9 {
		return "", fmt.Errorf("otp: unsupported length %d", digits)
	}
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}

	s.mu.Lock()
	n, err := rand.Int(s.random, max)
	s.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("otp: read random: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

// Equal compares a submitted code against the stored one in constant time.
func Equal(expected, submitted string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(submitted)) == 1
}
