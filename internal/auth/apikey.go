package auth

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const (
	// APIKeyLength is the fixed length of every issued key.
	APIKeyLength = 20

	apiKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// KeyGenerator produces API keys from a CSPRNG. Each character is drawn
// uniformly from [A-Za-z0-9].
type KeyGenerator struct {
	rand io.Reader
}

func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{rand: rand.Reader}
}

// NewKeyGeneratorFromReader draws randomness from r. Tests use it to make
// key sequences deterministic.
func NewKeyGeneratorFromReader(r io.Reader) *KeyGenerator {
	return &KeyGenerator{rand: r}
}

// Generate returns a fresh APIKeyLength-character key.
func (g *KeyGenerator) Generate() (string, error) {
	max := big.NewInt(int64(len(apiKeyAlphabet)))
	buf := make([]byte, APIKeyLength)
	for i := range buf {
		n, err := rand.Int(g.rand, max)
		if err != nil {
			return "", fmt.Errorf("auth: generating api key: %w", err)
		}
		buf[i] = apiKeyAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// ValidAPIKey reports whether s has the shape of an issued key. The public
// resolver uses it to skip the store for obviously bogus keys.
func ValidAPIKey(s string) bool {
	if len(s) != APIKeyLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
