// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

const nonceAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomToken returns n characters drawn uniformly from [a-zA-Z0-9].
func RandomToken(n int) (string, error) {
	limit := big.NewInt(int64(len(nonceAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		out[i] = nonceAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// ReceiptNonce is the random salt mixed into every purchase receipt code.
func ReceiptNonce() (string, error) {
	return RandomToken(16)
}

func HashString(input string) string {
	return HashBytes([]byte(input))
}

// HashBytes is the hex sha256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
