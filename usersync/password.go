package usersync

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GeneratePassword returns an alphanumeric password. Lengths outside
// [5,30] fall back to 7.
func GeneratePassword(length int) (password string, err error) {
	if length < 5 || length > 30 {
		length = 7
	}
	var chars = make([]byte, length)
	for i := range chars {
		n, er1 := rand.Int(rand.Reader, big.NewInt(int64(len(passwordAlphabet))))
		if er1 != nil {
			return "", fmt.Errorf("generating a password failed: %s", er1)
		}
		chars[i] = passwordAlphabet[n.Int64()]
	}
	return string(chars), nil
}
