package code

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Numeric returns a 6-digit verification code drawn uniformly from
// 100000–999999.
func Numeric() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
