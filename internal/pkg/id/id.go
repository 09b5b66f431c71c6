package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string: a millisecond timestamp component plus
// 80 random bits, so concurrent creations get distinct, sortable session ids.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
