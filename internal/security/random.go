package security

import (
	"crypto/rand"
	"encoding/base64"
)

// NewRandomString returns n random bytes encoded with the unpadded
// URL-safe base64 alphabet, so the result can be embedded in a query
// string without escaping.
func NewRandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// accessKeyBytes gives 256 bits of entropy; collisions are treated as
// negligible and the database uniqueness constraint is only a backstop.
const accessKeyBytes = 32

func NewAccessKey() (string, error) {
	return NewRandomString(accessKeyBytes)
}
