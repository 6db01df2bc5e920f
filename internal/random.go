package internal

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// CaptchaAlphabet omits characters that are easy to confuse when drawn:
// 0/o, 1/l/i.
const CaptchaAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"

// RandomString returns n characters drawn uniformly from alphabet using crypto/rand.
func RandomString(alphabet string, n int) (string, error) {
	if n <= 0 || alphabet == "" {
		return "", errors.New("invalid random string parameters")
	}

	var b strings.Builder
	b.Grow(n)

	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String(), nil
}

// NewCaptchaText returns an n-character captcha answer.
func NewCaptchaText(n int) (string, error) {
	return RandomString(CaptchaAlphabet, n)
}
