package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// InviteCodeLength is short enough to type from a poster, so collisions
// happen and inserts retry.
const InviteCodeLength = 6

// NewInviteCode returns a random uppercase alphanumeric team code.
func NewInviteCode() (string, error) {
	return randomString(codeAlphabet, InviteCodeLength)
}

// NewOrderID returns AMB_<base36 unix millis>_<6 random base36>, uppercased.
func NewOrderID(now time.Time) (string, error) {
	suffix, err := randomString(codeAlphabet, 6)
	if err != nil {
		return "", err
	}
	ts := strconv.FormatInt(now.UnixMilli(), 36)
	return strings.ToUpper("AMB_" + ts + "_" + suffix), nil
}

// NormalizeInviteCode trims and uppercases user input.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func randomString(alphabet string, n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}
