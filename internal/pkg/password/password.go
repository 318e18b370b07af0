package password

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is the default bcrypt cost
	DefaultCost = 12

	// fingerprintLen is the number of hex chars kept from a token digest
	fingerprintLen = 16
)

// Hash hashes a password using bcrypt
func Hash(password string) (string, error) {
	return HashWithCost(password, DefaultCost)
}

// HashWithCost hashes with an explicit cost (seeding and tests use bcrypt.MinCost)
func HashWithCost(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify compares a password with a hash
func Verify(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

var (
	unknownOnce sync.Once
	unknownHash []byte
)

// VerifyUnknown spends the same bcrypt work as Verify for a username that
// does not exist, so response timing does not reveal which accounts do.
// It always reports false.
func VerifyUnknown(password string) bool {
	unknownOnce.Do(func() {
		unknownHash, _ = bcrypt.GenerateFromPassword([]byte("unknown-identity"), DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(unknownHash, []byte(password))
	return false
}

// Fingerprint returns a non-reversible short digest of an issued token
func Fingerprint(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])[:fingerprintLen]
}
