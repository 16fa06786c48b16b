package utils

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns bcrypt hash using the given cost.  Costs outside
// bcrypt's accepted range fall back to bcrypt.DefaultCost.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

var (
	dummyOnce sync.Once
	dummyHash []byte
)

// BurnPasswordCheck runs one bcrypt comparison against a throwaway hash.
// Login calls it when the email is unknown so both failure paths cost
// roughly the same time.
func BurnPasswordCheck(plain string) {
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plain))
}
