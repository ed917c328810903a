package auth

import "golang.org/x/crypto/bcrypt"

// Verifier hashes passwords and checks them against stored digests.
type Verifier interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
}

type BcryptVerifier struct {
	Cost int
}

func (v BcryptVerifier) Hash(password string) (string, error) {
	cost := v.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

func (v BcryptVerifier) Verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}
