package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// CredentialVerifier hashes and verifies passwords with bcrypt.
type CredentialVerifier struct {
	cost int
	// dummy is compared against when the username is unknown so that the
	// response time does not reveal whether an identity exists.
	dummy []byte
}

func NewCredentialVerifier(cost int) (*CredentialVerifier, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("khazana-unknown-identity"), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy credential: %w", err)
	}
	return &CredentialVerifier{cost: cost, dummy: dummy}, nil
}

func (v *CredentialVerifier) Hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return "", fmt.Errorf("hash credential: %w", err)
	}
	return string(h), nil
}

func (v *CredentialVerifier) Verify(hash, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}

// VerifyUnknown spends about as long as Verify and always reports false.
func (v *CredentialVerifier) VerifyUnknown(candidate string) bool {
	_ = bcrypt.CompareHashAndPassword(v.dummy, []byte(candidate))
	return false
}
