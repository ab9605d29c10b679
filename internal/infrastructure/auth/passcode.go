package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidPasscode is returned when the admin passcode does not match
var ErrInvalidPasscode = errors.New("invalid passcode")

// PasscodeVerifier checks the admin passcode against a bcrypt hash
type PasscodeVerifier struct {
	hash []byte
}

// NewPasscodeVerifier uses hash when set, otherwise hashes plain at startup
func NewPasscodeVerifier(plain, hash string) (*PasscodeVerifier, error) {
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("invalid passcode hash: %w", err)
		}
		return &PasscodeVerifier{hash: []byte(hash)}, nil
	}
	if plain == "" {
		return nil, errors.New("admin passcode is not configured")
	}
	h, err := HashPasscode(plain)
	if err != nil {
		return nil, err
	}
	return &PasscodeVerifier{hash: []byte(h)}, nil
}

// Verify returns ErrInvalidPasscode when passcode does not match
func (v *PasscodeVerifier) Verify(passcode string) error {
	err := bcrypt.CompareHashAndPassword(v.hash, []byte(passcode))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrInvalidPasscode
	}
	return err
}

// HashPasscode returns the bcrypt hash to put in auth.passcode_hash
func HashPasscode(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash passcode: %w", err)
	}
	return string(h), nil
}
