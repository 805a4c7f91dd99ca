// Password hashing for local accounts.
//
// Hashes are bcrypt strings of the form
//
//	$2a$12$<22-char salt><31-char hash>
//
// The salt and cost travel inside the string, so the users table needs a
// single password_hash column and bcrypt.CompareHashAndPassword can decode it
// without any other input.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor: 2^12 rounds, roughly 250ms per hash
// on current server hardware.
//
// COST TUNING:
// Pick the cost so one hash takes 200 to 300ms on production hardware. Each
// step up doubles the time, and every login and registration pays it once.
const defaultCost = 12

// MaxPasswordBytes is bcrypt's input limit. Longer passwords are rejected
// rather than silently truncated.
const MaxPasswordBytes = 72

var (
	ErrPasswordTooLong = fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)
	ErrWrongPassword   = errors.New("auth: invalid password")
)

// PasswordService hashes and verifies passwords. The cost is a field so tests
// can run at bcrypt's minimum cost of 4.
type PasswordService struct {
	cost int
}

// NewPasswordService returns a PasswordService at defaultCost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest uses a low bcrypt cost so tests stay fast.
// Never use it outside tests.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash returns the bcrypt string for plaintext, ready to store as is.
//
// bcrypt only reads the first 72 bytes of its input. Longer passwords get
// ErrPasswordTooLong so two passwords sharing a 72-byte prefix never collide.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify returns nil if plaintext matches hash and ErrWrongPassword if it
// does not. Any other error means hash is malformed.
//
// TIMING:
// CompareHashAndPassword compares in constant time, so response time leaks
// nothing about how much of the password was right.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrWrongPassword
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
