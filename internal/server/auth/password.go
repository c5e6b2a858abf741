package auth

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/khazana/internal/common"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 72

	// PasswordSymbols lists the characters that count as "special".
	PasswordSymbols = "@#$!%^&*|`()_+{}[]:;<>,.?~\\/-"
)

type Strength int

const (
	Weak Strength = iota
	Strong
)

func (s Strength) String() string {
	if s == Strong {
		return "strong"
	}
	return "weak"
}

const weakPasswordMessage = "Password is too weak. Password should include at least 1 uppercase, " +
	"1 lowercase, 1 number and 1 special character."

// ValidatePasswordLength checks the length bounds in characters. The upper
// bound also applies to the byte length, which bcrypt cannot exceed.
func ValidatePasswordLength(p string) error {
	n := utf8.RuneCountInString(p)
	switch {
	case n < MinPasswordLength:
		return fmt.Errorf("%w: Password length must be at least %d characters.", common.ErrPasswordTooShort, MinPasswordLength)
	case n > MaxPasswordLength:
		return fmt.Errorf("%w: Password length must be at most %d characters.", common.ErrPasswordTooLong, MaxPasswordLength)
	case len(p) > MaxPasswordLength:
		return fmt.Errorf("%w: Password must be at most %d bytes when encoded as UTF-8.", common.ErrPasswordTooLong, MaxPasswordLength)
	}
	return nil
}

// ClassifyPassword returns Strong when p has at least one ASCII lowercase
// letter, one ASCII uppercase letter, one digit and one PasswordSymbols
// character. It is pure and ignores length.
func ClassifyPassword(p string) Strength {
	var lower, upper, digit, symbol bool
	for _, r := range p {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(PasswordSymbols, r):
			symbol = true
		}
	}
	if lower && upper && digit && symbol {
		return Strong
	}
	return Weak
}

// ValidatePassword applies the length bounds and then the complexity rule
// to a newly chosen password.
func ValidatePassword(p string) error {
	if err := ValidatePasswordLength(p); err != nil {
		return err
	}
	if ClassifyPassword(p) == Weak {
		return fmt.Errorf("%w: %s", common.ErrWeakPassword, weakPasswordMessage)
	}
	return nil
}

// PasswordPolicyViolation is the advisory flag returned with a token. The
// bootstrap admin presenting its configured initial password is exempt; the
// exemption never applies to a newly chosen password.
func PasswordPolicyViolation(username, password, bootstrapPassword string) bool {
	if username == common.AdminUsername && bootstrapPassword != "" && password == bootstrapPassword {
		return false
	}
	return ClassifyPassword(password) == Weak
}
