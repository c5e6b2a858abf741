package auth

import (
	"strings"
	"testing"

	"github.com/dmitrijs2005/khazana/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPassword(t *testing.T) {
	tests := []struct {
		password string
		want     Strength
	}{
		{"Admin@123", Strong},
		{"alllowercase1!", Weak},
		{"Abcdef1!", Strong},
		{"abcdef1!", Weak},
		{"ABCDEF1!", Weak},
		{"Abcdefg!", Weak},
		{"Abcdefg1", Weak},
		{"admin", Weak},
		{"Pa55w0rd`", Strong},
		{"Pa55w0rd\\", Strong},
		{"Pa55w0rd=", Weak},
		{"Pässw0rd-", Strong},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyPassword(tt.password))
			assert.Equal(t, tt.want, ClassifyPassword(tt.password), "classification must be stable")
		})
	}
}

func TestValidatePasswordLength(t *testing.T) {
	require.ErrorIs(t, ValidatePasswordLength("Ab1!"), common.ErrPasswordTooShort)
	require.ErrorIs(t, ValidatePasswordLength(strings.Repeat("a", 7)), common.ErrPasswordTooShort)
	require.NoError(t, ValidatePasswordLength(strings.Repeat("a", 8)))
	require.NoError(t, ValidatePasswordLength(strings.Repeat("a", 72)))
	require.ErrorIs(t, ValidatePasswordLength(strings.Repeat("a", 73)), common.ErrPasswordTooLong)

	err := ValidatePasswordLength(strings.Repeat("a", 73))
	assert.Contains(t, err.Error(), "at most 72 characters")

	err = ValidatePasswordLength(strings.Repeat("ж", 40))
	require.ErrorIs(t, err, common.ErrPasswordTooLong)
	assert.Contains(t, err.Error(), "at most 72 bytes")
	assert.NotContains(t, err.Error(), "characters")
}

func TestValidatePassword_LengthBeforeComplexity(t *testing.T) {
	err := ValidatePassword("ab")
	require.ErrorIs(t, err, common.ErrPasswordTooShort)
	require.NotErrorIs(t, err, common.ErrWeakPassword)

	err = ValidatePassword("abcdefgh")
	require.ErrorIs(t, err, common.ErrWeakPassword)
	assert.Contains(t, err.Error(), "1 uppercase")

	require.NoError(t, ValidatePassword("Abcdef1!"))
}

func TestPasswordPolicyViolation_BootstrapExemption(t *testing.T) {
	assert.False(t, PasswordPolicyViolation("admin", "admin", "admin"))
	assert.True(t, PasswordPolicyViolation("alice", "admin", "admin"), "exemption is only for the admin identity")
	assert.True(t, PasswordPolicyViolation("admin", "password", "admin"))
	assert.True(t, PasswordPolicyViolation("admin", "admin", ""))
	assert.False(t, PasswordPolicyViolation("alice", "Abcdef1!", "admin"))

	require.ErrorIs(t, ValidatePassword("admin"), common.ErrPasswordTooShort, "the bootstrap literal is never a valid new password")
}
