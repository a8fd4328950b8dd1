package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOTPPurpose_Valid(t *testing.T) {
	assert.True(t, OTPPurposeVerification.Valid())
	assert.True(t, OTPPurposePasswordReset.Valid())
	assert.True(t, OTPPurposeLogin.Valid())
	assert.False(t, OTPPurpose("mfa").Valid())
	assert.False(t, OTPPurpose("").Valid())
}

func TestOTPCode_IsConsumable(t *testing.T) {
	code := &OTPCode{
		Code:      "004521",
		Purpose:   OTPPurposeLogin,
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	assert.True(t, code.IsConsumable())

	code.Used = true
	assert.False(t, code.IsConsumable())
}

func TestOTPCode_IsExpired(t *testing.T) {
	code := &OTPCode{ExpiresAt: time.Now().Add(-time.Second)}
	assert.True(t, code.IsExpired())
	assert.False(t, code.IsConsumable())

	// Boundary: a code expiring exactly now is no longer consumable.
	code.ExpiresAt = time.Now()
	assert.True(t, code.IsExpired())
}
