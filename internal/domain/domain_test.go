package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//
// ----------------------
// UserContext Tests
// ----------------------
//

func TestNewUserContext(t *testing.T) {
	u := NewUserContext("user-1",
		WithCountry("Finland"),
		WithEmail("jane@example.com"),
		WithTenantID(50001),
		WithRole("PolicyAdmin"),
		WithCustomAttribute("plan", "pro"),
	)

	assert.Equal(t, "user-1", u.Identifier())
	assert.Equal(t, "Finland", u.Country())
	assert.Equal(t, "jane@example.com", u.Email())
	assert.Equal(t, 50001, u.TenantID())
	assert.Equal(t, "50001", u.TenantIDString())
	assert.Equal(t, "PolicyAdmin", u.Role())

	v, ok := u.CustomAttribute("plan")
	assert.True(t, ok)
	assert.Equal(t, "pro", v)
}

func TestUserContext_CustomIsCopied(t *testing.T) {
	u := NewUserContext("user-1", WithCustomAttribute("plan", "pro"))

	custom := u.Custom()
	custom["plan"] = "free"
	custom["extra"] = "x"

	v, _ := u.CustomAttribute("plan")
	assert.Equal(t, "pro", v)
	_, ok := u.CustomAttribute("extra")
	assert.False(t, ok)
}

func TestUserContext_EmptyCustomKeyIgnored(t *testing.T) {
	u := NewUserContext("user-1", WithCustomAttribute("", "value"))
	assert.Empty(t, u.Custom())
}

//
// ----------------------
// Credential / Result Tests
// ----------------------
//

func TestProviderCredential_StringMasksSecret(t *testing.T) {
	c := ProviderCredential{Name: "CONFIG_CAT_KEY", Secret: "abc123456"}
	assert.Equal(t, "CONFIG_CAT_KEY=abc1****", c.String())

	short := ProviderCredential{Name: "K", Secret: "ab"}
	assert.Equal(t, "K=****", short.String())
}

func TestEvaluationResult(t *testing.T) {
	r := EvaluationResult{Latency: 1500 * time.Microsecond}
	assert.True(t, r.OK())
	assert.Equal(t, int64(1), r.LatencyMillis())

	r.Err = errors.New("boom")
	assert.False(t, r.OK())
}

//
// ----------------------
// Error Tests
// ----------------------
//

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError("secrets.env", "line 2 has no '=' separator")
	assert.Equal(t, "configuration error [secrets.env]: line 2 has no '=' separator", err.Error())
	assert.True(t, IsConfigurationError(err))

	cause := errors.New("no such file")
	wrapped := NewConfigurationErrorWithCause("secrets.env", "cannot open", cause)
	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, IsConfigurationError(fmt.Errorf("load: %w", wrapped)))
	assert.False(t, IsConfigurationError(cause))
}

func TestProviderInitError(t *testing.T) {
	cause := errors.New("invalid sdk key")
	err := NewProviderInitError("ConfigCat", cause)

	assert.Equal(t, "failed to initialize provider ConfigCat: invalid sdk key", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsProviderInitError(fmt.Errorf("start: %w", err)))
}

func TestEvaluationError(t *testing.T) {
	tests := []struct {
		name     string
		err      *EvaluationError
		wantText string
	}{
		{
			name:     "with wrapped error",
			err:      NewEvaluationError("Flagsmith", "beta", "request failed", errors.New("timeout")),
			wantText: "evaluation error on flag beta from Flagsmith: request failed: timeout",
		},
		{
			name:     "without wrapped error",
			err:      NewEvaluationError("Flagsmith", "beta", "not a boolean", nil),
			wantText: "evaluation error on flag beta from Flagsmith: not a boolean",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantText, tt.err.Error())
			assert.True(t, IsEvaluationError(tt.err))
		})
	}

	var target *EvaluationError
	require.True(t, errors.As(fmt.Errorf("x: %w", tests[0].err), &target))
	assert.Equal(t, "beta", target.FlagKey)
}
