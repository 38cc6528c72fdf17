package featbit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/featbit/featbit-go-sdk/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/provider"
)

type fakeClient struct {
	initialized bool
	value       bool
	err         error

	lastKey  string
	lastUser interfaces.FBUser
	closed   bool
}

func (f *fakeClient) IsInitialized() bool { return f.initialized }

func (f *fakeClient) BoolVariation(flagKey string, user interfaces.FBUser, defaultValue bool) (bool, error) {
	f.lastKey = flagKey
	f.lastUser = user
	if f.err != nil {
		return defaultValue, f.err
	}
	return f.value, nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func testUser() domain.UserContext {
	return domain.NewUserContext("user-1",
		domain.WithCountry("Finland"),
		domain.WithEmail("jane@example.com"),
		domain.WithTenantID(50001),
		domain.WithRole("PolicyAdmin"),
	)
}

func TestToUser(t *testing.T) {
	u, err := toUser(testUser())
	require.NoError(t, err)

	assert.Equal(t, "user-1", u.GetKey())
	assert.Equal(t, "jane@example.com", u.GetUserName())
	assert.Equal(t, "Finland", u.GetCustom("country"))
	assert.Equal(t, "50001", u.GetCustom("tenantId"))
	assert.Equal(t, "PolicyAdmin", u.GetCustom("role"))
}

func TestProvider_Evaluate(t *testing.T) {
	fc := &fakeClient{initialized: true, value: true}
	p, err := newWithClient(fc)
	require.NoError(t, err)

	value, err := p.Evaluate(context.Background(), "beta", testUser(), false)
	require.NoError(t, err)

	assert.True(t, value)
	assert.Equal(t, "beta", fc.lastKey)
	assert.Equal(t, provider.FeatBit, p.Name())
}

func TestProvider_EvaluateError(t *testing.T) {
	fc := &fakeClient{initialized: true, err: errors.New("flag not found")}
	p, err := newWithClient(fc)
	require.NoError(t, err)

	value, err := p.Evaluate(context.Background(), "beta", testUser(), true)

	assert.True(t, value)
	assert.True(t, domain.IsEvaluationError(err))
}

func TestNewWithClient_NotInitialized(t *testing.T) {
	fc := &fakeClient{}

	p, err := newWithClient(fc)

	assert.Nil(t, p)
	assert.True(t, domain.IsProviderInitError(err))
	assert.True(t, fc.closed)
}

func TestNew_MissingURLs(t *testing.T) {
	p, err := New(context.Background(), domain.ProviderCredential{Name: provider.FeatBitCredential, Secret: "s"}, Config{})

	assert.Nil(t, p)
	assert.True(t, domain.IsProviderInitError(err))
}

func TestStartWait(t *testing.T) {
	assert.Equal(t, 15*time.Second, startWait(context.Background(), 0))
	assert.Equal(t, 3*time.Second, startWait(context.Background(), 3*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	wait := startWait(ctx, 15*time.Second)
	assert.LessOrEqual(t, wait, 2*time.Second)
	assert.Greater(t, wait, time.Second)
}

func TestNewWithDialer_WaitBoundedByDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var gotWait time.Duration
	fc := &fakeClient{initialized: true}
	dial := func(secret string, cfg Config, wait time.Duration) (client, error) {
		assert.Equal(t, "env-secret", secret)
		gotWait = wait
		return fc, nil
	}

	p, err := newWithDialer(ctx, domain.ProviderCredential{Secret: "env-secret"}, DefaultConfig(), dial)
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.LessOrEqual(t, gotWait, 2*time.Second)
	assert.False(t, fc.closed)
}

func TestNewWithDialer_ClosesClientOnError(t *testing.T) {
	fc := &fakeClient{}
	dial := func(secret string, cfg Config, wait time.Duration) (client, error) {
		return fc, errors.New("initialization timeout")
	}

	p, err := newWithDialer(context.Background(), domain.ProviderCredential{}, DefaultConfig(), dial)

	assert.Nil(t, p)
	assert.True(t, domain.IsProviderInitError(err))
	assert.True(t, fc.closed)
}

func TestNewWithDialer_NilClientOnError(t *testing.T) {
	dial := func(secret string, cfg Config, wait time.Duration) (client, error) {
		return nil, errors.New("invalid secret")
	}

	p, err := newWithDialer(context.Background(), domain.ProviderCredential{}, DefaultConfig(), dial)

	assert.Nil(t, p)
	assert.True(t, domain.IsProviderInitError(err))
}

func TestNewWithDialer_ExpiredContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dial := func(secret string, cfg Config, wait time.Duration) (client, error) {
		t.Fatal("dial must not run with a done context")
		return nil, nil
	}

	_, err := newWithDialer(ctx, domain.ProviderCredential{}, DefaultConfig(), dial)

	assert.ErrorIs(t, err, context.Canceled)
}
