package pennant

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/provider"
	"github.com/OrlandoBitencourt/pennant/internal/provider/providertest"
	"github.com/OrlandoBitencourt/pennant/internal/report"
)

// secretCapture records the credential each factory received.
type secretCapture struct {
	mu      sync.Mutex
	secrets map[string]string
}

func (c *secretCapture) registration(name, credential string, value bool) Registration {
	f := providertest.New(name, value)
	return Registration{
		Name:       name,
		Credential: credential,
		Factory: func(ctx context.Context, cred domain.ProviderCredential) (FlagProvider, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.secrets == nil {
				c.secrets = map[string]string{}
			}
			c.secrets[name] = cred.Secret
			return f, nil
		},
	}
}

func (c *secretCapture) secret(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.secrets[name]
}

func TestIntegration_SecretsFile(t *testing.T) {
	path := writeSecrets(t, "CONFIG_CAT_KEY=abc123\nFLAGSMITH_KEY=fs-key\n")
	capture := &secretCapture{}
	var out bytes.Buffer

	client, err := New(
		WithSecretsFile(path),
		WithUser(demoUser()),
		WithProvider(capture.registration(provider.ConfigCat, provider.ConfigCatCredential, true)),
		WithProvider(capture.registration(provider.Flagsmith, provider.FlagsmithCredential, false)),
		WithPollInterval(time.Hour),
		WithReporter(report.NewConsole(&out, report.WithoutClear())),
	)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, client.Start(ctx))
	defer client.Stop()

	assert.Equal(t, "abc123", capture.secret(provider.ConfigCat))
	assert.Equal(t, "fs-key", capture.secret(provider.Flagsmith))

	results, err := client.RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Value)
	assert.False(t, results[1].Value)

	require.NoError(t, client.Stop())
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.True(t, strings.HasPrefix(lines[0], "retrieved isMyFirstFeatureEnabled value from ConfigCat in "), lines[0])
	assert.True(t, strings.HasSuffix(lines[0], " ms: true"), lines[0])
	assert.Contains(t, lines[1], "from Flagsmith")
	assert.True(t, strings.HasSuffix(lines[1], ": false"), lines[1])
}

func TestIntegration_MissingCredential(t *testing.T) {
	path := writeSecrets(t, "CONFIG_CAT_KEY=abc123\n")
	capture := &secretCapture{}
	rec := &collectingReporter{}

	client, err := New(
		WithSecretsFile(path),
		WithProvider(capture.registration(provider.ConfigCat, provider.ConfigCatCredential, true)),
		WithProvider(capture.registration("Missing", "MISSING_KEY", true)),
		WithReporter(rec),
	)
	require.NoError(t, err)

	err = client.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err), "got %v", err)
	assert.Contains(t, err.Error(), "MISSING_KEY")
	assert.Empty(t, capture.secret("Missing"))

	_, err = client.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.Zero(t, rec.count())
}

func TestIntegration_CommentLineRejected(t *testing.T) {
	path := writeSecrets(t, "# demo credentials\nCONFIG_CAT_KEY=abc123\n")
	capture := &secretCapture{}

	client, err := New(
		WithSecretsFile(path),
		WithProvider(capture.registration(provider.ConfigCat, provider.ConfigCatCredential, true)),
	)
	require.NoError(t, err)

	err = client.Start(context.Background())
	assert.True(t, IsConfigurationError(err), "got %v", err)
	assert.Contains(t, err.Error(), "line 1")
	assert.Empty(t, capture.secret(provider.ConfigCat))
}

func TestIntegration_MissingSecretsFile(t *testing.T) {
	_, reg := fakeRegistration(provider.ConfigCat, provider.ConfigCatCredential, true)

	client, err := New(
		WithSecretsFile(t.TempDir()+"/absent.env"),
		WithProvider(reg),
	)
	require.NoError(t, err)

	err = client.Start(context.Background())
	assert.True(t, IsConfigurationError(err), "got %v", err)
}
