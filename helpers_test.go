package pennant

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/provider/providertest"
)

func writeSecrets(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func demoUser() User {
	return NewUser("##SOME-USER-IDENTIFIER##",
		UserCountry("Finland"),
		UserEmail("jane@example.com"),
		UserTenantID(50001),
		UserRole("PolicyAdmin"),
	)
}

// collectingReporter keeps every reported iteration.
type collectingReporter struct {
	mu      sync.Mutex
	batches [][]Result
}

func (r *collectingReporter) Report(ctx context.Context, results []domain.EvaluationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, append([]Result(nil), results...))
	return nil
}

func (r *collectingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *collectingReporter) last() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.batches) == 0 {
		return nil
	}
	return r.batches[len(r.batches)-1]
}

func fakeRegistration(name, credential string, value bool) (*providertest.Fake, Registration) {
	f := providertest.New(name, value)
	return f, f.Registration(credential)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
