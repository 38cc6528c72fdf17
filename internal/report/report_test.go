package report

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/logger"
)

func sampleResults() []domain.EvaluationResult {
	return []domain.EvaluationResult{
		{Provider: "ConfigCat", FlagKey: "isMyFirstFeatureEnabled", Value: true, Latency: 3 * time.Millisecond},
		{Provider: "LaunchDarkly", FlagKey: "isMyFirstFeatureEnabled", Value: false, Latency: 1500 * time.Microsecond},
		{Provider: "Flagsmith", FlagKey: "isMyFirstFeatureEnabled", Latency: 250 * time.Millisecond, Err: errors.New("timeout")},
	}
}

func TestLine(t *testing.T) {
	results := sampleResults()

	assert.Equal(t, "retrieved isMyFirstFeatureEnabled value from ConfigCat in 3 ms: true", Line(results[0]))
	assert.Equal(t, "retrieved isMyFirstFeatureEnabled value from LaunchDarkly in 1 ms: false", Line(results[1]))
	assert.Equal(t, "failed to retrieve isMyFirstFeatureEnabled from Flagsmith in 250 ms: timeout", Line(results[2]))
}

func TestConsole_Report(t *testing.T) {
	buf := &bytes.Buffer{}
	c := NewConsole(buf)

	require.NoError(t, c.Report(context.Background(), sampleResults()))

	want := ClearScreen +
		"retrieved isMyFirstFeatureEnabled value from ConfigCat in 3 ms: true\n" +
		"retrieved isMyFirstFeatureEnabled value from LaunchDarkly in 1 ms: false\n" +
		"failed to retrieve isMyFirstFeatureEnabled from Flagsmith in 250 ms: timeout\n"
	assert.Equal(t, want, buf.String())
}

func TestConsole_WithoutClear(t *testing.T) {
	buf := &bytes.Buffer{}
	c := NewConsole(buf, WithoutClear())

	require.NoError(t, c.Report(context.Background(), sampleResults()[:1]))

	assert.Equal(t, "retrieved isMyFirstFeatureEnabled value from ConfigCat in 3 ms: true\n", buf.String())
}

func TestLog_Report(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewLog(logger.New(logger.WithOutput(buf), logger.WithLevel(slog.LevelDebug)), slog.LevelDebug)

	require.NoError(t, l.Report(context.Background(), sampleResults()))

	out := buf.String()
	assert.Contains(t, out, `level=DEBUG msg="flag evaluated" provider=ConfigCat`)
	assert.Contains(t, out, "value=true")
	assert.Contains(t, out, `level=WARN msg="flag evaluation failed" provider=Flagsmith`)
	assert.Contains(t, out, "error=timeout")
}

func TestMulti_Report(t *testing.T) {
	var calls int
	ok := ReporterFunc(func(ctx context.Context, results []domain.EvaluationResult) error {
		calls++
		return nil
	})
	failing := ReporterFunc(func(ctx context.Context, results []domain.EvaluationResult) error {
		calls++
		return errors.New("write failed")
	})

	err := Multi{failing, ok}.Report(context.Background(), sampleResults())

	assert.EqualError(t, err, "write failed")
	assert.Equal(t, 2, calls)
}
