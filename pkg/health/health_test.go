package health_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/hacluster/pcsd/pkg/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDChecker_AliveProcess(t *testing.T) {
	checker := health.NewPIDChecker(os.Getpid())
	result := checker.Check(context.Background())
	assert.True(t, result.Healthy)
}

func TestPIDChecker_DeadProcess(t *testing.T) {
	// PID 1 typically exists, so pick one astronomically unlikely to.
	checker := health.NewPIDChecker(1 << 30)
	result := checker.Check(context.Background())
	assert.False(t, result.Healthy)
}

func TestStatus_HysteresisBeforeRetriesExhausted(t *testing.T) {
	cfg := health.Config{Retries: 3}
	now := time.Unix(0, 0)
	status := health.NewStatus(now)

	status.Update(health.Result{Healthy: false, CheckedAt: now}, cfg)
	assert.True(t, status.Healthy, "one failure must not flip healthy yet")

	status.Update(health.Result{Healthy: false, CheckedAt: now}, cfg)
	assert.True(t, status.Healthy)

	status.Update(health.Result{Healthy: false, CheckedAt: now}, cfg)
	assert.False(t, status.Healthy, "third consecutive failure exhausts retries")
}

func TestStatus_SuccessResetsFailureStreak(t *testing.T) {
	cfg := health.Config{Retries: 2}
	now := time.Unix(0, 0)
	status := health.NewStatus(now)

	status.Update(health.Result{Healthy: false, CheckedAt: now}, cfg)
	status.Update(health.Result{Healthy: true, CheckedAt: now}, cfg)

	assert.Equal(t, 0, status.ConsecutiveFailures)
	assert.True(t, status.Healthy)
}

func TestStatus_InStartPeriod(t *testing.T) {
	started := time.Unix(100, 0)
	cfg := health.Config{StartPeriod: 10 * time.Second}
	status := health.NewStatus(started)

	require.True(t, status.InStartPeriod(cfg, started.Add(5*time.Second)))
	require.False(t, status.InStartPeriod(cfg, started.Add(11*time.Second)))
}
