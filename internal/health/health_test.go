package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleReturnsPlausibleValues(t *testing.T) {
	snap := Sample()
	assert.GreaterOrEqual(t, snap.NumCPU, 1)
	assert.GreaterOrEqual(t, snap.NumGoroutine, 1)
	assert.GreaterOrEqual(t, snap.CPUPercent, 0.0)
	assert.GreaterOrEqual(t, snap.MemUsedPct, 0.0)
}

func TestWorkerCountHonorsConfiguredValue(t *testing.T) {
	assert.Equal(t, 4, WorkerCount(4))
}

func TestWorkerCountFallsBackToNumCPU(t *testing.T) {
	assert.GreaterOrEqual(t, WorkerCount(0), 1)
}
