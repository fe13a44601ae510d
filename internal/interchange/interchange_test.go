package interchange

import (
	"testing"

	"github.com/stretchr/testify/require"

	"icx.sh/interchange/internal/config"
	"icx.sh/interchange/internal/monitor"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	port := 0
	return &config.Config{
		ClientAddress:      "127.0.0.1",
		ClientPorts:        [3]int{0, 0, 0},
		WorkerPort:         &port,
		WorkerPortRange:    [2]int{0, 0},
		HeartbeatThreshold: 120,
		LoggingLevel:       "error",
		PollPeriod:         50,
		ManagerSelector:    "random",
		RunID:              "test-run",
		ParslVersion:       "2024.01.01",
		PythonVersion:      "3.11.4",
	}
}

func TestNewBindsAllEndpointsAndStops(t *testing.T) {
	ic, err := New(testConfig(t))
	require.NoError(t, err)
	require.NotNil(t, ic.bus)
	require.NotNil(t, ic.loop)

	ic.Stop()
}

func TestNewWithMonitoringDisabledUsesNopSink(t *testing.T) {
	ic, err := New(testConfig(t))
	require.NoError(t, err)
	defer ic.Stop()

	_, ok := ic.monitorSink.(monitor.NopSink)
	require.True(t, ok)
	require.False(t, ic.monitor.Enabled())
}
