package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTelemetryFlushedAfterFailure(t *testing.T) {
	inTempDir(t)

	flushes := 0
	original := flushTelemetry
	flushTelemetry = func() { flushes++ }
	t.Cleanup(func() {
		flushTelemetry = original
		rootCmd.SetArgs(nil)
	})

	rootCmd.SetArgs([]string{"history", "--kind", "reboot"})
	err := execute(context.Background())
	require.ErrorContains(t, err, `unknown kind "reboot"`)
	require.Equal(t, 1, flushes)

	rootCmd.SetArgs([]string{"schedule", "-n", "1"})
	require.NoError(t, execute(context.Background()))
	require.Equal(t, 2, flushes)
}
