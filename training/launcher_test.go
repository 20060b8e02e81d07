package training

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- worker process lifecycle ---

// TestExecLauncher_WorkerOutlivesLauncherContext covers the shared-worker
// lifetime: the participant that wins the launch race hands its request
// context to Launch, and that participant may disconnect (or finish its
// handshake) while the others are still training against the worker.
// Cancelling the launcher's context must not kill the process.
func TestExecLauncher_WorkerOutlivesLauncherContext(t *testing.T) {
	launcher := NewExecLauncher("sh", []string{"-c", "sleep 30"}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	handle, err := launcher.Launch(ctx, LaunchSpec{
		ConfigurationID: uuid.New(),
		Round:           1,
	})
	require.NoError(t, err)

	// The launching participant goes away.
	cancel()

	done := make(chan error, 1)
	go func() { done <- handle.Wait() }()

	select {
	case err := <-done:
		t.Fatalf("worker died with the launcher's context: %v", err)
	case <-time.After(500 * time.Millisecond):
		// Still running.
	}

	// Stop remains the kill path.
	require.NoError(t, handle.Stop())
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit after Stop")
	}
}

func TestExecLauncher_StartFailure(t *testing.T) {
	launcher := NewExecLauncher("/nonexistent/aggregation-worker", nil, zap.NewNop())

	_, err := launcher.Launch(context.Background(), LaunchSpec{
		ConfigurationID: uuid.New(),
		Round:           1,
	})
	assert.Error(t, err)
}

func TestExecLauncher_WaitReportsExit(t *testing.T) {
	launcher := NewExecLauncher("true", nil, zap.NewNop())

	handle, err := launcher.Launch(context.Background(), LaunchSpec{
		ConfigurationID: uuid.New(),
		Round:           1,
	})
	require.NoError(t, err)
	assert.NoError(t, handle.Wait())
}
