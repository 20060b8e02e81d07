package training

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LaunchSpec is everything an aggregation worker needs for one round.
type LaunchSpec struct {
	ConfigurationID uuid.UUID          `json:"configuration_id"`
	Round           int                `json:"round"`
	LastRound       bool               `json:"last_round"`
	Trial           Trial              `json:"trial"`
	Parameters      TrainingParameters `json:"parameters"`
	ClientCount     int                `json:"client_count"`
	Rounds          int                `json:"rounds"`
	InputSize       int                `json:"input_size"`
	OutputSize      int                `json:"output_size"`
	ComputeShapley  bool               `json:"compute_shapley"`
}

// Handle tracks a launched aggregation worker.
type Handle interface {
	Wait() error
	Stop() error
}

// Launcher starts the external aggregation worker for a round.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Handle, error)
}

// ExecLauncher launches the worker as an OS subprocess, passing the
// round spec as a JSON argument.
type ExecLauncher struct {
	Command string
	Args    []string
	logger  *zap.Logger
}

// NewExecLauncher creates a subprocess launcher for the given command.
func NewExecLauncher(command string, args []string, logger *zap.Logger) *ExecLauncher {
	return &ExecLauncher{
		Command: command,
		Args:    args,
		logger:  logger.With(zap.String("component", "launcher")),
	}
}

func (l *ExecLauncher) Launch(ctx context.Context, spec LaunchSpec) (Handle, error) {
	payload, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("encode launch spec: %w", err)
	}

	args := append(append([]string{}, l.Args...), string(payload))
	// The worker is shared by every participant in the round; it must
	// outlive the launching participant's request. Handle.Stop and
	// process exit are the only kill paths.
	cmd := exec.CommandContext(context.WithoutCancel(ctx), l.Command, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start aggregation worker: %w", err)
	}

	l.logger.Info("aggregation worker started",
		zap.String("configuration", spec.ConfigurationID.String()),
		zap.Int("round", spec.Round),
		zap.Bool("last_round", spec.LastRound),
		zap.Int("pid", cmd.Process.Pid))
	return &processHandle{cmd: cmd}, nil
}

type processHandle struct {
	cmd *exec.Cmd
}

func (h *processHandle) Wait() error {
	return h.cmd.Wait()
}

func (h *processHandle) Stop() error {
	if h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Kill()
}
