package posenet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"signframes/internal/pose"
	"signframes/internal/services"
)

// CommandEstimator runs an executable once per frame and decodes its stdout.
type CommandEstimator struct {
	Command string
	Args    []string
	Tuning  Tuning
	Timeout time.Duration
}

// NewCommandEstimator builds a CommandEstimator. A non-positive timeout
// disables the per-frame deadline.
func NewCommandEstimator(command string, args []string, tuning Tuning, timeoutSeconds int) *CommandEstimator {
	est := &CommandEstimator{
		Command: strings.TrimSpace(command),
		Args:    append([]string(nil), args...),
		Tuning:  tuning,
	}
	if timeoutSeconds > 0 {
		est.Timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return est
}

// Estimate implements Estimator.
func (e *CommandEstimator) Estimate(ctx context.Context, imagePath string) (pose.RawPose, error) {
	if e.Command == "" {
		return pose.RawPose{}, services.Wrap(services.ErrConfiguration, "posenet", "estimate", "pose command not configured", nil)
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.Command, e.commandArgs(imagePath)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return pose.RawPose{}, ctx.Err()
		}
		return pose.RawPose{}, services.Wrap(services.ErrExternalTool, "posenet", "run estimator",
			fmt.Sprintf("%s: %s", e.Command, strings.TrimSpace(stderr.String())), err)
	}
	raw, err := decodePose(stdout.Bytes())
	if err != nil {
		return pose.RawPose{}, services.Wrap(services.ErrExternalTool, "posenet", "parse estimator output", e.Command, err)
	}
	return raw, nil
}

func (e *CommandEstimator) commandArgs(imagePath string) []string {
	args := make([]string, 0, len(e.Args)+5)
	substituted := false
	for _, arg := range e.Args {
		if strings.Contains(arg, ImagePlaceholder) {
			substituted = true
			arg = strings.ReplaceAll(arg, ImagePlaceholder, imagePath)
		}
		args = append(args, arg)
	}
	args = append(args, e.Tuning.flags()...)
	if !substituted {
		args = append(args, imagePath)
	}
	return args
}
