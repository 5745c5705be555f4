package wintrack

import (
	"context"
	"os/exec"
	"time"
)

const execTimeout = 2 * time.Second

type runner func(ctx context.Context, name string, args ...string) (string, error)

func execTool(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if ctx.Err() != nil {
		return string(out), ctx.Err()
	}

	return string(out), err
}
