package utils

import (
	"context"
	"os/exec"
	"time"
)

// ExecWith builds a command that is killed when ctx is cancelled.
func ExecWith(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	// bound Wait when a grandchild keeps the pipes open
	cmd.WaitDelay = 2 * time.Second
	return cmd
}
