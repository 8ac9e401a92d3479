//go:build !windows

package supervisor

import (
	"context"

	"github.com/openframe-oss/openframe-client/internal/model"
)

// launch spawns tool's agent binary with the standard-spawn path on every
// POSIX target, regardless of SessionType — session placement only
// differentiates launch strategy on Windows.
func launch(ctx context.Context, tool *model.InstalledTool, path string, args []string) (outcome, error) {
	return standardSpawn(ctx, tool.ToolAgentID, path, args)
}
