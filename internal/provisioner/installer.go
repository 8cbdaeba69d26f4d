package provisioner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/instanti8/engine/pkg/logger"
	"go.uber.org/zap"
)

// Installer fetches a project's declared dependencies.
type Installer interface {
	Install(ctx context.Context, dir string) error
}

// CommandInstaller runs a package manager command inside the project dir.
type CommandInstaller struct {
	args []string
}

// NewCommandInstaller splits a command line such as "npm install --no-audit".
func NewCommandInstaller(command string) *CommandInstaller {
	return &CommandInstaller{args: strings.Fields(command)}
}

func (c *CommandInstaller) Install(ctx context.Context, dir string) error {
	if len(c.args) == 0 {
		return fmt.Errorf("no install command configured")
	}
	cmd := exec.CommandContext(ctx, c.args[0], c.args[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "NPM_CONFIG_UPDATE_NOTIFIER=false", "NPM_CONFIG_FUND=false")

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	logger.L().Debug("installing project dependencies", zap.String("dir", dir), zap.Strings("command", c.args))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", c.args[0], ctx.Err())
		}
		return fmt.Errorf("%s failed: %w: %s", c.args[0], err, tail(out.String(), 2048))
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
