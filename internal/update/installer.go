package update

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"updatekit/internal/appcast"
	apperrors "updatekit/internal/errors"
)

// Installer hands a found update to whatever downloads, verifies and installs
// it. updatekit itself never touches the payload.
type Installer interface {
	Install(ctx context.Context, item appcast.Item) error
}

// Error variables for installer failures.
var (
	ErrInstallerNotConfigured = fmt.Errorf("installer command is not configured")
	ErrNoEnclosure            = fmt.Errorf("update item has no enclosure URL")
)

// CommandInstaller runs an external command with the enclosure URL as its
// last argument. The item's version is exported as UK_UPDATE_VERSION and
// UK_UPDATE_BUILD.
type CommandInstaller struct {
	argv []string
	env  []string
}

// InstallerOption configures a CommandInstaller.
type InstallerOption func(*CommandInstaller)

// WithInstallerEnv appends KEY=VALUE pairs to the command environment.
func WithInstallerEnv(env ...string) InstallerOption {
	return func(c *CommandInstaller) {
		c.env = append(c.env, env...)
	}
}

// NewCommandInstaller splits command on whitespace. Quoting is not
// interpreted; wrap complex invocations in a script.
func NewCommandInstaller(command string, opts ...InstallerOption) *CommandInstaller {
	c := &CommandInstaller{argv: strings.Fields(command)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Install runs the command and waits for it.
func (c *CommandInstaller) Install(ctx context.Context, item appcast.Item) error {
	if len(c.argv) == 0 {
		return apperrors.New(apperrors.CodeInstallFailed, "install update", ErrInstallerNotConfigured)
	}
	if item.Enclosure.URL == "" {
		return apperrors.New(apperrors.CodeInstallFailed, "install update", ErrNoEnclosure)
	}

	id := item.Identifier()
	args := append(append([]string{}, c.argv[1:]...), item.Enclosure.URL)
	//nolint:gosec // G204: the installer command comes from user configuration
	cmd := exec.CommandContext(ctx, c.argv[0], args...)
	cmd.Env = append(os.Environ(), c.env...)
	cmd.Env = append(cmd.Env,
		"UK_UPDATE_VERSION="+id.Display,
		"UK_UPDATE_BUILD="+id.Build,
	)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(output.String())
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return apperrors.New(apperrors.CodeInstallFailed, "install "+item.VersionFull(), err)
	}
	return nil
}
