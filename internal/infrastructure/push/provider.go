package push

import (
	"context"
	"os/exec"

	"ordersync/internal/domain"
	"ordersync/pkg/logger"
)

// DesktopProvider delivers notifications through a desktop notifier
// command (notify-send and friends). Delivery is fire-and-forget: a
// missing binary or denied permission is the caller's cue to ignore it.
type DesktopProvider struct {
	command string
	enabled bool
	log     logger.Logger
}

func NewDesktopProvider(command string, enabled bool, log logger.Logger) *DesktopProvider {
	return &DesktopProvider{
		command: command,
		enabled: enabled,
		log:     log,
	}
}

func (p *DesktopProvider) Name() string {
	return "desktop"
}

func (p *DesktopProvider) Enabled() bool {
	return p.enabled && p.command != ""
}

func (p *DesktopProvider) Send(ctx context.Context, n domain.Notification) error {
	return exec.CommandContext(ctx, p.command, n.Title, n.Message).Run()
}

// LogProvider stands in where no desktop capability exists: the
// notification just lands in the log.
type LogProvider struct {
	log logger.Logger
}

func NewLogProvider(log logger.Logger) *LogProvider {
	return &LogProvider{log: log}
}

func (p *LogProvider) Name() string {
	return "log"
}

func (p *LogProvider) Enabled() bool {
	return true
}

func (p *LogProvider) Send(_ context.Context, n domain.Notification) error {
	p.log.Info("System notification", "title", n.Title, "message", n.Message, "type", n.Type)
	return nil
}
