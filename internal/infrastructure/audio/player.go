package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"ordersync/internal/domain"
	"ordersync/pkg/logger"
)

// CommandPlayer loops an alert sound by re-running a system player
// command until the playback handle is stopped.
type CommandPlayer struct {
	command string
	sound   string
	volume  float64
	log     logger.Logger
}

func NewCommandPlayer(command, sound string, volume float64, log logger.Logger) *CommandPlayer {
	return &CommandPlayer{
		command: command,
		sound:   sound,
		volume:  volume,
		log:     log,
	}
}

func (p *CommandPlayer) Play(key string) (domain.Playback, error) {
	if p.command == "" {
		return nil, errors.New("no player command configured")
	}
	if _, err := os.Stat(p.sound); err != nil {
		return nil, fmt.Errorf("alert sound unavailable: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go p.loop(ctx, key)

	return &playback{cancel: cancel}, nil
}

func (p *CommandPlayer) loop(ctx context.Context, key string) {
	for {
		cmd := exec.CommandContext(ctx, p.command, p.args()...)
		err := cmd.Run()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.log.Error("Alert playback command failed", "key", key, "error", err)
			return
		}
	}
}

func (p *CommandPlayer) args() []string {
	// paplay takes volume on a 0..65536 scale; other players get the
	// bare file and play at device volume.
	if p.command == "paplay" && p.volume > 0 {
		return []string{"--volume=" + strconv.Itoa(int(p.volume*65536)), p.sound}
	}
	return []string{p.sound}
}

type playback struct {
	cancel context.CancelFunc
}

func (p *playback) Stop() {
	p.cancel()
}
