// Package speaker writes rendered playback to an output device.
package speaker

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveVoice/internal/codec"
)

const DefaultPlayerCommand = "ffplay -nodisp -autoexit -loglevel error -f s16le -ar {rate} -ac 1 -i pipe:0"

// FFplay pipes s16le mono into an ffplay child.
type FFplay struct {
	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func NewFFplay(command string, rate int) (*FFplay, error) {
	if command == "" {
		command = DefaultPlayerCommand
	}
	args, err := shellwords.NewParser().Parse(strings.ReplaceAll(command, "{rate}", strconv.Itoa(rate)))
	if err != nil {
		return nil, fmt.Errorf("parse player command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("player command empty")
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		return nil, fmt.Errorf("%s is required for playback: %w", args[0], err)
	}
	cmd := exec.Command(args[0], args[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open player stdin: %w", err)
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start player: %w", err)
	}
	log.Info().Str("module", "speaker").Str("cmd", args[0]).Int("rate", rate).Msg("player started")
	return &FFplay{cmd: cmd, stdin: stdin}, nil
}

func (p *FFplay) Write(samples []float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdin == nil {
		return errors.New("player closed")
	}
	_, err := p.stdin.Write(codec.EncodePCM16(samples))
	return err
}

func (p *FFplay) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdin == nil {
		return nil
	}
	_ = p.stdin.Close()
	p.stdin = nil
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.cmd.Wait()
	return nil
}
