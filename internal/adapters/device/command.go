// Package device captures local microphones and cameras.
package device

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
)

// Placeholders substituted into configured command lines.
const (
	PlaceholderDevice = "{device}"
	PlaceholderRate   = "{rate}"
	PlaceholderWidth  = "{width}"
	PlaceholderHeight = "{height}"
)

// DefaultMicCommand is the ffmpeg microphone command for goos.
func DefaultMicCommand(goos string) string {
	switch goos {
	case "darwin":
		return "ffmpeg -hide_banner -loglevel error -f avfoundation -i :0 -ac 1 -ar {rate} -f s16le -"
	case "windows":
		return "ffmpeg -hide_banner -loglevel error -f dshow -i audio=default -ac 1 -ar {rate} -f s16le -"
	}
	return "ffmpeg -hide_banner -loglevel error -f pulse -i default -ac 1 -ar {rate} -f s16le -"
}

// DefaultCameraCommand is the ffmpeg camera command for goos. It emits raw
// RGBA frames of a fixed size.
func DefaultCameraCommand(goos string) string {
	input := "-f v4l2 -i {device}"
	if goos == "darwin" {
		input = "-f avfoundation -framerate 30 -i {device}"
	}
	return "ffmpeg -hide_banner -loglevel error " + input +
		" -vf fps=2,scale={width}:{height} -f rawvideo -pix_fmt rgba -"
}

// buildCommand parses a command template and fills its placeholders.
func buildCommand(tmpl string, vars map[string]string) ([]string, error) {
	args, err := shellwords.NewParser().Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("command empty")
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, k, v)
	}
	r := strings.NewReplacer(pairs...)
	for i, a := range args {
		args[i] = r.Replace(a)
	}
	return args, nil
}

func itoa(n int) string { return strconv.Itoa(n) }

// process is a child whose stdout carries media.
type process struct {
	cmd  *exec.Cmd
	once sync.Once
}

func startProcess(args []string) (*process, *exec.Cmd, error) {
	if _, err := exec.LookPath(args[0]); err != nil {
		return nil, nil, fmt.Errorf("%s not found in PATH: %w", args[0], err)
	}
	cmd := exec.Command(args[0], args[1:]...)
	return &process{cmd: cmd}, cmd, nil
}

func (p *process) stop() {
	p.once.Do(func() {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
			_ = p.cmd.Wait()
		}
	})
}

var hostOS = runtime.GOOS
