package device

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/domain"
)

// FFmpeg captures through ffmpeg child processes: s16le mono audio on
// stdout, and raw RGBA frames for cameras.
type FFmpeg struct {
	MicCommand    string
	CameraCommand string
	// Cameras maps a facing mode to a device name (e.g. /dev/video0).
	Cameras map[domain.FacingMode]string
	Rate    int
	Width   int
	Height  int
}

func NewFFmpeg(micCmd, camCmd string, cameras map[domain.FacingMode]string, rate, width, height int) *FFmpeg {
	if micCmd == "" {
		micCmd = DefaultMicCommand(hostOS)
	}
	if camCmd == "" {
		camCmd = DefaultCameraCommand(hostOS)
	}
	return &FFmpeg{
		MicCommand:    micCmd,
		CameraCommand: camCmd,
		Cameras:       cameras,
		Rate:          rate,
		Width:         width,
		Height:        height,
	}
}

func (f *FFmpeg) GetUserMedia(ctx context.Context, req domain.DeviceRequest) (*core.MediaStream, error) {
	var camera string
	if req.Video != nil {
		var err error
		if camera, err = f.pickCamera(req.Video.FacingMode); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mic, err := f.startMic()
	if err != nil {
		return nil, err
	}
	stream := &core.MediaStream{Audio: mic}
	if camera == "" {
		return stream, nil
	}
	cam, err := f.startCamera(camera)
	if err != nil {
		mic.Stop()
		return nil, err
	}
	stream.Video = cam
	return stream, nil
}

// pickCamera resolves a facing mode; an empty mode takes any known camera.
func (f *FFmpeg) pickCamera(facing domain.FacingMode) (string, error) {
	if facing != "" {
		dev, ok := f.Cameras[facing]
		if !ok || !deviceExists(dev) {
			return "", fmt.Errorf("%w: no %s camera", domain.ErrNoVideoDevice, facing)
		}
		return dev, nil
	}
	keys := make([]string, 0, len(f.Cameras))
	for k := range f.Cameras {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		if dev := f.Cameras[domain.FacingMode(k)]; deviceExists(dev) {
			return dev, nil
		}
	}
	return "", domain.ErrNoVideoDevice
}

func deviceExists(dev string) bool {
	if dev == "" {
		return false
	}
	if strings.HasPrefix(dev, "/dev/") {
		_, err := os.Stat(dev)
		return err == nil
	}
	return true
}

func (f *FFmpeg) startMic() (*micTrack, error) {
	args, err := buildCommand(f.MicCommand, map[string]string{PlaceholderRate: itoa(f.Rate)})
	if err != nil {
		return nil, err
	}
	proc, cmd, err := startProcess(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoInputDevice, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open mic stdout: %w", err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mic capture: %w", err)
	}
	log.Info().Str("module", "device").Str("cmd", args[0]).Int("rate", f.Rate).Msg("microphone started")
	return &micTrack{proc: proc, r: bufio.NewReader(stdout), rate: f.Rate}, nil
}

func (f *FFmpeg) startCamera(dev string) (*cameraTrack, error) {
	args, err := buildCommand(f.CameraCommand, map[string]string{
		PlaceholderDevice: dev,
		PlaceholderWidth:  itoa(f.Width),
		PlaceholderHeight: itoa(f.Height),
	})
	if err != nil {
		return nil, err
	}
	proc, cmd, err := startProcess(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoVideoDevice, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open camera stdout: %w", err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start camera capture: %w", err)
	}
	t := &cameraTrack{proc: proc, width: f.Width, height: f.Height}
	go t.readFrames(stdout)
	log.Info().Str("module", "device").Str("camera", dev).Int("width", f.Width).Int("height", f.Height).Msg("camera started")
	return t, nil
}

// micTrack reads s16le mono from the capture process.
type micTrack struct {
	core.TrackFlag
	proc    *process
	r       io.Reader
	rate    int
	scratch []byte
}

func (m *micTrack) SampleRate() int { return m.rate }

func (m *micTrack) ReadSamples(ctx context.Context, dst []float32) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if m.State() == core.TrackStateEnded {
		return 0, io.EOF
	}
	need := len(dst) * 2
	if cap(m.scratch) < need {
		m.scratch = make([]byte, need)
	}
	buf := m.scratch[:need]
	if _, err := io.ReadFull(m.r, buf); err != nil {
		return 0, err
	}
	for i := range dst {
		dst[i] = float32(int16(binary.LittleEndian.Uint16(buf[2*i:]))) / 32768 //nolint:gosec // PCM16 reinterpretation
	}
	return len(dst), nil
}

func (m *micTrack) Stop() {
	if m.MarkEnded() {
		m.proc.stop()
	}
}

// cameraTrack keeps the most recent frame of the capture process.
type cameraTrack struct {
	core.TrackFlag
	proc   *process
	width  int
	height int

	mu     sync.Mutex
	latest *image.RGBA
}

func (c *cameraTrack) readFrames(r io.Reader) {
	size := c.width * c.height * 4
	br := bufio.NewReaderSize(r, size)
	for {
		img := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
		if _, err := io.ReadFull(br, img.Pix[:size]); err != nil {
			if c.State() != core.TrackStateEnded {
				log.Warn().Err(err).Str("module", "device").Msg("camera stream ended")
			}
			return
		}
		c.mu.Lock()
		c.latest = img
		c.mu.Unlock()
	}
}

func (c *cameraTrack) Snapshot() (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil {
		return nil, false
	}
	return c.latest, true
}

func (c *cameraTrack) Stop() {
	if c.MarkEnded() {
		c.proc.stop()
	}
}
