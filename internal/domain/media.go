package domain

import (
	"fmt"
	"time"
)

type FacingMode string

const (
	FacingUser        FacingMode = "user"
	FacingEnvironment FacingMode = "environment"
)

func (f FacingMode) Opposite() FacingMode {
	if f == FacingEnvironment {
		return FacingUser
	}
	return FacingEnvironment
}

func ParseFacingMode(s string) (FacingMode, error) {
	switch FacingMode(s) {
	case FacingUser, FacingEnvironment:
		return FacingMode(s), nil
	case "":
		return FacingUser, nil
	}
	return "", fmt.Errorf("unknown facing mode %q", s)
}

// VideoConstraint is the video half of a device request. Nil means no video.
// An empty FacingMode means any camera.
type VideoConstraint struct {
	FacingMode FacingMode `json:"facingMode,omitempty"`
}

// DeviceRequest mirrors {audio: bool, video: {facingMode} | false}.
type DeviceRequest struct {
	Audio bool             `json:"audio"`
	Video *VideoConstraint `json:"video,omitempty"`
}

func (r DeviceRequest) String() string {
	switch {
	case r.Video == nil:
		return "audio"
	case r.Video.FacingMode == "":
		return "audio+video(any)"
	}
	return "audio+video(" + string(r.Video.FacingMode) + ")"
}

// AudioFrame is one fixed-size block of mono samples in [-1, 1].
type AudioFrame struct {
	Samples    []float32
	SampleRate int
}

func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// VideoSample is a downscaled compressed still.
type VideoSample struct {
	MimeType string
	Data     []byte
	Width    int
	Height   int
}

// MediaBlob is the outbound payload shape: a mime type plus base64 data.
type MediaBlob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

const (
	MimeJPEG = "image/jpeg"
	MimeOpus = "audio/opus"
)

func PCMMime(rate int) string { return fmt.Sprintf("audio/pcm;rate=%d", rate) }

// InboundAudioChunk is one encoded speech chunk tagged with arrival order.
type InboundAudioChunk struct {
	Seq      uint64
	MimeType string
	Data     []byte
}
