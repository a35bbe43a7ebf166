package playback

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/domain"
	"github.com/dkeye/LiveVoice/internal/metrics"
)

type Result int

const (
	ResultPlaying Result = iota
	ResultStopped
	ResultIgnored
	ResultNothingToPlay
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultPlaying:
		return "playing"
	case ResultStopped:
		return "stopped"
	case ResultIgnored:
		return "ignored"
	case ResultNothingToPlay:
		return "nothing_to_play"
	case ResultFailed:
		return "failed"
	}
	return "unknown"
}

// Request identifies one message to read aloud. PCM, when set, is played
// as-is instead of asking the synthesizer.
type Request struct {
	ID    string
	Text  string
	Voice string
	PCM   []byte
}

// Player reads single messages aloud, one at a time.
type Player struct {
	out     core.OutputContext
	synth   core.Synthesizer
	decoder ChunkDecoder
	voice   string
	logger  zerolog.Logger

	mu        sync.Mutex
	loadingID string
	playingID string
	source    core.Source
	gen       uint64
}

func NewPlayer(out core.OutputContext, synth core.Synthesizer, decoder ChunkDecoder, voice string) *Player {
	if voice == "" {
		voice = domain.DefaultVoice
	}
	return &Player{
		out:     out,
		synth:   synth,
		decoder: decoder,
		voice:   voice,
		logger:  log.With().Str("module", "playback.oneshot").Logger(),
	}
}

// Toggle stops req.ID when it is playing, ignores the call while anything
// is loading, and otherwise replaces the current playback with req.
// It returns once the new audio has started or failed.
func (p *Player) Toggle(ctx context.Context, req Request) Result {
	res := p.toggle(ctx, req)
	metrics.OneShots.WithLabelValues(res.String()).Inc()
	return res
}

func (p *Player) toggle(ctx context.Context, req Request) Result {
	p.mu.Lock()
	if p.playingID != "" && p.playingID == req.ID {
		p.stopLocked()
		p.mu.Unlock()
		return ResultStopped
	}
	if loading := p.loadingID; loading != "" {
		p.mu.Unlock()
		p.logger.Debug().Str("id", req.ID).Str("loading", loading).Msg("toggle ignored while loading")
		return ResultIgnored
	}
	p.stopLocked()
	p.loadingID = req.ID
	gen := p.gen
	p.mu.Unlock()

	buf, res := p.load(ctx, req)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen {
		// Stopped while loading.
		return ResultStopped
	}
	p.loadingID = ""
	if res != ResultPlaying {
		return res
	}
	src, err := p.out.Start(buf, p.out.Now(), func() { p.ended(gen) })
	if err != nil {
		p.logger.Warn().Err(err).Str("id", req.ID).Msg("start one-shot")
		return ResultFailed
	}
	p.source = src
	p.playingID = req.ID
	return ResultPlaying
}

func (p *Player) load(ctx context.Context, req Request) (*core.Buffer, Result) {
	pcm := req.PCM
	if pcm == nil {
		voice := req.Voice
		if voice == "" {
			voice = p.voice
		}
		var err error
		pcm, err = p.synth.Synthesize(ctx, req.Text, voice)
		if err != nil {
			p.logger.Warn().Err(err).Str("id", req.ID).Msg("synthesize failed")
			return nil, ResultFailed
		}
	}
	if len(pcm) == 0 {
		return nil, ResultNothingToPlay
	}
	buf, err := p.decoder.Decode(domain.InboundAudioChunk{Data: pcm})
	if err != nil {
		p.logger.Warn().Err(err).Str("id", req.ID).Msg("decode one-shot")
		return nil, ResultFailed
	}
	return buf, ResultPlaying
}

func (p *Player) ended(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen {
		return
	}
	p.playingID = ""
	p.source = nil
	p.gen++
}

// Stop silences the current message and abandons any pending load.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	if p.source != nil {
		p.source.Stop()
		p.source = nil
	}
	p.playingID = ""
	p.loadingID = ""
	p.gen++
}

// State reports the loading and playing ids; empty means none.
func (p *Player) State() (loading, playing string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadingID, p.playingID
}
