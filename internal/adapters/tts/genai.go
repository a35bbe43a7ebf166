package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/dkeye/LiveVoice/internal/domain"
)

const DefaultModel = "gemini-2.5-flash-preview-tts"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAI synthesizes speech with a single GenerateContent call.
type GenAI struct {
	models   contentGenerator
	model    string
	rewriter *Rewriter
	timeout  time.Duration
}

func NewGenAI(ctx context.Context, apiKey, model string, rw *Rewriter, timeout time.Duration) (*GenAI, error) {
	if apiKey == "" {
		return nil, errors.New("tts: api key required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("tts: new client: %w", err)
	}
	return newGenAI(client.Models, model, rw, timeout), nil
}

func newGenAI(models contentGenerator, model string, rw *Rewriter, timeout time.Duration) *GenAI {
	if model == "" {
		model = DefaultModel
	}
	return &GenAI{models: models, model: model, rewriter: rw, timeout: timeout}
}

// Synthesize returns raw PCM16 LE at 24 kHz, or nil when there is nothing
// to say or the response carries no audio.
func (g *GenAI) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if voice == "" {
		voice = domain.DefaultVoice
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(g.rewriter.Apply(text)), &genai.GenerateContentConfig{
		ResponseModalities: []string{domain.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tts: generate: %w", err)
	}
	pcm := firstAudio(resp)
	log.Debug().Str("module", "tts").Str("voice", voice).Int("bytes", len(pcm)).Dur("took", time.Since(start)).Msg("synthesized")
	return pcm, nil
}

func firstAudio(resp *genai.GenerateContentResponse) []byte {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	c := resp.Candidates[0].Content
	if c == nil {
		return nil
	}
	for _, p := range c.Parts {
		if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
			return p.InlineData.Data
		}
	}
	return nil
}
