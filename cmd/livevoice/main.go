package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveVoice/internal/adapters/device"
	router "github.com/dkeye/LiveVoice/internal/adapters/http"
	"github.com/dkeye/LiveVoice/internal/adapters/live"
	"github.com/dkeye/LiveVoice/internal/adapters/rtc"
	wssignal "github.com/dkeye/LiveVoice/internal/adapters/signal"
	"github.com/dkeye/LiveVoice/internal/adapters/speaker"
	"github.com/dkeye/LiveVoice/internal/adapters/tts"
	"github.com/dkeye/LiveVoice/internal/app"
	"github.com/dkeye/LiveVoice/internal/app/orch"
	"github.com/dkeye/LiveVoice/internal/capture"
	"github.com/dkeye/LiveVoice/internal/codec"
	"github.com/dkeye/LiveVoice/internal/config"
	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/domain"
	"github.com/dkeye/LiveVoice/internal/metrics"
	"github.com/dkeye/LiveVoice/internal/playback"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.Live.APIKey == "" {
		log.Fatal().Msg("no API key: set live.api_key, LIVEVOICE_LIVE_API_KEY or GEMINI_API_KEY")
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("livevoice stopped")
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	reg := metrics.NewRegistry()

	mixer := playback.NewMixer(cfg.Audio.OutputRate, cfg.Audio.Period)
	sink, err := speaker.Open(cfg.Audio.Sink, cfg.Audio.PlayerCommand, cfg.Audio.OutputRate, cfg.Audio.Period)
	if err != nil {
		return fmt.Errorf("open audio sink: %w", err)
	}
	go func() {
		defer sink.Close()
		if err := mixer.Run(ctx, sink); err != nil {
			log.Error().Err(err).Msg("audio output stopped")
		}
	}()

	devices, relays, err := openDevices(cfg)
	if err != nil {
		return err
	}

	rw, err := tts.NewRewriter(pronunciations(cfg.TTS.Pronunciations))
	if err != nil {
		return fmt.Errorf("tts pronunciations: %w", err)
	}
	synth, err := tts.NewGenAI(ctx, cfg.Live.APIKey, cfg.TTS.Model, rw, cfg.TTS.Timeout)
	if err != nil {
		return fmt.Errorf("tts client: %w", err)
	}

	dialer := &live.Dialer{URL: cfg.Live.URL, APIKey: cfg.Live.APIKey}
	decoder := codec.NewDecoder(cfg.Audio.OutputRate)
	kind := capture.KindAudioVideo
	if cfg.Capture.AudioOnly {
		kind = capture.KindAudio
	}
	o := orch.New(devices, dialer, mixer, decoder, synth, orch.Options{
		Session: domain.SessionConfig{
			Model:             cfg.Live.Model,
			Voice:             cfg.Live.Voice,
			ResponseModality:  domain.ModalityAudio,
			SystemInstruction: domain.LiveInstruction(cfg.Live.SystemInstruction),
			SetupTimeout:      cfg.Live.SetupTimeout,
			SendBuffer:        cfg.Live.SendBuffer,
			WriteTimeout:      cfg.Live.WriteTimeout,
		},
		Capture: capture.Options{
			BlockSize:     cfg.Audio.BlockSize,
			InputRate:     cfg.Audio.InputRate,
			VideoInterval: cfg.Capture.VideoInterval,
			VideoScale:    cfg.Capture.VideoScale,
			JPEGQuality:   cfg.Capture.JPEGQuality,
		},
		Kind:        kind,
		SettleDelay: cfg.Session.SettleDelay,
	})
	o.Player = playback.NewPlayer(mixer, synth, decoder, cfg.TTS.Voice)
	o.Policy = app.SimplePolicy{SlowAfter: cfg.Policy.SlowAfter}
	if relays != nil {
		o.Relays = relays
	}
	defer o.Close()

	ctl := wssignal.NewSignalWSController(o, wssignal.NewCommandRateLimiter(cfg.Policy.CommandLimit, cfg.Policy.CommandInterval))
	ctl.ReadLimit = cfg.ReadLimit
	ctl.PingPeriod = cfg.PingPeriod

	r := router.SetupRouter(ctx, cfg, o, ctl, reg)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("backend", cfg.Capture.Backend).Msg("LiveVoice server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	if cfg.Session.Autostart {
		facing, _ := domain.ParseFacingMode(cfg.Session.FacingMode)
		if err := o.Start(ctx, facing); err != nil {
			log.Warn().Err(err).Msg("autostart failed")
		}
	}

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	return nil
}

// openDevices picks the capture backend. The webrtc backend also returns
// the relay set fed by browser peers.
func openDevices(cfg *config.Config) (core.MediaDevices, *rtc.RelayManager, error) {
	switch cfg.Capture.Backend {
	case config.BackendPortAudio:
		d, err := device.NewPortAudio(cfg.Audio.InputRate, cfg.Audio.BlockSize)
		if err != nil {
			return nil, nil, fmt.Errorf("open portaudio: %w", err)
		}
		return d, nil, nil
	case config.BackendWebRTC:
		relays := rtc.NewRelayManager()
		return relays, relays, nil
	}
	cameras := make(map[domain.FacingMode]string, len(cfg.Capture.Cameras))
	for facing, dev := range cfg.Capture.Cameras {
		cameras[domain.FacingMode(facing)] = dev
	}
	return device.NewFFmpeg(cfg.Capture.MicCommand, cfg.Capture.CameraCommand, cameras,
		cfg.Audio.InputRate, cfg.Capture.Width, cfg.Capture.Height), nil, nil
}

func pronunciations(ps []config.Pronunciation) []tts.Pronunciation {
	if len(ps) == 0 {
		return tts.DefaultPronunciations
	}
	out := make([]tts.Pronunciation, 0, len(ps))
	for _, p := range ps {
		out = append(out, tts.Pronunciation{Pattern: p.Pattern, Replacement: p.Replacement, IgnoreCase: p.IgnoreCase})
	}
	return out
}
