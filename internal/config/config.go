package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	Live    LiveConfig    `mapstructure:"live"`
	Audio   AudioConfig   `mapstructure:"audio"`
	Capture CaptureConfig `mapstructure:"capture"`
	Session SessionConfig `mapstructure:"session"`
	TTS     TTSConfig     `mapstructure:"tts"`
	Policy  PolicyConfig  `mapstructure:"policy"`
}

type LiveConfig struct {
	URL               string        `mapstructure:"url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	Voice             string        `mapstructure:"voice"`
	SystemInstruction string        `mapstructure:"system_instruction"`
	SetupTimeout      time.Duration `mapstructure:"setup_timeout"`
	SendBuffer        int           `mapstructure:"send_buffer"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type AudioConfig struct {
	InputRate     int           `mapstructure:"input_rate"`
	OutputRate    int           `mapstructure:"output_rate"`
	BlockSize     int           `mapstructure:"block_size"`
	Sink          string        `mapstructure:"sink"`
	PlayerCommand string        `mapstructure:"player_command"`
	Period        time.Duration `mapstructure:"period"`
}

type CaptureConfig struct {
	Backend       string            `mapstructure:"backend"`
	MicCommand    string            `mapstructure:"mic_command"`
	CameraCommand string            `mapstructure:"camera_command"`
	Cameras       map[string]string `mapstructure:"cameras"`
	Width         int               `mapstructure:"width"`
	Height        int               `mapstructure:"height"`
	VideoInterval time.Duration     `mapstructure:"video_interval"`
	VideoScale    float64           `mapstructure:"video_scale"`
	JPEGQuality   int               `mapstructure:"jpeg_quality"`
	AudioOnly     bool              `mapstructure:"audio_only"`
}

type SessionConfig struct {
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	FacingMode  string        `mapstructure:"facing_mode"`
	Autostart   bool          `mapstructure:"autostart"`
}

type Pronunciation struct {
	Pattern     string `mapstructure:"pattern"`
	Replacement string `mapstructure:"replacement"`
	IgnoreCase  bool   `mapstructure:"ignore_case"`
}

type TTSConfig struct {
	Model          string          `mapstructure:"model"`
	Voice          string          `mapstructure:"voice"`
	Timeout        time.Duration   `mapstructure:"timeout"`
	Pronunciations []Pronunciation `mapstructure:"pronunciations"`
}

type PolicyConfig struct {
	SlowAfter       int           `mapstructure:"slow_after"`
	CommandLimit    int           `mapstructure:"command_limit"`
	CommandInterval time.Duration `mapstructure:"command_interval"`
}

const (
	BackendFFmpeg    = "ffmpeg"
	BackendPortAudio = "portaudio"
	BackendWebRTC    = "webrtc"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "")
	v.SetDefault("log_level", "info")

	v.SetDefault("live.url", "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent")
	v.SetDefault("live.api_key", "")
	v.SetDefault("live.model", "gemini-2.5-flash-native-audio-preview-09-2025")
	v.SetDefault("live.voice", "Kore")
	v.SetDefault("live.system_instruction", "")
	v.SetDefault("live.setup_timeout", "10s")
	v.SetDefault("live.send_buffer", 64)
	v.SetDefault("live.write_timeout", "5s")

	v.SetDefault("audio.input_rate", 16000)
	v.SetDefault("audio.output_rate", 24000)
	v.SetDefault("audio.block_size", 4096)
	v.SetDefault("audio.sink", "null")
	v.SetDefault("audio.player_command", "")
	v.SetDefault("audio.period", "20ms")

	v.SetDefault("capture.backend", BackendFFmpeg)
	v.SetDefault("capture.mic_command", "")
	v.SetDefault("capture.camera_command", "")
	v.SetDefault("capture.cameras", map[string]string{})
	v.SetDefault("capture.width", 640)
	v.SetDefault("capture.height", 480)
	v.SetDefault("capture.video_interval", "1s")
	v.SetDefault("capture.video_scale", 0.5)
	v.SetDefault("capture.jpeg_quality", 60)
	v.SetDefault("capture.audio_only", false)

	v.SetDefault("session.settle_delay", "500ms")
	v.SetDefault("session.facing_mode", "user")
	v.SetDefault("session.autostart", false)

	v.SetDefault("tts.model", "gemini-2.5-flash-preview-tts")
	v.SetDefault("tts.voice", "Kore")
	v.SetDefault("tts.timeout", "45s")
	v.SetDefault("tts.pronunciations", []map[string]any{
		{"pattern": "Codenyl", "replacement": "Code-nile", "ignore_case": true},
		{"pattern": "SIBO", "replacement": "See-bo"},
		{"pattern": "sibo", "replacement": "see-bo"},
		{"pattern": "Aaradhy", "replacement": "Ah-rad-hee", "ignore_case": true},
	})

	v.SetDefault("policy.slow_after", 50)
	v.SetDefault("policy.command_limit", 10)
	v.SetDefault("policy.command_interval", "10s")
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("livevoice", pflag.ContinueOnError)
	fs.String("config-env", "", "config file suffix: config/config.<env>.yaml (env CONFIG_ENV, default dev)")
	fs.Int("port", 8080, "control server port")
	fs.String("facing", "user", "initial camera facing mode (user|environment)")
	fs.Bool("autostart", false, "start a live session on launch")
	fs.String("log-level", "info", "log level")
	fs.String("sink", "null", "audio output (null|ffplay|portaudio)")
	fs.String("backend", BackendFFmpeg, "capture backend (ffmpeg|portaudio|webrtc)")
	return fs
}

var flagKeys = map[string]string{
	"port":      "port",
	"facing":    "session.facing_mode",
	"autostart": "session.autostart",
	"log-level": "log_level",
	"sink":      "audio.sink",
	"backend":   "capture.backend",
}

// Load reads .env, the config file, LIVEVOICE_* env vars and args, in
// increasing priority.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	env, _ := fs.GetString("config-env")
	if env == "" {
		env = os.Getenv("CONFIG_ENV")
	}
	if env == "" {
		env = "dev"
	}
	v.SetConfigName("config." + env)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("LIVEVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		log.Info().Str("module", "config").Str("env", env).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", v.ConfigFileUsed()).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Live.APIKey == "" {
		cfg.Live.APIKey = firstEnv("GEMINI_API_KEY", "API_KEY")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("backend", cfg.Capture.Backend).
		Str("sink", cfg.Audio.Sink).
		Msg("config ready")
	return &cfg, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func (c *Config) validate() error {
	switch c.Capture.Backend {
	case BackendFFmpeg, BackendPortAudio, BackendWebRTC:
	default:
		return fmt.Errorf("config: unknown capture.backend %q", c.Capture.Backend)
	}
	switch c.Session.FacingMode {
	case "", "user", "environment":
	default:
		return fmt.Errorf("config: unknown session.facing_mode %q", c.Session.FacingMode)
	}
	if c.Audio.InputRate <= 0 || c.Audio.OutputRate <= 0 || c.Audio.BlockSize <= 0 {
		return errors.New("config: audio rates and block size must be positive")
	}
	if c.Capture.VideoScale <= 0 || c.Capture.VideoScale > 1 {
		return fmt.Errorf("config: capture.video_scale %v out of (0, 1]", c.Capture.VideoScale)
	}
	return nil
}
