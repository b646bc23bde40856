package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode         string        `mapstructure:"mode"`
	Port         int           `mapstructure:"port"`
	StaticPath   string        `mapstructure:"static_path"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	PongWait     time.Duration `mapstructure:"pong_wait"`
	WriteWait    time.Duration `mapstructure:"write_wait"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	Secret       string        `mapstructure:"secret"`
	LogLevel     string        `mapstructure:"log_level"`
	Backpressure string        `mapstructure:"backpressure"`
	MessageRate  float64       `mapstructure:"message_rate"`
	MessageBurst int           `mapstructure:"message_burst"`
	ICEServers   []string      `mapstructure:"ice_servers"`
	Transcode    Transcode     `mapstructure:"transcode"`
}

type Transcode struct {
	FFmpegPath      string `mapstructure:"ffmpeg_path"`
	OutputDir       string `mapstructure:"output_dir"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	SegmentSeconds  int    `mapstructure:"segment_seconds"`
	SegmentExt      string `mapstructure:"segment_ext"`
	PruneSuperseded bool   `mapstructure:"prune_superseded"`
}

const envPrefix = "WATCHPARTY"

func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads fileName when present; defaults and WATCHPARTY_* env vars apply either way.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).
		Str("videos", cfg.Transcode.OutputDir).Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("secret", "watchparty-dev-secret")
	v.SetDefault("log_level", "info")
	v.SetDefault("backpressure", "drop")
	v.SetDefault("message_rate", 10)
	v.SetDefault("message_burst", 20)
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("transcode.ffmpeg_path", "ffmpeg")
	v.SetDefault("transcode.output_dir", "./videos")
	v.SetDefault("transcode.public_base_url", "")
	v.SetDefault("transcode.segment_seconds", 10)
	v.SetDefault("transcode.segment_ext", "ts")
	v.SetDefault("transcode.prune_superseded", true)
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.PingPeriod >= c.PongWait {
		return fmt.Errorf("ping_period (%s) must be shorter than pong_wait (%s)", c.PingPeriod, c.PongWait)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("send_buffer must be positive")
	}
	switch c.Backpressure {
	case "drop", "kick":
	default:
		return fmt.Errorf("unknown backpressure policy %q", c.Backpressure)
	}
	if c.Transcode.SegmentSeconds <= 0 {
		return fmt.Errorf("transcode.segment_seconds must be positive")
	}
	c.Transcode.SegmentExt = strings.TrimPrefix(strings.TrimSpace(c.Transcode.SegmentExt), ".")
	if c.Transcode.SegmentExt == "" {
		return fmt.Errorf("transcode.segment_ext must not be empty")
	}
	c.Transcode.PublicBaseURL = strings.TrimSuffix(c.Transcode.PublicBaseURL, "/")
	return nil
}
