package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	Secret     string `mapstructure:"secret"`
	ServiceURL string `mapstructure:"service_url"`
	SignalURL  string `mapstructure:"signal_url"`
	TTSBaseURL string `mapstructure:"tts_url"`

	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RecordMax      time.Duration `mapstructure:"record_max"`
	RecordChunk    time.Duration `mapstructure:"record_chunk"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	CameraPath     string   `mapstructure:"camera_path"`
	MicrophonePath string   `mapstructure:"microphone_path"`
	PlaybackPath   string   `mapstructure:"playback_path"`
	MediaDir       string   `mapstructure:"media_dir"`
	STUNServers    []string `mapstructure:"stun_servers"`

	PreferredVoices  []string `mapstructure:"preferred_voices"`
	PreferredFormats []string `mapstructure:"preferred_formats"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("service_url", "http://localhost:5000")
	v.SetDefault("signal_url", "ws://localhost:5000/api/ws/signal")
	v.SetDefault("tts_url", "http://localhost:5002")
	v.SetDefault("poll_interval", "1s")
	v.SetDefault("record_max", "2m")
	v.SetDefault("record_chunk", "1s")
	v.SetDefault("request_timeout", "15s")
	v.SetDefault("camera_path", "./media/camera.ivf")
	v.SetDefault("microphone_path", "./media/microphone.ogg")
	v.SetDefault("playback_path", "./media/playback.ogg")
	v.SetDefault("media_dir", "./media")
	v.SetDefault("stun_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("preferred_voices", []string{
		"Microsoft Zira Desktop",
		"Microsoft Zira",
		"Samantha",
		"Google UK English Female",
		"Google US English Female",
	})
	v.SetDefault("preferred_formats", []string{
		"audio/ogg;codecs=opus",
		"audio/ogg",
		"audio/wav",
	})

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Service: %s\n", cfg.Mode, cfg.Port, cfg.ServiceURL)
	return &cfg, nil
}
