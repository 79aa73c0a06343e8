package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Prompts    PromptsConfig    `yaml:"prompts"`
	Generation GenerationConfig `yaml:"generation"`
	Audio      AudioConfig      `yaml:"audio"`
	Image      ImageConfig      `yaml:"image"`
	Video      VideoConfig      `yaml:"video"`
	Metadata   MetadataConfig   `yaml:"metadata"`
	Upload     UploadConfig     `yaml:"upload"`
	Paths      PathsConfig      `yaml:"paths"`
}

type PromptsConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

type GenerationConfig struct {
	BaseURL          string `yaml:"base_url"`
	ConcurrentLimit  int    `yaml:"concurrent_limit"`
	PollAttempts     int    `yaml:"poll_attempts"`
	PollIntervalSec  int    `yaml:"poll_interval_sec"`
	DownloadRetries  int    `yaml:"download_retries"`
	DownloadPauseSec int    `yaml:"download_pause_sec"`
}

type AudioConfig struct {
	MinClipSec       float64 `yaml:"min_clip_sec"`
	TargetLoudnessDB float64 `yaml:"target_loudness_db"`
	LoudnessDeadband float64 `yaml:"loudness_deadband_db"`
	FadeSec          float64 `yaml:"fade_sec"`
}

type ImageConfig struct {
	Model      string `yaml:"model"`
	Size       string `yaml:"size"`
	Quality    string `yaml:"quality"`
	MaxRetries int    `yaml:"max_retries"`
	Fallback   string `yaml:"fallback"`
}

type VideoConfig struct {
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`
}

type MetadataConfig struct {
	Model string `yaml:"model"`
}

type UploadConfig struct {
	ClientSecretsFile string   `yaml:"client_secrets_file"`
	TokenFile         string   `yaml:"token_file"`
	CategoryID        string   `yaml:"category_id"`
	Visibility        string   `yaml:"visibility"`
	Tags              []string `yaml:"tags"`
}

type PathsConfig struct {
	Output string `yaml:"output"`
	Assets string `yaml:"assets"`
}

// Load reads config.yaml and returns a Config struct
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Generation.ConcurrentLimit == 0 {
		c.Generation.ConcurrentLimit = 3
	}
	if c.Generation.PollAttempts == 0 {
		c.Generation.PollAttempts = 30
	}
	if c.Generation.PollIntervalSec == 0 {
		c.Generation.PollIntervalSec = 5
	}
	if c.Generation.DownloadRetries == 0 {
		c.Generation.DownloadRetries = 3
	}
	if c.Generation.DownloadPauseSec == 0 {
		c.Generation.DownloadPauseSec = 2
	}
	if c.Audio.MinClipSec == 0 {
		c.Audio.MinClipSec = 60
	}
	if c.Audio.TargetLoudnessDB == 0 {
		c.Audio.TargetLoudnessDB = -14
	}
	if c.Audio.LoudnessDeadband == 0 {
		c.Audio.LoudnessDeadband = 2
	}
	if c.Audio.FadeSec == 0 {
		c.Audio.FadeSec = 2
	}
	if c.Image.MaxRetries == 0 {
		c.Image.MaxRetries = 3
	}
	if c.Video.Height == 0 {
		c.Video.Height = 720
	}
	if c.Video.FPS == 0 {
		c.Video.FPS = 24
	}
	if c.Paths.Output == "" {
		c.Paths.Output = "Output"
	}
}
