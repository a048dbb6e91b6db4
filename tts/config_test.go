package tts

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}
	if cfg.CacheSettings().Location != CacheMemory {
		t.Errorf("default cache location = %v", cfg.CacheSettings().Location)
	}
	if _, ok := cfg.Presets().Voice(cfg.Voice); !ok {
		t.Errorf("default voice %q has no preset", cfg.Voice)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "engine case is normalized", mutate: func(c *Config) { c.Engine = "MOCK" }},
		{name: "unknown engine", mutate: func(c *Config) { c.Engine = "espeak" }, wantErr: "invalid TTS engine"},
		{name: "volume too high", mutate: func(c *Config) { c.Volume = 3 }, wantErr: "volume"},
		{name: "odd sample rate", mutate: func(c *Config) { c.SampleRate = 12345 }, wantErr: "sample rate"},
		{name: "tick too fast", mutate: func(c *Config) { c.TickInterval = time.Microsecond }, wantErr: "tick_interval"},
		{name: "unknown voice", mutate: func(c *Config) { c.Voice = "ghost" }, wantErr: "voice preset"},
		{name: "no voice preset selected", mutate: func(c *Config) { c.Voice = "" }},
		{name: "negative phrase length", mutate: func(c *Config) { c.Text.MaxPhraseLength = -1 }, wantErr: "max_phrase_length"},
		{name: "bad cache location", mutate: func(c *Config) { c.Cache.Location = "cloud" }, wantErr: "cache location"},
		{name: "cache location case", mutate: func(c *Config) { c.Cache.Location = "DISK" }},
		{name: "no workers", mutate: func(c *Config) { c.Loader.Workers = 0 }, wantErr: "workers"},
		{name: "short timeout", mutate: func(c *Config) { c.Loader.Timeout = time.Millisecond }, wantErr: "timeout"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log config"},
		{name: "mock failure rate", mutate: func(c *Config) { c.Mock.FailureRate = 2 }, wantErr: "failure_rate"},
		{name: "piper length scale", mutate: func(c *Config) { c.Engine = "piper"; c.Piper.LengthScale = 0 }, wantErr: "length_scale"},
		{name: "piper settings ignored for mock", mutate: func(c *Config) { c.Piper.Binary = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(viper.New())
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Engine != "mock" || cfg.SampleRate != 22050 || cfg.TickInterval != 20*time.Millisecond {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Loader.Workers != 2 || cfg.Loader.Timeout != 30*time.Second {
		t.Errorf("loader defaults = %+v", cfg.Loader)
	}
	if cfg.Cache.Location != "memory" || cfg.Cache.MaxAge != 168*time.Hour {
		t.Errorf("cache defaults = %+v", cfg.Cache)
	}
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv("TTSPEAKER_ENGINE", "Piper")
	t.Setenv("TTSPEAKER_LOADER_WORKERS", "4")
	t.Setenv("TTSPEAKER_CACHE_LOCATION", "disk")
	t.Setenv("TTSPEAKER_TEXT_PREPEND", "Note:")
	t.Setenv("TTSPEAKER_PIPER_LENGTH_SCALE", "1.25")

	cfg, err := LoadConfig(viper.New())
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Engine != "piper" {
		t.Errorf("Engine = %q, want piper", cfg.Engine)
	}
	if cfg.Loader.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Loader.Workers)
	}
	if cfg.CacheSettings().Location != CacheDisk {
		t.Errorf("cache = %v, want disk", cfg.CacheSettings().Location)
	}
	if cfg.Text.Prepend != "Note:" || cfg.Piper.LengthScale != 1.25 {
		t.Errorf("text %+v piper %+v", cfg.Text, cfg.Piper)
	}
}

func TestLoadConfigViperWinsOverEnvironment(t *testing.T) {
	t.Setenv("TTSPEAKER_VOLUME", "0.5")
	t.Setenv("TTSPEAKER_LOADER_TIMEOUT", "10s")

	v := viper.New()
	v.Set("volume", 1.5)
	v.Set("loader.timeout", "45s")

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Volume != 1.5 {
		t.Errorf("Volume = %v, want 1.5", cfg.Volume)
	}
	if cfg.Loader.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", cfg.Loader.Timeout)
	}
}

func TestLoadConfigFile(t *testing.T) {
	const file = `
engine: mock
voice: narrator
tick_interval: 50ms
text:
  markdown: true
  append: "."
cache:
  location: none
  dir: ~/speaker-cache
voices:
  narrator:
    engine: mock
    voice: low
    speed: 1.2
    extra:
      style: calm
`
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(file)); err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	narrator, ok := cfg.Presets().Voice("narrator")
	if !ok {
		t.Fatal("narrator preset missing")
	}
	if narrator.ID != "narrator" || narrator.Voice != "low" || narrator.Speed != 1.2 || narrator.Extra["style"] != "calm" {
		t.Errorf("narrator = %+v", narrator)
	}
	if _, ok := cfg.Voices["default"]; !ok {
		t.Error("built-in default preset dropped")
	}
	if cfg.TickInterval != 50*time.Millisecond || !cfg.Text.Markdown || cfg.Text.Append != "." {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.CacheSettings().Location != CacheNone {
		t.Errorf("cache = %v, want none", cfg.CacheSettings().Location)
	}
	if strings.HasPrefix(cfg.Cache.Dir, "~") {
		t.Errorf("cache dir %q was not expanded", cfg.Cache.Dir)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	v := viper.New()
	v.Set("loader.workers", 99)
	if _, err := LoadConfig(v); err == nil || !strings.Contains(err.Error(), "workers") {
		t.Errorf("LoadConfig() error = %v, want a workers error", err)
	}
}
