package tts

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/dgnsrekt/ttspeaker/pkg/logging"
)

// Config contains all speaker configuration options.
type Config struct {
	// Engine and voice selection
	Engine string `yaml:"engine" mapstructure:"engine" env:"TTSPEAKER_ENGINE" envDefault:"mock"`
	Voice  string `yaml:"voice" mapstructure:"voice" env:"TTSPEAKER_VOICE" envDefault:"default"`

	// Audio settings
	SampleRate int     `yaml:"sample_rate" mapstructure:"sample_rate" env:"TTSPEAKER_SAMPLE_RATE" envDefault:"22050"`
	Volume     float64 `yaml:"volume" mapstructure:"volume" env:"TTSPEAKER_VOLUME" envDefault:"1.0"`

	// Main loop tick
	TickInterval time.Duration `yaml:"tick_interval" mapstructure:"tick_interval" env:"TTSPEAKER_TICK_INTERVAL" envDefault:"20ms"`

	Text   TextConfig   `yaml:"text" mapstructure:"text" envPrefix:"TTSPEAKER_TEXT_"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache" envPrefix:"TTSPEAKER_CACHE_"`
	Loader LoaderConfig `yaml:"loader" mapstructure:"loader" envPrefix:"TTSPEAKER_LOADER_"`
	Log    LogConfig    `yaml:"log" mapstructure:"log" envPrefix:"TTSPEAKER_LOG_"`

	// Voice presets by id
	Voices map[string]VoiceSettings `yaml:"voices" mapstructure:"voices"`

	// Engine-specific configurations
	Piper PiperConfig `yaml:"piper" mapstructure:"piper" envPrefix:"TTSPEAKER_PIPER_"`
	Mock  MockConfig  `yaml:"mock" mapstructure:"mock" envPrefix:"TTSPEAKER_MOCK_"`
}

// TextConfig controls how raw text becomes phrases.
type TextConfig struct {
	Prepend         string `yaml:"prepend" mapstructure:"prepend" env:"PREPEND"`
	Append          string `yaml:"append" mapstructure:"append" env:"APPEND"`
	Markdown        bool   `yaml:"markdown" mapstructure:"markdown" env:"MARKDOWN" envDefault:"false"`
	SplitSentences  bool   `yaml:"split_sentences" mapstructure:"split_sentences" env:"SPLIT_SENTENCES" envDefault:"true"`
	MaxPhraseLength int    `yaml:"max_phrase_length" mapstructure:"max_phrase_length" env:"MAX_PHRASE_LENGTH" envDefault:"400"`
}

// CacheConfig controls the clip cache tiers.
type CacheConfig struct {
	Location      string        `yaml:"location" mapstructure:"location" env:"LOCATION" envDefault:"memory"`
	Dir           string        `yaml:"dir" mapstructure:"dir" env:"DIR"`
	MemoryEntries int           `yaml:"memory_entries" mapstructure:"memory_entries" env:"MEMORY_ENTRIES" envDefault:"64"`
	MemoryBytes   int64         `yaml:"memory_bytes" mapstructure:"memory_bytes" env:"MEMORY_BYTES" envDefault:"67108864"`
	DiskBytes     int64         `yaml:"disk_bytes" mapstructure:"disk_bytes" env:"DISK_BYTES" envDefault:"536870912"`
	MaxAge        time.Duration `yaml:"max_age" mapstructure:"max_age" env:"MAX_AGE" envDefault:"168h"`
}

// LoaderConfig controls synthesis concurrency.
type LoaderConfig struct {
	Workers   int           `yaml:"workers" mapstructure:"workers" env:"WORKERS" envDefault:"2"`
	RateLimit float64       `yaml:"rate_limit" mapstructure:"rate_limit" env:"RATE_LIMIT" envDefault:"0"`
	Burst     int           `yaml:"burst" mapstructure:"burst" env:"BURST" envDefault:"1"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout" env:"TIMEOUT" envDefault:"30s"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level" env:"LEVEL" envDefault:"info"`
	File  string `yaml:"file" mapstructure:"file" env:"FILE"`
}

// PiperConfig contains Piper TTS engine specific settings.
type PiperConfig struct {
	Binary          string        `yaml:"binary" mapstructure:"binary" env:"BINARY" envDefault:"piper"`
	Model           string        `yaml:"model" mapstructure:"model" env:"MODEL" envDefault:"en_US-lessac-medium"`
	DataDir         string        `yaml:"data_dir" mapstructure:"data_dir" env:"DATA_DIR"`
	SpeakerID       int           `yaml:"speaker_id" mapstructure:"speaker_id" env:"SPEAKER_ID" envDefault:"0"`
	LengthScale     float64       `yaml:"length_scale" mapstructure:"length_scale" env:"LENGTH_SCALE" envDefault:"1.0"`
	NoiseScale      float64       `yaml:"noise_scale" mapstructure:"noise_scale" env:"NOISE_SCALE" envDefault:"0.667"`
	NoiseW          float64       `yaml:"noise_w" mapstructure:"noise_w" env:"NOISE_W" envDefault:"0.8"`
	SentenceSilence time.Duration `yaml:"sentence_silence" mapstructure:"sentence_silence" env:"SENTENCE_SILENCE" envDefault:"200ms"`
}

// MockConfig contains mock engine settings for testing and demos.
type MockConfig struct {
	GenerationDelay time.Duration `yaml:"generation_delay" mapstructure:"generation_delay" env:"GENERATION_DELAY" envDefault:"50ms"`
	WordsPerMinute  int           `yaml:"words_per_minute" mapstructure:"words_per_minute" env:"WORDS_PER_MINUTE" envDefault:"150"`
	Frequency       float64       `yaml:"frequency" mapstructure:"frequency" env:"FREQUENCY" envDefault:"440"`
	FailureRate     float64       `yaml:"failure_rate" mapstructure:"failure_rate" env:"FAILURE_RATE" envDefault:"0.0"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Engine:       "mock",
		Voice:        "default",
		SampleRate:   22050,
		Volume:       1.0,
		TickInterval: 20 * time.Millisecond,

		Text: TextConfig{
			SplitSentences:  true,
			MaxPhraseLength: 400,
		},
		Cache: CacheConfig{
			Location:      CacheMemory.String(),
			MemoryEntries: 64,
			MemoryBytes:   64 << 20,
			DiskBytes:     512 << 20,
			MaxAge:        7 * 24 * time.Hour,
		},
		Loader: LoaderConfig{
			Workers: 2,
			Burst:   1,
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{Level: "info"},

		Voices: map[string]VoiceSettings{
			"default": {Engine: "mock", Voice: "tone", Speed: 1.0, Volume: 1.0},
		},

		Piper: DefaultPiperConfig(),
		Mock:  DefaultMockConfig(),
	}
}

// DefaultPiperConfig returns default Piper configuration.
func DefaultPiperConfig() PiperConfig {
	cfg := PiperConfig{
		Binary:          "piper",
		Model:           "en_US-lessac-medium",
		LengthScale:     1.0,
		NoiseScale:      0.667,
		NoiseW:          0.8,
		SentenceSilence: 200 * time.Millisecond,
	}

	// Try to detect common Piper installation paths
	if runtime.GOOS == "linux" {
		cfg.DataDir = filepath.Join("/usr", "share", "piper")
	} else if runtime.GOOS == "darwin" {
		cfg.DataDir = filepath.Join("/usr", "local", "share", "piper")
	}

	return cfg
}

// DefaultMockConfig returns default mock engine configuration.
func DefaultMockConfig() MockConfig {
	return MockConfig{
		GenerationDelay: 50 * time.Millisecond,
		WordsPerMinute:  150,
		Frequency:       440,
	}
}

// Validate checks if the configuration is valid. It normalizes case on
// enumerated fields.
func (c *Config) Validate() error {
	validEngines := []string{"mock", "piper"}
	engineValid := false
	for _, e := range validEngines {
		if strings.EqualFold(c.Engine, e) {
			engineValid = true
			c.Engine = strings.ToLower(c.Engine)
			break
		}
	}
	if !engineValid {
		return fmt.Errorf("invalid TTS engine '%s': must be one of %v", c.Engine, validEngines)
	}

	if c.Volume < 0.0 || c.Volume > 2.0 {
		return fmt.Errorf("volume must be between 0.0 and 2.0, got %f", c.Volume)
	}

	validSampleRates := []int{8000, 16000, 22050, 24000, 44100, 48000}
	sampleRateValid := false
	for _, sr := range validSampleRates {
		if c.SampleRate == sr {
			sampleRateValid = true
			break
		}
	}
	if !sampleRateValid {
		return fmt.Errorf("invalid sample rate %d: must be one of %v", c.SampleRate, validSampleRates)
	}

	if c.TickInterval < time.Millisecond || c.TickInterval > time.Second {
		return fmt.Errorf("tick_interval must be between 1ms and 1s, got %v", c.TickInterval)
	}

	if c.Voice != "" {
		if _, ok := c.Voices[c.Voice]; !ok {
			return fmt.Errorf("voice preset '%s' is not defined", c.Voice)
		}
	}

	if err := c.Text.Validate(); err != nil {
		return fmt.Errorf("text config: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}
	if err := c.Loader.Validate(); err != nil {
		return fmt.Errorf("loader config: %w", err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log config: %w", err)
	}

	switch c.Engine {
	case "piper":
		if err := c.Piper.Validate(); err != nil {
			return fmt.Errorf("piper config: %w", err)
		}
	case "mock":
		if err := c.Mock.Validate(); err != nil {
			return fmt.Errorf("mock config: %w", err)
		}
	}

	return nil
}

// Validate checks if the text configuration is valid.
func (c *TextConfig) Validate() error {
	if c.MaxPhraseLength < 0 {
		return fmt.Errorf("max_phrase_length cannot be negative, got %d", c.MaxPhraseLength)
	}
	return nil
}

// Validate checks if the cache configuration is valid.
func (c *CacheConfig) Validate() error {
	loc, ok := ParseCacheLocation(strings.ToLower(c.Location))
	if !ok {
		return fmt.Errorf("invalid cache location '%s': must be one of [none memory disk]", c.Location)
	}
	c.Location = loc.String()
	if c.MemoryEntries < 1 || c.MemoryEntries > 10000 {
		return fmt.Errorf("memory_entries must be between 1 and 10000, got %d", c.MemoryEntries)
	}
	if c.MemoryBytes < 0 || c.DiskBytes < 0 {
		return fmt.Errorf("cache sizes cannot be negative")
	}
	return nil
}

// Validate checks if the loader configuration is valid.
func (c *LoaderConfig) Validate() error {
	if c.Workers < 1 || c.Workers > 16 {
		return fmt.Errorf("workers must be between 1 and 16, got %d", c.Workers)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative, got %f", c.RateLimit)
	}
	if c.Burst < 1 {
		return fmt.Errorf("burst must be at least 1, got %d", c.Burst)
	}
	if c.Timeout < time.Second {
		return fmt.Errorf("timeout must be at least 1 second, got %v", c.Timeout)
	}
	return nil
}

// Validate checks if the Piper configuration is valid.
func (c *PiperConfig) Validate() error {
	if c.Binary == "" {
		return fmt.Errorf("piper binary path cannot be empty")
	}

	if c.Model == "" {
		return fmt.Errorf("piper model cannot be empty")
	}

	if c.LengthScale <= 0 || c.LengthScale > 3.0 {
		return fmt.Errorf("length_scale must be between 0.1 and 3.0, got %f", c.LengthScale)
	}

	if c.NoiseScale < 0 || c.NoiseScale > 2.0 {
		return fmt.Errorf("noise_scale must be between 0.0 and 2.0, got %f", c.NoiseScale)
	}

	if c.NoiseW < 0 || c.NoiseW > 2.0 {
		return fmt.Errorf("noise_w must be between 0.0 and 2.0, got %f", c.NoiseW)
	}

	return nil
}

// Validate checks if the mock configuration is valid.
func (c *MockConfig) Validate() error {
	if c.WordsPerMinute < 50 || c.WordsPerMinute > 500 {
		return fmt.Errorf("words_per_minute must be between 50 and 500, got %d", c.WordsPerMinute)
	}

	if c.FailureRate < 0.0 || c.FailureRate > 1.0 {
		return fmt.Errorf("failure_rate must be between 0.0 and 1.0, got %f", c.FailureRate)
	}

	if c.Frequency <= 0 {
		return fmt.Errorf("frequency must be positive, got %f", c.Frequency)
	}

	return nil
}

// CacheSettings returns the per-request cache policy.
func (c *Config) CacheSettings() CacheSettings {
	loc, ok := ParseCacheLocation(c.Cache.Location)
	if !ok {
		loc = CacheMemory
	}
	return CacheSettings{Location: loc}
}

// Presets returns the configured voice presets as a catalog.
func (c *Config) Presets() VoicePresets {
	return VoicePresets(c.Voices)
}
