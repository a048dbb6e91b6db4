package tts

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// LoadConfig builds a Config from environment variables (falling back to
// the envDefault tags) and then applies every key set in v, so flags and
// the config file win over the environment.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return cfg, fmt.Errorf("error parsing environment: %w", err)
	}
	cfg.Voices = DefaultConfig().Voices

	if v.IsSet("engine") {
		cfg.Engine = v.GetString("engine")
	}
	if v.IsSet("voice") {
		cfg.Voice = v.GetString("voice")
	}
	if v.IsSet("sample_rate") {
		cfg.SampleRate = v.GetInt("sample_rate")
	}
	if v.IsSet("volume") {
		cfg.Volume = v.GetFloat64("volume")
	}
	if v.IsSet("tick_interval") {
		cfg.TickInterval = durationOr(v, "tick_interval", cfg.TickInterval)
	}

	cfg.Text = loadTextConfig(v, cfg.Text)
	cfg.Cache = loadCacheConfig(v, cfg.Cache)
	cfg.Loader = loadLoaderConfig(v, cfg.Loader)
	cfg.Piper = loadPiperConfig(v, cfg.Piper)
	cfg.Mock = loadMockConfig(v, cfg.Mock)

	if v.IsSet("log.level") {
		cfg.Log.Level = v.GetString("log.level")
	}
	if v.IsSet("log.file") {
		cfg.Log.File = v.GetString("log.file")
	}

	if v.IsSet("voices") {
		voices := map[string]VoiceSettings{}
		if err := v.UnmarshalKey("voices", &voices); err != nil {
			return cfg, fmt.Errorf("invalid voices: %w", err)
		}
		for id, voice := range voices {
			voice.ID = id
			cfg.Voices[id] = voice
		}
	}

	if err := expandPaths(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid TTS configuration: %w", err)
	}

	return cfg, nil
}

func expandPaths(cfg *Config) error {
	for _, p := range []*string{&cfg.Cache.Dir, &cfg.Log.File, &cfg.Piper.Model, &cfg.Piper.DataDir, &cfg.Piper.Binary} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("unable to expand %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

func durationOr(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(v.GetString(key)); err == nil {
		return d
	}
	return fallback
}

func loadTextConfig(v *viper.Viper, cfg TextConfig) TextConfig {
	if v.IsSet("text.prepend") {
		cfg.Prepend = v.GetString("text.prepend")
	}
	if v.IsSet("text.append") {
		cfg.Append = v.GetString("text.append")
	}
	if v.IsSet("text.markdown") {
		cfg.Markdown = v.GetBool("text.markdown")
	}
	if v.IsSet("text.split_sentences") {
		cfg.SplitSentences = v.GetBool("text.split_sentences")
	}
	if v.IsSet("text.max_phrase_length") {
		cfg.MaxPhraseLength = v.GetInt("text.max_phrase_length")
	}
	return cfg
}

func loadCacheConfig(v *viper.Viper, cfg CacheConfig) CacheConfig {
	if v.IsSet("cache.location") {
		cfg.Location = v.GetString("cache.location")
	}
	if v.IsSet("cache.dir") {
		cfg.Dir = v.GetString("cache.dir")
	}
	if v.IsSet("cache.memory_entries") {
		cfg.MemoryEntries = v.GetInt("cache.memory_entries")
	}
	if v.IsSet("cache.memory_bytes") {
		cfg.MemoryBytes = v.GetInt64("cache.memory_bytes")
	}
	if v.IsSet("cache.disk_bytes") {
		cfg.DiskBytes = v.GetInt64("cache.disk_bytes")
	}
	if v.IsSet("cache.max_age") {
		cfg.MaxAge = durationOr(v, "cache.max_age", cfg.MaxAge)
	}
	return cfg
}

func loadLoaderConfig(v *viper.Viper, cfg LoaderConfig) LoaderConfig {
	if v.IsSet("loader.workers") {
		cfg.Workers = v.GetInt("loader.workers")
	}
	if v.IsSet("loader.rate_limit") {
		cfg.RateLimit = v.GetFloat64("loader.rate_limit")
	}
	if v.IsSet("loader.burst") {
		cfg.Burst = v.GetInt("loader.burst")
	}
	if v.IsSet("loader.timeout") {
		cfg.Timeout = durationOr(v, "loader.timeout", cfg.Timeout)
	}
	return cfg
}

func loadPiperConfig(v *viper.Viper, cfg PiperConfig) PiperConfig {
	if v.IsSet("piper.binary") {
		cfg.Binary = v.GetString("piper.binary")
	}
	if v.IsSet("piper.model") {
		cfg.Model = v.GetString("piper.model")
	}
	if v.IsSet("piper.data_dir") {
		cfg.DataDir = v.GetString("piper.data_dir")
	}
	if v.IsSet("piper.speaker_id") {
		cfg.SpeakerID = v.GetInt("piper.speaker_id")
	}
	if v.IsSet("piper.length_scale") {
		cfg.LengthScale = v.GetFloat64("piper.length_scale")
	}
	if v.IsSet("piper.noise_scale") {
		cfg.NoiseScale = v.GetFloat64("piper.noise_scale")
	}
	if v.IsSet("piper.noise_w") {
		cfg.NoiseW = v.GetFloat64("piper.noise_w")
	}
	if v.IsSet("piper.sentence_silence") {
		cfg.SentenceSilence = durationOr(v, "piper.sentence_silence", cfg.SentenceSilence)
	}
	return cfg
}

func loadMockConfig(v *viper.Viper, cfg MockConfig) MockConfig {
	if v.IsSet("mock.generation_delay") {
		cfg.GenerationDelay = durationOr(v, "mock.generation_delay", cfg.GenerationDelay)
	}
	if v.IsSet("mock.words_per_minute") {
		cfg.WordsPerMinute = v.GetInt("mock.words_per_minute")
	}
	if v.IsSet("mock.frequency") {
		cfg.Frequency = v.GetFloat64("mock.frequency")
	}
	if v.IsSet("mock.failure_rate") {
		cfg.FailureRate = v.GetFloat64("mock.failure_rate")
	}
	return cfg
}

// SetDefaults sets default values in v for every scalar option.
func SetDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	v.SetDefault("engine", defaults.Engine)
	v.SetDefault("voice", defaults.Voice)
	v.SetDefault("sample_rate", defaults.SampleRate)
	v.SetDefault("volume", defaults.Volume)
	v.SetDefault("tick_interval", defaults.TickInterval.String())

	v.SetDefault("text.split_sentences", defaults.Text.SplitSentences)
	v.SetDefault("text.max_phrase_length", defaults.Text.MaxPhraseLength)
	v.SetDefault("text.markdown", defaults.Text.Markdown)

	v.SetDefault("cache.location", defaults.Cache.Location)
	v.SetDefault("cache.memory_entries", defaults.Cache.MemoryEntries)
	v.SetDefault("cache.memory_bytes", defaults.Cache.MemoryBytes)
	v.SetDefault("cache.disk_bytes", defaults.Cache.DiskBytes)
	v.SetDefault("cache.max_age", defaults.Cache.MaxAge.String())

	v.SetDefault("loader.workers", defaults.Loader.Workers)
	v.SetDefault("loader.rate_limit", defaults.Loader.RateLimit)
	v.SetDefault("loader.burst", defaults.Loader.Burst)
	v.SetDefault("loader.timeout", defaults.Loader.Timeout.String())

	v.SetDefault("log.level", defaults.Log.Level)

	v.SetDefault("piper.binary", defaults.Piper.Binary)
	v.SetDefault("piper.model", defaults.Piper.Model)
	v.SetDefault("piper.speaker_id", defaults.Piper.SpeakerID)
	v.SetDefault("piper.length_scale", defaults.Piper.LengthScale)
	v.SetDefault("piper.noise_scale", defaults.Piper.NoiseScale)
	v.SetDefault("piper.noise_w", defaults.Piper.NoiseW)
	v.SetDefault("piper.sentence_silence", defaults.Piper.SentenceSilence.String())

	v.SetDefault("mock.generation_delay", defaults.Mock.GenerationDelay.String())
	v.SetDefault("mock.words_per_minute", defaults.Mock.WordsPerMinute)
	v.SetDefault("mock.frequency", defaults.Mock.Frequency)
	v.SetDefault("mock.failure_rate", defaults.Mock.FailureRate)
}

// WatchConfig reloads the configuration whenever the file behind v is
// written and hands the result to onChange. Invalid edits are reported
// through the error and the previous configuration stays in effect.
func WatchConfig(v *viper.Viper, onChange func(Config, error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(LoadConfig(v))
	})
	v.WatchConfig()
}
