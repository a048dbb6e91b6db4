package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/ttspeaker/tts"
)

const defaultConfig = `# speech engine: mock or piper
engine: "mock"
# voice preset id, see "voices" below
voice: "default"
# output sample rate; piper voices are usually 22050
sample_rate: 22050
# volume level (0.0 to 2.0)
volume: 1.0
# main loop tick
tick_interval: "20ms"

text:
  # read input as markdown and speak only the prose
  markdown: false
  # queue one clip per sentence
  split_sentences: true
  max_phrase_length: 400
  # prepend: ""
  # append: ""

cache:
  # none, memory or disk
  location: "memory"
  # dir: "~/.cache/ttspeaker/clips"
  memory_entries: 64
  max_age: "168h"

loader:
  workers: 2
  # synthesis calls per second, 0 for no limit
  rate_limit: 0
  timeout: "30s"

log:
  level: "warn"
  # file: "~/.cache/ttspeaker/ttspeaker.log"

voices:
  default:
    engine: "mock"
    voice: "tone"
    speed: 1.0
    volume: 1.0
  # narrator:
  #   engine: "piper"
  #   voice: "en_US-lessac-medium"
  #   speed: 0.9
  #   extra:
  #     speaker: "0"

piper:
  binary: "piper"
  model: "en_US-lessac-medium"
  # data_dir: "/usr/share/piper"
  speaker_id: 0
  length_scale: 1.0
  noise_scale: 0.667
  noise_w: 0.8
  sentence_silence: "200ms"

mock:
  generation_delay: "50ms"
  words_per_minute: 150
  frequency: 440
  failure_rate: 0.0
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the ttspeaker config file",
	Long:    paragraph(fmt.Sprintf("\n%s the ttspeaker config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("ttspeaker config\nttspeaker config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("ttspeaker", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

var showDefaults bool

var configCheckCmd = &cobra.Command{
	Use:     "check",
	Short:   "Validate the merged configuration",
	Long:    paragraph(fmt.Sprintf("\n%s the configuration after merging defaults, environment variables, the config file and flags.", keyword("Validate"))),
	Example: paragraph("ttspeaker config check\nttspeaker config check --defaults"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if showDefaults {
			v := viper.New()
			tts.SetDefaults(v)
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close() //nolint:errcheck
			return enc.Encode(v.AllSettings()) //nolint:wrapcheck
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Println(faint("config file: " + used))
		}
		fmt.Printf("engine %s, voice %s, cache %s, %d loader workers\n",
			keyword(cfg.Engine), keyword(cfg.Voice), cfg.CacheSettings().Location, cfg.Loader.Workers)
		fmt.Println("Configuration is valid.")
		return nil
	},
}

func init() {
	configCheckCmd.Flags().BoolVar(&showDefaults, "defaults", false, "print the built-in defaults instead")
	configCmd.AddCommand(configCheckCmd)
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
