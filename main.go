// Package main provides the entry point for the ttspeaker CLI application.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/ttspeaker/tts"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile  string
	engineName  string
	voiceName   string
	logLevel    string
	verbose     bool
	mute        bool
	metricsAddr string

	rootCmd = &cobra.Command{
		Use:   "ttspeaker",
		Short: "Speak text through a queued text-to-speech pipeline",
		Long: paragraph(
			fmt.Sprintf("\nSpeak text through a %s text-to-speech pipeline, with cached clips and interruptible playback.", keyword("queued")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
	}
)

// consoleAnnotation marks commands that own the terminal and must not log
// to stderr.
const consoleAnnotation = "console"

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}
	if cmd.Annotations[consoleAnnotation] == "off" {
		return nil
	}
	return configureConsole(viper.GetString("log.level"), verbose)
}

// loadConfig reads the merged configuration. An unknown voice preset gets
// a "did you mean" hint.
func loadConfig() (tts.Config, error) {
	cfg, err := tts.LoadConfig(viper.GetViper())
	if err == nil {
		return cfg, nil
	}
	if v := cfg.Voice; v != "" {
		if _, ok := cfg.Presets().Voice(v); !ok {
			return cfg, unknownVoiceError(v, cfg.Presets().IDs())
		}
	}
	return cfg, err
}

func unknownVoiceError(name string, ids []string) error {
	matches := fuzzy.Find(name, ids)
	if len(matches) == 0 {
		return fmt.Errorf("unknown voice %q: available voices are %v", name, ids)
	}
	var hints []string
	for i, m := range matches {
		if i == 3 {
			break
		}
		hints = append(hints, m.Str)
	}
	return fmt.Errorf("unknown voice %q: did you mean %v?", name, hints)
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	flags.StringVarP(&engineName, "engine", "e", "", "speech engine (mock or piper)")
	flags.StringVarP(&voiceName, "voice", "V", "", "voice preset id")
	flags.StringVar(&logLevel, "log-level", "warn", "console log level")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
	flags.BoolVar(&mute, "mute", false, "keep time without opening the audio device")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	_ = flags.MarkHidden("metrics-addr")

	// Config bindings
	_ = viper.BindPFlag("engine", flags.Lookup("engine"))
	_ = viper.BindPFlag("voice", flags.Lookup("voice"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))

	rootCmd.AddCommand(sayCmd, readCmd, voicesCmd, cacheCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "ttspeaker")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "ttspeaker")}, dirs...)
	}

	if c := os.Getenv("TTSPEAKER_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("ttspeaker")
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "ttspeaker.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
