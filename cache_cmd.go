package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/ttspeaker/internal/cache"
	"github.com/dgnsrekt/ttspeaker/tts"
)

var (
	cacheWarmFile string

	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect and prune the clip cache",
		Long: paragraph(fmt.Sprintf(`
Inspect the on-disk clip cache. Clips are stored %s compressed and keyed by
text and voice, so the same phrase is only synthesized once.`, keyword("zstd"))),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cacheStatsCmd.RunE(cmd, nil)
		},
	}

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show clip cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDiskCache(func(m *cache.Manager) error {
				printCacheStats(cmd, m.Stats())
				return nil
			})
		},
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached clip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDiskCache(func(m *cache.Manager) error {
				before := m.Stats().Disk
				if err := m.Clear(); err != nil {
					return fmt.Errorf("unable to clear cache: %w", err)
				}
				cmd.Printf("Removed %d clips (%s)\n", before.ItemCount, humanize.IBytes(uint64(before.Size)))
				return nil
			})
		},
	}

	cachePruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "Remove clips older than cache.max_age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDiskCache(func(m *cache.Manager) error {
				removed := m.Cleanup()
				cmd.Printf("Removed %d expired clips\n", removed)
				return nil
			})
		},
	}

	cacheWarmCmd = &cobra.Command{
		Use:   "warm [TEXT...]",
		Short: "Synthesize text into the clip cache ahead of time",
		Long: paragraph(fmt.Sprintf(`
Split %s into phrases the way %s would and synthesize each one into the
disk cache with the configured voice, so speaking it later plays at once.`,
			keyword("text"), keyword("say"))),
		Example: `  ttspeaker cache warm "Build finished"
  ttspeaker cache warm -f README.md`,
		Args: cobra.ArbitraryArgs,
		RunE: runCacheWarm,
	}
)

func warmInput(args []string) (string, error) {
	switch {
	case cacheWarmFile != "":
		b, err := os.ReadFile(cacheWarmFile)
		if err != nil {
			return "", fmt.Errorf("unable to read file: %w", err)
		}
		return string(b), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	}
	if yes, err := stdinIsPipe(); err != nil {
		return "", err
	} else if yes {
		in, err := readStdin()
		return in.text, err
	}
	return "", errors.New("nothing to warm: pass text, --file or pipe it in")
}

func runCacheWarm(cmd *cobra.Command, args []string) error {
	text, err := warmInput(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if isMarkdownFile(cacheWarmFile) {
		cfg.Text.Markdown = true
	}
	cfg.Cache.Location = tts.CacheDisk.String()

	// A muted speaker resolves voices and phrases exactly as playback
	// would, so the cache keys match.
	app, err := newSpeakerApp(cfg, logger, appOptions{mute: true})
	if err != nil {
		return err
	}
	defer app.close()

	voice, err := app.speaker.ResolveVoice()
	if err != nil {
		return err
	}
	phrases, err := app.speaker.GetFinalText(text)
	if err != nil {
		return err
	}

	settings := cfg.CacheSettings()
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(cfg.Loader.Workers, 1))
	for _, phrase := range phrases {
		g.Go(func() error {
			if err := app.loader.Preload(ctx, phrase, voice, settings); err != nil {
				return fmt.Errorf("unable to synthesize %q: %w", phrase, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	disk := app.cache.Stats().Disk
	cmd.Printf("Warmed %s phrases; cache holds %s clips (%s)\n",
		humanize.Comma(int64(len(phrases))), humanize.Comma(disk.ItemCount), humanize.IBytes(uint64(disk.Size)))
	return nil
}

// withDiskCache opens the configured cache with its disk tier enabled,
// whatever the configured location.
func withDiskCache(fn func(*cache.Manager) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Cache.Location = tts.CacheDisk.String()
	m, err := newCacheManager(cfg, logger)
	if err != nil {
		return err
	}
	err = fn(m)
	if cerr := m.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("unable to save cache index: %w", cerr)
	}
	return err
}

func printCacheStats(cmd *cobra.Command, s cache.ManagerStats) {
	row := func(name, value string) {
		cmd.Printf("  %-16s %s\n", faint(name), value)
	}

	cmd.Println(keyword("Disk"))
	row("path", s.DiskPath)
	row("clips", humanize.Comma(s.Disk.ItemCount))
	row("size", fmt.Sprintf("%s of %s", humanize.IBytes(uint64(s.Disk.Size)), humanize.IBytes(uint64(s.Disk.Capacity))))
	if s.DiskOriginalSize > 0 {
		row("uncompressed", fmt.Sprintf("%s (%.1fx)", humanize.IBytes(uint64(s.DiskOriginalSize)),
			float64(s.DiskOriginalSize)/float64(max(s.Disk.Size, 1))))
	}
	if !s.DiskOldest.IsZero() {
		row("oldest", humanize.Time(s.DiskOldest))
	}
	if !s.Disk.LastAccess.IsZero() {
		row("last used", humanize.Time(s.Disk.LastAccess))
	}

	cmd.Println(keyword("Memory"))
	row("clips", humanize.Comma(s.Memory.ItemCount))
	row("size", fmt.Sprintf("%s of %s", humanize.IBytes(uint64(s.Memory.Size)), humanize.IBytes(uint64(s.Memory.Capacity))))

	if !s.LastCleanup.IsZero() {
		cmd.Println(keyword("Cleanup"))
		row("last run", humanize.RelTime(s.LastCleanup, time.Now(), "ago", "from now"))
	}
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cachePruneCmd, cacheWarmCmd)
	cacheWarmCmd.Flags().StringVarP(&cacheWarmFile, "file", "f", "", "warm the phrases of a file")
}
