package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/ttspeaker/tts/engines"
)

var voicesCmd = &cobra.Command{
	Use:   "voices [FILTER]",
	Short: "List voice presets and engine voices",
	Long: paragraph(fmt.Sprintf(`
List the configured voice %s and the voices each engine offers. An optional
filter fuzzy-matches ids and names.`, keyword("presets"))),
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		var filter string
		if len(args) == 1 {
			filter = args[0]
		}

		current := lipgloss.NewStyle().Bold(true).Render

		cmd.Println(keyword("Presets"))
		presets := cfg.Presets()
		for _, id := range matchNames(filter, presets.IDs()) {
			v, _ := presets.Voice(id)
			line := fmt.Sprintf("  %-16s %s", id, faint(fmt.Sprintf("%s/%s speed %.2f", v.Engine, v.Voice, v.Speed)))
			if id == cfg.Voice {
				line = current(line + " *")
			}
			cmd.Println(line)
		}

		def, extra := buildEngines(cfg, logger)
		for _, e := range append([]engines.Synthesizer{def}, extra...) {
			voices := e.Voices()
			names := make([]string, len(voices))
			byName := make(map[string]engines.Voice, len(voices))
			for i, v := range voices {
				names[i] = v.ID + " " + v.Name
				byName[names[i]] = v
			}

			cmd.Println(keyword(fmt.Sprintf("Engine %s", e.Name())))
			for _, name := range matchNames(filter, names) {
				v := byName[name]
				var details []string
				for _, d := range []string{v.Name, v.Language, v.Gender} {
					if d != "" {
						details = append(details, d)
					}
				}
				cmd.Printf("  %-16s %s\n", v.ID, faint(strings.Join(details, ", ")))
			}
		}
		return nil
	},
}

// matchNames keeps names in order when filter is empty, otherwise returns
// the fuzzy matches best first.
func matchNames(filter string, names []string) []string {
	if filter == "" {
		return names
	}
	matches := fuzzy.Find(filter, names)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Str
	}
	return out
}
