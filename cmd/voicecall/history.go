package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"formvoice/native/internal/archive"
	"formvoice/native/internal/config"
)

var (
	historyLimit int
	historyPath  string
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	modeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Italic(true)
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List sessions recorded in the local archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := historyPath
		if path == "" {
			cfg, err := config.Load(profilePath)
			if err != nil {
				return err
			}
			path = cfg.ArchivePath
		}
		if path == "" {
			return fmt.Errorf("no archive configured (set VOICECALL_ARCHIVE or --db)")
		}

		journal, err := archive.Open(cmd.Context(), path)
		if err != nil {
			return err
		}
		defer journal.Close()

		entries, err := journal.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		renderHistory(cmd.OutOrStdout(), entries)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of sessions to show (0 for all)")
	historyCmd.Flags().StringVar(&historyPath, "db", "", "Archive database path (defaults to VOICECALL_ARCHIVE)")
	rootCmd.AddCommand(historyCmd)
}

func renderHistory(w io.Writer, entries []archive.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No archived sessions.")
		return
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d session(s)", len(entries))))
	for _, e := range entries {
		duration := e.StoppedAt.Sub(e.StartedAt).Round(time.Second)
		fmt.Fprintf(w, "\n%s  %s  %s\n",
			idStyle.Render(e.SessionID),
			modeStyle.Render(e.Mode),
			dateStyle.Render(e.StoppedAt.Local().Format("2006-01-02 15:04")+" ("+duration.String()+")"),
		)
		fmt.Fprintf(w, "  %s turns  save=%s  analyze=%s\n",
			countStyle.Render(fmt.Sprint(len(e.Turns))),
			renderStatus(e.SaveStatus),
			renderStatus(e.AnalyzeStatus),
		)
		if len(e.Verified) > 0 {
			fmt.Fprintf(w, "  verified: %s\n", joinSorted(e.Verified))
		}
		if len(e.Extracted) > 0 {
			fmt.Fprintf(w, "  extracted: %s\n", joinSorted(e.Extracted))
		}
	}
}

func renderStatus(s string) string {
	if s == "failed" {
		return failedStyle.Render(s)
	}
	return s
}

func joinSorted[M ~map[string]string](m M) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+m[k])
	}
	return strings.Join(parts, ", ")
}
