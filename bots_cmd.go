package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/QuocLam98/aiknvm-client/internal/backend"
	"github.com/QuocLam98/aiknvm-client/internal/registry"
)

const botNameWidth = 28

var (
	botsFilter string

	botsCmd = &cobra.Command{
		Use:     "bots",
		Short:   "List the chat bots",
		Long:    paragraph(fmt.Sprintf("\nList the selectable chat bots by priority. Bots whose replies are %s are marked.", keyword("spoken"))),
		Example: paragraph("aiknvm bots\naiknvm bots --filter eng"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			bots, err := client.ListBots(cmd.Context())
			if err != nil {
				return fmt.Errorf("unable to list bots: %w", err)
			}
			reg, err := newRegistry()
			if err != nil {
				return err
			}
			printBots(cmd.OutOrStdout(), filterBots(bots, botsFilter), reg, time.Now())
			return nil
		},
	}
)

func init() {
	botsCmd.Flags().StringVarP(&botsFilter, "filter", "f", "", "fuzzy filter on bot names")
}

// filterBots keeps the bots whose name fuzzily matches q, in their original
// order.
func filterBots(bots []backend.Bot, q string) []backend.Bot {
	if q == "" {
		return bots
	}
	names := make([]string, len(bots))
	for i, b := range bots {
		names[i] = b.Name
	}

	matches := fuzzy.Find(q, names)
	idx := make([]int, len(matches))
	for i, m := range matches {
		idx[i] = m.Index
	}
	sort.Ints(idx)

	out := make([]backend.Bot, len(idx))
	for i, j := range idx {
		out[i] = bots[j]
	}
	return out
}

func printBots(w io.Writer, bots []backend.Bot, reg *registry.Registry, now time.Time) {
	if len(bots) == 0 {
		fmt.Fprintln(w, "No bots found.")
		return
	}
	for _, b := range bots {
		name := runewidth.FillRight(runewidth.Truncate(b.Name, botNameWidth, "…"), botNameWidth)
		marker := voiceOff("  ")
		if reg.IsVoiceBot(b.ID) {
			marker = voiceOn("♪ ")
		}
		fmt.Fprintf(w, "%s%s  %s  %s\n", marker, name, b.ID, created(b.CreatedAt, now))
	}
}

// created formats a backend timestamp relative to now.
func created(ts string, now time.Time) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
