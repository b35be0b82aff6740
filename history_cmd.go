package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/muesli/reflow/truncate"
	"github.com/spf13/cobra"

	"github.com/QuocLam98/aiknvm-client/internal/auth"
	"github.com/QuocLam98/aiknvm-client/internal/prefs"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List your past conversations",
	Long:  paragraph(fmt.Sprintf("\nList your past conversations. Requires a %s.", keyword("login"))),
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openPrefs()
		if err != nil {
			return err
		}
		token, err := auth.Require(store, prefs.KeyToken, time.Now())
		if err != nil {
			if errors.Is(err, auth.ErrNoToken) || errors.Is(err, auth.ErrTokenExpired) {
				return fmt.Errorf("%w: run `aiknvm login --token TOKEN`", err)
			}
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		chats, err := client.HistoryChat(cmd.Context(), token)
		if err != nil {
			return fmt.Errorf("unable to load history: %w", err)
		}

		w := cmd.OutOrStdout()
		if len(chats) == 0 {
			fmt.Fprintln(w, "No conversations yet.")
			return nil
		}
		nameWidth := uint(width) //nolint:gosec
		if nameWidth > 40 {
			nameWidth = nameWidth - 30
		}
		for _, c := range chats {
			fmt.Fprintf(w, "%s  %s  %s\n", c.ID, truncate.StringWithTail(c.Name, nameWidth, "…"), voiceOff(c.Bot))
		}
		return nil
	},
}
