package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/QuocLam98/aiknvm-client/internal/prefs"
)

var (
	voiceCmd = &cobra.Command{
		Use:   "voice",
		Short: "Manage spoken replies",
		Args:  cobra.NoArgs,
	}

	voiceToggleCmd = &cobra.Command{
		Use:   "toggle",
		Short: "Turn spoken replies on or off",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openPrefs()
			if err != nil {
				return err
			}
			enabled := !store.EnableVoicePlayback()
			if err := store.SetEnableVoicePlayback(enabled); err != nil {
				return fmt.Errorf("unable to save voice preference: %w", err)
			}
			printVoiceState(cmd.OutOrStdout(), enabled)
			return nil
		},
	}

	voiceStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show whether replies are spoken",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openPrefs()
			if err != nil {
				return err
			}
			printVoiceState(cmd.OutOrStdout(), store.EnableVoicePlayback())
			return nil
		},
	}

	voiceBotsCmd = &cobra.Command{
		Use:   "bots",
		Short: "List the bot ids whose replies are spoken",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := newRegistry()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if reg.Len() == 0 {
				fmt.Fprintln(w, "No voice bots configured. Set voice.bots or AIKNVM_BOTS_VOICE.")
				return nil
			}
			for _, id := range reg.IDs() {
				fmt.Fprintln(w, id)
			}
			return nil
		},
	}
)

func init() {
	voiceCmd.AddCommand(voiceToggleCmd, voiceStatusCmd, voiceBotsCmd)
}

func printVoiceState(w io.Writer, enabled bool) {
	if enabled {
		fmt.Fprintf(w, "Voice playback %s (%s)\n", voiceOn("on"), prefs.KeyEnableVoicePlayback)
		return
	}
	fmt.Fprintf(w, "Voice playback %s (%s)\n", voiceOff("off"), prefs.KeyEnableVoicePlayback)
}
