package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/QuocLam98/aiknvm-client/internal/auth"
	"github.com/QuocLam98/aiknvm-client/internal/prefs"
)

var (
	loginToken         string
	loginFromClipboard bool

	loginCmd = &cobra.Command{
		Use:   "login",
		Short: "Store a session token",
		Long: paragraph(fmt.Sprintf("\n%s the session token issued by the chat backend. "+
			"Without --token it is read from the clipboard or prompted for.", keyword("Store"))),
		Example: paragraph("aiknvm login --token eyJhbGciOi...\naiknvm login --from-clipboard"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := readToken()
			if err != nil {
				return err
			}
			if err := auth.Check(token, time.Now()); err != nil {
				return err
			}

			store, err := openPrefs()
			if err != nil {
				return err
			}
			if err := store.Set(prefs.KeyToken, token); err != nil {
				return err
			}
			log.Debug("Stored session token", "path", store.Path())
			fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
			return nil
		},
	}

	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openPrefs()
			if err != nil {
				return err
			}
			if err := store.Delete(prefs.KeyToken); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
)

func init() {
	loginCmd.Flags().StringVar(&loginToken, "token", "", "session token")
	loginCmd.Flags().BoolVar(&loginFromClipboard, "from-clipboard", false, "read the token from the clipboard")
}

func readToken() (string, error) {
	switch {
	case loginToken != "":
		return strings.TrimSpace(loginToken), nil

	case loginFromClipboard:
		t, err := clipboard.ReadAll()
		if err != nil {
			return "", fmt.Errorf("unable to read clipboard: %w", err)
		}
		return strings.TrimSpace(t), nil

	case term.IsTerminal(int(os.Stdin.Fd())):
		fmt.Fprint(os.Stderr, "Token: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("unable to read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil

	default:
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", errors.New("no token given")
		}
		return strings.TrimSpace(line), nil
	}
}
