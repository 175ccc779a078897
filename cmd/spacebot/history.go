package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/antariksh/spacebot/internal/chat"
	"github.com/antariksh/spacebot/internal/history"
	"github.com/antariksh/spacebot/internal/session"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse saved conversations",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved conversations, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, _, cleanup, err := newBrowser()
		if err != nil {
			return err
		}
		defer cleanup()

		entries := b.List()
		if len(entries) == 0 {
			fmt.Fprintln(os.Stdout, "No saved chats.")
			return nil
		}

		for _, e := range entries {
			fmt.Fprintf(os.Stdout, "%s  %s  (%d messages)\n",
				colorize(colorBold, e.Conversation.ID),
				e.Conversation.Timestamp.Format(time.RFC3339),
				len(e.Conversation.Messages))
			for _, line := range e.Preview {
				fmt.Fprintf(os.Stdout, "    %s\n", line)
			}
		}
		return nil
	},
}

var historyViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show the full transcript of a saved conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, _, cleanup, err := newBrowser()
		if err != nil {
			return err
		}
		defer cleanup()

		conv, err := b.View(args[0])
		if err != nil {
			if errors.Is(err, history.ErrNotFound) {
				return fmt.Errorf("no conversation with id %s", args[0])
			}
			return err
		}

		for _, m := range conv.Messages {
			label := colorize(colorCyan, "bot")
			if m.Sender == chat.SenderUser {
				label = colorize(colorGreen, "you")
			}
			text := m.Text
			if m.IsError {
				text = colorize(colorRed, text)
			}
			fmt.Fprintf(os.Stdout, "%s %s  %s\n", colorize(colorBold, m.Time), label, text)
		}
		return nil
	},
}

var historyContinueCmd = &cobra.Command{
	Use:   "continue <id>",
	Short: "Resume a saved conversation in the next chat session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, _, cleanup, err := newBrowser()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := b.Continue(args[0]); err != nil {
			if errors.Is(err, history.ErrNotFound) {
				return fmt.Errorf("no conversation with id %s", args[0])
			}
			return err
		}
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, _, cleanup, err := newBrowser()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := b.Delete(args[0]); err != nil {
			if errors.Is(err, history.ErrNotFound) {
				return fmt.Errorf("no conversation with id %s", args[0])
			}
			return err
		}

		printSuccess("Deleted %s", args[0])
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all saved conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")

		b, _, cleanup, err := newBrowser()
		if err != nil {
			return err
		}
		defer cleanup()

		confirm := func() bool {
			if yes {
				return true
			}
			fmt.Fprint(os.Stderr, "Delete ALL saved chats? [y/N] ")
			scanner := bufio.NewScanner(os.Stdin)
			if !scanner.Scan() {
				return false
			}
			answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
			return answer == "y" || answer == "yes"
		}

		if err := b.DeleteAll(confirm); err != nil {
			if errors.Is(err, history.ErrDeclined) {
				printWarning("aborted")
				return nil
			}
			return err
		}

		printSuccess("All chats deleted")
		return nil
	},
}

var historyNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start the next chat session fresh",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, _, cleanup, err := newBrowser()
		if err != nil {
			return err
		}
		defer cleanup()

		return b.NewChat()
	},
}

// newBrowser wires a Browser over the configured store and identity. The
// navigate signal just tells the user what to run next.
func newBrowser() (*history.Browser, *session.Manager, func(), error) {
	cfg, log, err := loadRuntime()
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := session.Open(cfg.Storage.DataDir, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening store: %w", err)
	}

	mgr, err := session.NewManager(cfg.Storage.DataDir, nil, log)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	if _, ok := mgr.Current(); !ok {
		store.Close()
		return nil, nil, nil, fmt.Errorf("not logged in")
	}

	navigate := func() {
		printStep("run 'spacebot chat' to pick it up")
	}

	cleanup := func() { store.Close() }
	return history.New(mgr, store, navigate, log), mgr, cleanup, nil
}

func init() {
	historyClearCmd.Flags().Bool("yes", false, "skip the confirmation prompt")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyViewCmd)
	historyCmd.AddCommand(historyContinueCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyNewCmd)
	rootCmd.AddCommand(historyCmd)
}
