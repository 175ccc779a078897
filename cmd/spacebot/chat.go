package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/antariksh/spacebot/internal/bus"
	"github.com/antariksh/spacebot/internal/chat"
	"github.com/antariksh/spacebot/internal/gateway"
	"github.com/antariksh/spacebot/internal/session"
	"github.com/antariksh/spacebot/internal/widget"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session with the ISRO assistant.

Type a message and press enter to send it. Slash commands control the
widget:

  /expand   toggle between docked and expanded
  /close    close the chat (saves the conversation if you sent anything)
  /open     reopen the chat after a close
  /quit     exit (also saves via close)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// terminalPresenter renders widget signals as terminal lines.
type terminalPresenter struct{}

func (terminalPresenter) MessageAppended(m chat.Message) {
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

func (terminalPresenter) LoginRequired() {
	printWarning("log in first: spacebot login --email you@example.com")
}

func (terminalPresenter) StateChanged(s widget.State) {
	printStep("chat %s", s)
}

func (terminalPresenter) InFlightChanged(busy bool) {
	if busy {
		printStep("thinking...")
	}
}

func runChat() error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := bus.New(log)
	defer b.Close()

	store, err := session.Open(cfg.Storage.DataDir, log)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	mgr, err := session.NewManager(cfg.Storage.DataDir, b, log)
	if err != nil {
		return err
	}

	ctrl := widget.New(mgr, store, gateway.New(cfg.Gateway.BaseURL), terminalPresenter{}, log)

	go func() {
		if err := session.WatchIdentity(ctx, mgr, log); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("identity watcher stopped", "error", err)
		}
	}()
	go func() {
		if err := ctrl.Watch(ctx, b); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("session event watcher stopped", "error", err)
		}
	}()

	ctrl.Open()
	if !ctrl.State().Open() {
		return fmt.Errorf("not logged in")
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stdout, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "/") {
			if done := runChatCommand(ctrl, line); done {
				return nil
			}
			continue
		}

		if err := ctrl.Send(ctx, line); err != nil {
			switch {
			case errors.Is(err, widget.ErrInputEmpty):
				// Nothing to send.
			case errors.Is(err, widget.ErrSendInFlight):
				printWarning("still waiting for the previous answer")
			case errors.Is(err, widget.ErrLoginRequired):
				// Presenter already announced it.
			case errors.Is(err, widget.ErrNotOpen):
				printWarning("chat is closed; /open to reopen")
			default:
				// Gateway failures surface as bot messages; anything
				// else is unexpected.
				printError("send failed: %v", err)
			}
		}

		if ctx.Err() != nil {
			break
		}
	}

	ctrl.Close()
	return nil
}

// runChatCommand handles slash commands. It reports whether the session
// should end.
func runChatCommand(ctrl *widget.Controller, line string) bool {
	switch line {
	case "/expand":
		ctrl.ToggleExpand()
	case "/close":
		ctrl.Close()
	case "/open":
		ctrl.Open()
	case "/quit", "/exit":
		ctrl.Close()
		return true
	default:
		printWarning("unknown command %s (try /expand, /close, /open, /quit)", line)
	}
	return false
}
