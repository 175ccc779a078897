package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/antariksh/spacebot/internal/gateway"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the assistant a single question (no history)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadRuntime()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		query := strings.Join(args, " ")
		lines, err := gateway.New(cfg.Gateway.BaseURL).Ask(ctx, query)
		if err != nil {
			return fmt.Errorf("asking: %w", err)
		}

		for _, line := range lines {
			fmt.Fprintln(os.Stdout, line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
