package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:     "spacebot",
	Short:   "ISRO assistant with per-user chat history",
	Version: version,
	Long: `spacebot is a workstation client for the ISRO question-answering
service: an interactive chat, a saved-chats browser, and a local host
serving the informational pages plus the chat relay.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colorized output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
