package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	serveCmd := newServeCmd()

	rootCmd := &cobra.Command{
		Use:   "voice-reader",
		Short: "Telegram bot that reads text messages aloud",
		Long: "Voice Reader answers text messages with voice messages.\n" +
			"Pick a language with a command, send a text and get it read back.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		// Running without a subcommand serves the bot
		RunE: serveCmd.RunE,
	}

	rootCmd.AddCommand(serveCmd, newSayCmd(), newLanguagesCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}
