package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lexiqai/voice-reader/internal/language"
)

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the supported languages and their voices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printLanguages(cmd.OutOrStdout())
			return nil
		},
	}
}

func printLanguages(w io.Writer) {
	fmt.Fprintf(w, "%-12s %-12s %-8s %-18s %s\n", "COMMAND", "NAME", "LOCALE", "VOICE", "RATE")
	for _, l := range language.All() {
		fmt.Fprintf(w, "/%-11s %-12s %-8s %-18s %.2g\n", l.Command, l.DisplayName(), l.LocaleCode, l.VoiceName, l.SpeakingRate)
	}
}
