package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lexiqai/voice-reader/internal/config"
	"github.com/lexiqai/voice-reader/internal/language"
	"github.com/lexiqai/voice-reader/internal/observability"
	"github.com/lexiqai/voice-reader/internal/text"
	"github.com/lexiqai/voice-reader/internal/tts"
)

type sayOptions struct {
	language       string
	out            string
	dryRun         bool
	maxChunkLength int
}

func newSayCmd() *cobra.Command {
	opts := &sayOptions{}

	cmd := &cobra.Command{
		Use:   "say [TEXT...]",
		Short: "Synthesize text to an audio file",
		Long: "Synthesize text the way the bot does and write the OGG/Opus audio to a file.\n" +
			"The text is read from the arguments, or from stdin when there are none.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return say(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.language, "language", "l", "english", "language command or name")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "speech.ogg", "output file")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the chunks without calling the speech service")
	cmd.Flags().IntVar(&opts.maxChunkLength, "max-chunk-length", 0, "chunk size limit in bytes (default MAX_CHUNK_LENGTH)")

	return cmd
}

func say(ctx context.Context, in io.Reader, w io.Writer, args []string, opts *sayOptions) error {
	lang, err := language.Resolve(opts.language)
	if err != nil {
		return err
	}

	input, err := readInput(in, args)
	if err != nil {
		return err
	}

	if opts.dryRun {
		maxLen := opts.maxChunkLength
		if maxLen <= 0 {
			maxLen = text.DefaultMaxChunkLength
		}
		for i, chunk := range text.Split(input, maxLen) {
			fmt.Fprintf(w, "%d\t%d\t%s\n", i+1, len(chunk), chunk)
		}
		return nil
	}

	cfg, err := config.LoadSynthesis()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.maxChunkLength > 0 {
		cfg.MaxChunkLength = opts.maxChunkLength
	}
	logger := observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)

	chunks := text.Split(input, cfg.MaxChunkLength)
	if len(chunks) == 0 {
		return fmt.Errorf("no readable text in input")
	}

	audio, err := synthesizeAll(ctx, newSynthesizer(cfg, logger), chunks, lang)
	if err != nil {
		return err
	}

	if err := os.WriteFile(opts.out, audio, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.out, err)
	}

	logger.Info().
		Str("language", lang.Name).
		Int("chunks", len(chunks)).
		Int("audio_bytes", len(audio)).
		Str("file", opts.out).
		Msg("Audio written")
	fmt.Fprintln(w, opts.out)
	return nil
}

// synthesizeAll synthesizes chunks in order and concatenates the audio
func synthesizeAll(ctx context.Context, synth tts.Synthesizer, chunks []string, lang language.Language) ([]byte, error) {
	var audio []byte
	for i, chunk := range chunks {
		part, err := synth.Synthesize(ctx, chunk, lang)
		if err != nil {
			return nil, fmt.Errorf("synthesize chunk %d/%d (%s): %w", i+1, len(chunks), tts.Kind(err), err)
		}
		audio = append(audio, part...)
	}
	return audio, nil
}

func readInput(in io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}
