package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-reader/internal/language"
	"github.com/lexiqai/voice-reader/internal/observability"
	"github.com/lexiqai/voice-reader/internal/resilience"
	"github.com/lexiqai/voice-reader/internal/text"
	"github.com/lexiqai/voice-reader/internal/tts"
)

// HelpCommand lists the supported commands
const HelpCommand = "help"

const menuHeader = "These commands are supported:"

// maxNoticeBody bounds the provider error excerpt shown to users
const maxNoticeBody = 300

// Message is one inbound unit from a transport
type Message struct {
	ConversationID string
	Command        string // Recognized command keyword without the slash, empty for plain messages
	Text           string // Message text, empty when the message carries none
}

// Replier delivers replies to the conversation a Message came from
type Replier interface {
	SendText(ctx context.Context, text string) error
	SendAudio(ctx context.Context, audio []byte) error
}

// Command describes one entry of the command surface
type Command struct {
	Name        string
	Description string
}

// Engine drives the conversation state machine. Handle must not be called
// concurrently for the same conversation id; transports serialize turns.
type Engine struct {
	store       Store
	synth       tts.Synthesizer
	maxChunkLen int
	logger      zerolog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithMaxChunkLength sets the chunk size limit passed to the splitter
func WithMaxChunkLength(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxChunkLen = n
		}
	}
}

// WithLogger sets the engine logger
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine over a state store and a synthesizer
func NewEngine(store Store, synth tts.Synthesizer, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		synth:       synth,
		maxChunkLen: text.DefaultMaxChunkLength,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Commands returns the command surface: help followed by one command per language
func (e *Engine) Commands() []Command {
	langs := language.All()
	cmds := make([]Command, 0, len(langs)+1)
	cmds = append(cmds, Command{Name: HelpCommand, Description: "display this text."})
	for _, l := range langs {
		cmds = append(cmds, Command{
			Name:        l.Command,
			Description: fmt.Sprintf("read a text in %s.", l.DisplayName()),
		})
	}
	return cmds
}

// Menu returns the command list shown to users
func (e *Engine) Menu() string {
	var b strings.Builder
	b.WriteString(menuHeader)
	for _, c := range e.Commands() {
		fmt.Fprintf(&b, "\n/%s - %s", c.Name, c.Description)
	}
	return b.String()
}

// Prompt returns the request for text in lang
func Prompt(lang language.Language) string {
	return fmt.Sprintf("Send me a plain text in %s.", lang.DisplayName())
}

// Handle processes one inbound message and replies through out.
//
// Synthesis failures are reported to the conversation as a text notice and
// returned; the conversation then stays in AwaitingText so the user can
// resend the text. No audio is sent unless every chunk succeeded.
func (e *Engine) Handle(ctx context.Context, msg Message, out Replier) error {
	metrics := observability.NewTurnMetrics()
	logger := observability.WithCorrelationID(observability.WithConversation(e.logger, msg.ConversationID), "")

	if msg.Command != "" {
		err := e.handleCommand(ctx, msg, out, logger)
		e.endTurn(metrics, observability.OutcomePrompted, err)
		return err
	}

	state, err := e.store.Get(ctx, msg.ConversationID)
	if err != nil {
		metrics.RecordError("state_store", "dialogue")
		e.notify(ctx, out, logger, "Something went wrong, please try again.")
		metrics.RecordTurnEnd(observability.OutcomeFailed)
		return fmt.Errorf("load state for %s: %w", msg.ConversationID, err)
	}

	if state.Stage != AwaitingText {
		err := e.transition(ctx, msg.ConversationID, out, e.Menu(), Idle())
		e.endTurn(metrics, observability.OutcomePrompted, err)
		return err
	}

	outcome, err := e.handleText(ctx, msg, state.Language, out, metrics, logger)
	e.endTurn(metrics, outcome, err)
	return err
}

func (e *Engine) handleCommand(ctx context.Context, msg Message, out Replier, logger zerolog.Logger) error {
	name := normalizeCommand(msg.Command)

	if name != HelpCommand {
		if lang, err := language.Resolve(name); err == nil {
			logger.Debug().Str("language", lang.Name).Msg("Language selected")
			return e.transition(ctx, msg.ConversationID, out, Prompt(lang), ReceiveText(lang))
		}
		logger.Debug().Str("command", msg.Command).Msg("Unrecognized command")
	}

	return e.transition(ctx, msg.ConversationID, out, e.Menu(), Idle())
}

func (e *Engine) handleText(
	ctx context.Context,
	msg Message,
	lang language.Language,
	out Replier,
	metrics *observability.TurnMetrics,
	logger zerolog.Logger,
) (string, error) {
	chunks := text.Split(msg.Text, e.maxChunkLen)
	if len(chunks) == 0 {
		// Nothing readable: ask again and keep the chosen language
		return observability.OutcomePrompted, out.SendText(ctx, Prompt(lang))
	}

	logger = logger.With().Str("language", lang.Name).Int("chunks", len(chunks)).Logger()
	logger.Debug().Int("text_bytes", len(msg.Text)).Msg("Synthesizing text")

	var audio []byte
	for i, chunk := range chunks {
		metrics.RecordTTSStart()
		part, err := e.synth.Synthesize(ctx, chunk, lang)
		metrics.RecordTTSEnd(err == nil)

		if err != nil {
			kind := tts.Kind(err)
			metrics.RecordError(kind, "tts")
			logger.Error().
				Err(err).
				Str("error_kind", kind).
				Int("chunk", i+1).
				Msg("Synthesis failed")

			e.notify(ctx, out, logger, failureNotice(err, lang))
			return observability.OutcomeFailed, fmt.Errorf("synthesize chunk %d/%d: %w", i+1, len(chunks), err)
		}
		audio = append(audio, part...)
	}

	metrics.RecordChunks(len(chunks))

	if err := out.SendAudio(ctx, audio); err != nil {
		metrics.RecordError("delivery", "transport")
		logger.Error().Err(err).Int("audio_bytes", len(audio)).Msg("Voice delivery failed")
		e.notify(ctx, out, logger, deliveryNotice(lang))
		return observability.OutcomeFailed, fmt.Errorf("send audio: %w", err)
	}
	metrics.RecordAudioBytes(len(audio))
	logger.Info().Int("audio_bytes", len(audio)).Msg("Voice reply sent")

	if err := e.store.Set(ctx, msg.ConversationID, Idle()); err != nil {
		metrics.RecordError("state_store", "dialogue")
		return observability.OutcomeSynthesized, fmt.Errorf("save state: %w", err)
	}
	return observability.OutcomeSynthesized, nil
}

// transition sends reply and then moves the conversation to next
func (e *Engine) transition(ctx context.Context, conversationID string, out Replier, reply string, next State) error {
	if err := out.SendText(ctx, reply); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	if err := e.store.Set(ctx, conversationID, next); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (e *Engine) notify(ctx context.Context, out Replier, logger zerolog.Logger, notice string) {
	if err := out.SendText(ctx, notice); err != nil {
		logger.Warn().Err(err).Msg("Failed to deliver error notice")
	}
}

func (e *Engine) endTurn(metrics *observability.TurnMetrics, outcome string, err error) {
	if err != nil && outcome != observability.OutcomeFailed {
		outcome = observability.OutcomeFailed
	}
	metrics.RecordTurnEnd(outcome)
}

// normalizeCommand lowercases a command and strips "/" and a "@botname" suffix
func normalizeCommand(cmd string) string {
	cmd = strings.TrimPrefix(strings.TrimSpace(cmd), "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}

// deliveryNotice explains that the voice reply could not be delivered
func deliveryNotice(lang language.Language) string {
	return fmt.Sprintf("I could not deliver the voice message. Check that voice messages are allowed in this chat.\n"+
		"The language is still %s, send the text again to retry.", lang.DisplayName())
}

// failureNotice explains a synthesis failure to the user
func failureNotice(err error, lang language.Language) string {
	var (
		remote    *tts.RemoteServiceError
		transport *tts.TransportError
		decode    *tts.DecodeError
		reason    string
	)

	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		reason = "The speech service is temporarily unavailable."
	case errors.As(err, &remote):
		reason = fmt.Sprintf("The speech service rejected the request (status %d): %s",
			remote.StatusCode, text.Truncate(remote.Body, maxNoticeBody))
	case errors.As(err, &transport):
		reason = "I could not reach the speech service."
	case errors.As(err, &decode):
		reason = "The speech service returned an unexpected response."
	default:
		reason = "Something went wrong while reading your text."
	}

	return fmt.Sprintf("%s\nThe language is still %s, send the text again to retry.", reason, lang.DisplayName())
}
