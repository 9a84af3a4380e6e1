// Package telegram connects the dialogue engine to the Telegram Bot API
// through long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-reader/internal/dialogue"
	"github.com/lexiqai/voice-reader/internal/observability"
	"github.com/lexiqai/voice-reader/internal/resilience"
	"github.com/lexiqai/voice-reader/internal/transport"
)

// VoiceFileName is the file name attached to voice replies
const VoiceFileName = "speech.ogg"

// ErrNotConnected is returned before Connect succeeded
var ErrNotConnected = errors.New("telegram bot not connected")

// Handler processes one conversation turn
type Handler interface {
	Handle(ctx context.Context, msg dialogue.Message, out dialogue.Replier) error
	Commands() []dialogue.Command
}

// Sender is the part of the Bot API used to reply
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Config holds the Telegram transport settings
type Config struct {
	Token       string
	PollTimeout int           // seconds
	APIEndpoint string        // format string for method URLs, tgbotapi.APIEndpoint when empty
	HTTPClient  *http.Client  // client for Bot API calls, a default client when nil
	TurnTimeout time.Duration // upper bound for one turn, 0 means none
	Reconnect   *resilience.ReconnectConfig
}

// Bot receives updates and replies through the Bot API. Turns of one chat
// run in arrival order; different chats are handled concurrently.
type Bot struct {
	handler Handler
	cfg     Config
	logger  zerolog.Logger
	serial  *transport.Serializer

	mu     sync.RWMutex
	api    *tgbotapi.BotAPI
	sender Sender
}

// NewBot creates a bot that is not yet connected
func NewBot(handler Handler, cfg Config, logger zerolog.Logger) *Bot {
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 60
	}

	return &Bot{
		handler: handler,
		cfg:     cfg,
		logger:  logger.With().Str("component", "telegram").Logger(),
		serial:  transport.NewSerializer(),
	}
}

// Connect authenticates the bot token and registers the command menu,
// retrying with backoff.
func (b *Bot) Connect(ctx context.Context) error {
	if b.cfg.Token == "" {
		return fmt.Errorf("telegram bot token is required")
	}

	if err := tgbotapi.SetLogger(botLogger{b.logger}); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to set Bot API logger")
	}

	var api *tgbotapi.BotAPI
	err := resilience.Reconnect(ctx, func(ctx context.Context) error {
		var err error
		api, err = tgbotapi.NewBotAPIWithClient(b.cfg.Token, b.cfg.APIEndpoint, b.cfg.HTTPClient)
		return err
	}, b.cfg.Reconnect, b.logger)
	if err != nil {
		observability.RecordError("connect", "telegram")
		return fmt.Errorf("failed to connect to telegram: %w", err)
	}

	if err := registerCommands(api, b.handler.Commands()); err != nil {
		// The bot still works without the menu
		b.logger.Warn().Err(err).Msg("Failed to register command menu")
	}

	b.mu.Lock()
	b.api = api
	b.sender = api
	b.mu.Unlock()

	b.logger.Info().Str("username", api.Self.UserName).Msg("Connected to Telegram")
	return nil
}

// Check reports whether the bot is connected, for readiness checks
func (b *Bot) Check(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.sender == nil {
		return ErrNotConnected
	}
	return nil
}

// Run polls for updates until ctx is done, then waits for running turns
func (b *Bot) Run(ctx context.Context) error {
	b.mu.RLock()
	api := b.api
	b.mu.RUnlock()
	if api == nil {
		return ErrNotConnected
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollTimeout
	updates := api.GetUpdatesChan(u)

	b.logger.Info().Int("poll_timeout", b.cfg.PollTimeout).Msg("Polling for updates")

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			b.serial.Wait()
			b.logger.Info().Msg("Stopped polling")
			return nil
		case update, ok := <-updates:
			if !ok {
				b.serial.Wait()
				return nil
			}
			b.Dispatch(ctx, update)
		}
	}
}

// Dispatch queues one update behind earlier updates of the same chat.
// Updates without a message are ignored.
func (b *Bot) Dispatch(ctx context.Context, update tgbotapi.Update) {
	msg, chatID, ok := ToMessage(update)
	if !ok {
		return
	}

	b.mu.RLock()
	sender := b.sender
	b.mu.RUnlock()
	if sender == nil {
		b.logger.Warn().Int("update_id", update.UpdateID).Msg("Dropping update, bot not connected")
		return
	}

	// Queued turns outlive shutdown of the poll loop
	turnCtx := context.WithoutCancel(ctx)
	b.serial.Do(msg.ConversationID, func() {
		ctx := turnCtx
		if b.cfg.TurnTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(turnCtx, b.cfg.TurnTimeout)
			defer cancel()
		}

		out := &chatReplier{sender: sender, chatID: chatID}
		if err := b.handler.Handle(ctx, msg, out); err != nil {
			b.logger.Error().
				Err(err).
				Str("conversation_id", msg.ConversationID).
				Msg("Turn failed")
		}
	})
}

// Wait blocks until every dispatched turn has finished
func (b *Bot) Wait() {
	b.serial.Wait()
}

// ToMessage converts an update to a dialogue message. It reports false for
// updates that carry no message, such as edits or callback queries.
func ToMessage(update tgbotapi.Update) (dialogue.Message, int64, bool) {
	m := update.Message
	if m == nil || m.Chat == nil {
		return dialogue.Message{}, 0, false
	}

	msg := dialogue.Message{ConversationID: ConversationID(m.Chat.ID)}
	if m.IsCommand() {
		msg.Command = m.Command()
	} else {
		msg.Text = m.Text
	}
	return msg, m.Chat.ID, true
}

// ConversationID returns the conversation id of a chat
func ConversationID(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

func registerCommands(api *tgbotapi.BotAPI, commands []dialogue.Command) error {
	botCommands := make([]tgbotapi.BotCommand, 0, len(commands))
	for _, c := range commands {
		botCommands = append(botCommands, tgbotapi.BotCommand{
			Command:     c.Name,
			Description: c.Description,
		})
	}

	if _, err := api.Request(tgbotapi.NewSetMyCommands(botCommands...)); err != nil {
		return fmt.Errorf("setMyCommands: %w", err)
	}
	return nil
}

// chatReplier sends replies to one chat
type chatReplier struct {
	sender Sender
	chatID int64
}

func (r *chatReplier) SendText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := r.sender.Send(tgbotapi.NewMessage(r.chatID, text)); err != nil {
		return fmt.Errorf("sendMessage: %w", err)
	}
	return nil
}

func (r *chatReplier) SendAudio(ctx context.Context, audio []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	voice := tgbotapi.NewVoice(r.chatID, tgbotapi.FileBytes{Name: VoiceFileName, Bytes: audio})
	if _, err := r.sender.Send(voice); err != nil {
		return fmt.Errorf("sendVoice: %w", err)
	}
	return nil
}

// botLogger routes Bot API library logs to zerolog
type botLogger struct {
	logger zerolog.Logger
}

func (l botLogger) Println(v ...interface{}) {
	l.logger.Debug().Msg(fmt.Sprint(v...))
}

func (l botLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug().Msgf(format, v...)
}
