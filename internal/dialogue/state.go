// Package dialogue implements the per-conversation state machine of the bot.
//
// A conversation is either waiting for a command or waiting for text to read
// in a chosen language. State lives in a Store keyed by conversation id.
package dialogue

import (
	"fmt"
	"strings"

	"github.com/lexiqai/voice-reader/internal/language"
)

// Stage is the shape of a conversation state
type Stage int

const (
	// AwaitingCommand is the initial state: no language chosen yet
	AwaitingCommand Stage = iota
	// AwaitingText means the next text message is read in State.Language
	AwaitingText
)

func (s Stage) String() string {
	switch s {
	case AwaitingCommand:
		return "awaiting_command"
	case AwaitingText:
		return "awaiting_text"
	default:
		return "unknown"
	}
}

// State is the pending state of one conversation. Language is only
// meaningful when Stage is AwaitingText.
type State struct {
	Stage    Stage
	Language language.Language
}

// Idle returns the AwaitingCommand state
func Idle() State {
	return State{Stage: AwaitingCommand}
}

// ReceiveText returns the AwaitingText state for lang
func ReceiveText(lang language.Language) State {
	return State{Stage: AwaitingText, Language: lang}
}

// String encodes the state as "awaiting_command" or "awaiting_text:<command>"
func (s State) String() string {
	if s.Stage == AwaitingText {
		return AwaitingText.String() + ":" + s.Language.Command
	}
	return AwaitingCommand.String()
}

// ParseState decodes a value produced by State.String. An AwaitingText value
// naming a language outside the catalogue fails with language.ErrUnknownLanguage.
func ParseState(v string) (State, error) {
	if v == AwaitingCommand.String() {
		return Idle(), nil
	}

	prefix := AwaitingText.String() + ":"
	if !strings.HasPrefix(v, prefix) {
		return State{}, fmt.Errorf("invalid dialogue state %q", v)
	}

	lang, err := language.Resolve(strings.TrimPrefix(v, prefix))
	if err != nil {
		return State{}, err
	}
	return ReceiveText(lang), nil
}
