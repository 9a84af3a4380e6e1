// Package language holds the fixed catalogue of languages the bot can read in.
//
// The catalogue is a closed set known at build time. Each variant carries the
// Google TTS voice and audio parameters used to synthesize it. Adding a
// language means adding an ID and a row to the catalogue table.
package language

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownLanguage is returned when an identifier matches no catalogue entry
var ErrUnknownLanguage = errors.New("unknown language")

// AudioEncoding is the audio encoding requested from the provider
type AudioEncoding string

// EncodingOggOpus is concatenable byte-for-byte, which chunked synthesis relies on
const EncodingOggOpus AudioEncoding = "OGG_OPUS"

// ID identifies one language variant
type ID int

const (
	Portuguese ID = iota + 1
	Polish
	English
	Spanish
	Italian
)

// Language is an immutable catalogue record
type Language struct {
	ID           ID
	Name         string        // Display name, e.g. "Polish"
	Command      string        // Lowercase command keyword, e.g. "polish"
	VoiceName    string        // Provider voice identifier
	LocaleCode   string        // BCP-47 language code
	SpeakingRate float64       // 1.0 is normal speed
	Encoding     AudioEncoding // Always EncodingOggOpus
}

// VoiceParams is the "voice" object of a synthesis request
type VoiceParams struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name"`
}

// AudioConfigParams is the "audioConfig" object of a synthesis request
type AudioConfigParams struct {
	AudioEncoding AudioEncoding `json:"audioEncoding"`
	SpeakingRate  float64       `json:"speakingRate"`
}

// catalogue is kept in menu order
var catalogue = []Language{
	{
		ID:           Portuguese,
		Name:         "Portuguese",
		Command:      "portuguese",
		VoiceName:    "pt-PT-Wavenet-C",
		LocaleCode:   "pt-PT",
		SpeakingRate: 0.8,
		Encoding:     EncodingOggOpus,
	},
	{
		ID:           Polish,
		Name:         "Polish",
		Command:      "polish",
		VoiceName:    "pl-PL-Wavenet-B",
		LocaleCode:   "pl-PL",
		SpeakingRate: 1.0,
		Encoding:     EncodingOggOpus,
	},
	{
		ID:           English,
		Name:         "English",
		Command:      "english",
		VoiceName:    "en-US-Wavenet-D",
		LocaleCode:   "en-US",
		SpeakingRate: 1.0,
		Encoding:     EncodingOggOpus,
	},
	{
		ID:           Spanish,
		Name:         "Spanish",
		Command:      "spanish",
		VoiceName:    "es-ES-Wavenet-B",
		LocaleCode:   "es-ES",
		SpeakingRate: 1.0,
		Encoding:     EncodingOggOpus,
	},
	{
		ID:           Italian,
		Name:         "Italian",
		Command:      "italian",
		VoiceName:    "it-IT-Wavenet-C",
		LocaleCode:   "it-IT",
		SpeakingRate: 1.0,
		Encoding:     EncodingOggOpus,
	},
}

// Voice returns the voice selection parameters
func (l Language) Voice() VoiceParams {
	return VoiceParams{
		LanguageCode: l.LocaleCode,
		Name:         l.VoiceName,
	}
}

// AudioConfig returns the audio configuration parameters
func (l Language) AudioConfig() AudioConfigParams {
	return AudioConfigParams{
		AudioEncoding: l.Encoding,
		SpeakingRate:  l.SpeakingRate,
	}
}

// DisplayName returns the human readable name
func (l Language) DisplayName() string {
	return l.Name
}

// String implements fmt.Stringer
func (l Language) String() string {
	return l.Name
}

// All returns every supported language in menu order
func All() []Language {
	out := make([]Language, len(catalogue))
	copy(out, catalogue)
	return out
}

// Resolve finds a language by command keyword or display name, ignoring case
// and a leading slash.
func Resolve(identifier string) (Language, error) {
	key := strings.TrimPrefix(strings.TrimSpace(identifier), "/")
	for _, l := range catalogue {
		if strings.EqualFold(key, l.Command) || strings.EqualFold(key, l.Name) {
			return l, nil
		}
	}
	return Language{}, fmt.Errorf("%w: %q", ErrUnknownLanguage, identifier)
}
