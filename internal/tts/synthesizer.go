// Package tts turns text into speech through a remote provider.
package tts

import (
	"context"
	"errors"

	"github.com/lexiqai/voice-reader/internal/language"
	"github.com/lexiqai/voice-reader/internal/resilience"
)

// Synthesizer converts text to audio
type Synthesizer interface {
	// Synthesize returns the raw audio bytes for text spoken in lang
	Synthesize(ctx context.Context, text string, lang language.Language) ([]byte, error)
}

// GuardedSynthesizer fails fast through a circuit breaker while the
// provider is unavailable.
type GuardedSynthesizer struct {
	next    Synthesizer
	breaker *resilience.CircuitBreaker
}

// NewGuardedSynthesizer wraps next with breaker
func NewGuardedSynthesizer(next Synthesizer, breaker *resilience.CircuitBreaker) *GuardedSynthesizer {
	return &GuardedSynthesizer{next: next, breaker: breaker}
}

// Synthesize implements Synthesizer. A rejected call returns a
// *TransportError wrapping resilience.ErrCircuitOpen.
func (g *GuardedSynthesizer) Synthesize(ctx context.Context, text string, lang language.Language) ([]byte, error) {
	if !g.breaker.Allow() {
		return nil, &TransportError{Err: resilience.ErrCircuitOpen}
	}

	audio, err := g.next.Synthesize(ctx, text, lang)
	g.breaker.RecordResult(!countsAsOutage(ctx, err))
	return audio, err
}

// countsAsOutage reports whether err says the provider is unhealthy.
// Rejected requests and caller cancellations do not.
func countsAsOutage(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return false
	}

	var transport *TransportError
	if errors.As(err, &transport) {
		return true
	}

	var remote *RemoteServiceError
	if errors.As(err, &remote) {
		return remote.Temporary()
	}

	return false
}
