package tts

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/lexiqai/voice-reader/internal/language"
	"github.com/lexiqai/voice-reader/internal/resilience"
)

type stubSynthesizer struct {
	err   error
	calls int
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, text string, lang language.Language) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []byte(text), nil
}

func TestGuardedSynthesizer_OpensOnOutage(t *testing.T) {
	stub := &stubSynthesizer{err: &TransportError{Err: errors.New("connection refused")}}
	guarded := NewGuardedSynthesizer(stub, resilience.NewCircuitBreaker("tts", 2, time.Hour))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := guarded.Synthesize(ctx, "Hi.", polish(t)); err == nil {
			t.Fatal("Expected error from failing provider")
		}
	}

	_, err := guarded.Synthesize(ctx, "Hi.", polish(t))
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("Expected ErrCircuitOpen, got %v", err)
	}
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Errorf("Expected rejection to surface as TransportError, got %T", err)
	}
	if stub.calls != 2 {
		t.Errorf("Expected provider to be called twice, got %d", stub.calls)
	}
}

func TestGuardedSynthesizer_ClientErrorsDoNotTrip(t *testing.T) {
	stub := &stubSynthesizer{err: &RemoteServiceError{StatusCode: http.StatusBadRequest, Body: "bad"}}
	breaker := resilience.NewCircuitBreaker("tts", 1, time.Hour)
	guarded := NewGuardedSynthesizer(stub, breaker)

	for i := 0; i < 3; i++ {
		guarded.Synthesize(context.Background(), "Hi.", polish(t))
	}

	if breaker.GetState() != resilience.StateClosed {
		t.Errorf("Expected 4xx responses to keep the circuit closed, got %s", breaker.GetState())
	}
	if stub.calls != 3 {
		t.Errorf("Expected 3 provider calls, got %d", stub.calls)
	}
}

func TestGuardedSynthesizer_ServerErrorsTrip(t *testing.T) {
	stub := &stubSynthesizer{err: &RemoteServiceError{StatusCode: http.StatusServiceUnavailable}}
	breaker := resilience.NewCircuitBreaker("tts", 1, time.Hour)
	guarded := NewGuardedSynthesizer(stub, breaker)

	guarded.Synthesize(context.Background(), "Hi.", polish(t))

	if breaker.GetState() != resilience.StateOpen {
		t.Errorf("Expected 503 to open the circuit, got %s", breaker.GetState())
	}
}

func TestGuardedSynthesizer_PassesThrough(t *testing.T) {
	stub := &stubSynthesizer{}
	guarded := NewGuardedSynthesizer(stub, resilience.NewCircuitBreaker("tts", 1, time.Hour))

	audio, err := guarded.Synthesize(context.Background(), "Hi.", polish(t))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(audio) != "Hi." {
		t.Errorf("Expected stub audio, got %q", audio)
	}
}
