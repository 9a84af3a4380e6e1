package tts

import (
	"errors"
	"fmt"
	"net/http"
)

// maxErrorBody bounds how much of an upstream error body is kept
const maxErrorBody = 2048

// RemoteServiceError is a non-success HTTP response from the TTS provider
type RemoteServiceError struct {
	StatusCode int
	Body       string
}

func (e *RemoteServiceError) Error() string {
	return fmt.Sprintf("tts provider returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the provider itself failed (5xx) or throttled (429)
func (e *RemoteServiceError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// TransportError is a failure to reach the TTS provider or read its response
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("tts transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError is a response that does not carry valid audio
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tts decode: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("tts decode: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Kind names the error class of err for logs and metrics
func Kind(err error) string {
	var remote *RemoteServiceError
	var transport *TransportError
	var decode *DecodeError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &remote):
		return "remote_service"
	case errors.As(err, &transport):
		return "transport"
	case errors.As(err, &decode):
		return "decode"
	default:
		return "unknown"
	}
}
