package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lexiqai/voice-reader/internal/language"
	"github.com/lexiqai/voice-reader/internal/text"
)

// DefaultEndpoint is the Google Cloud Text-to-Speech synthesize method
const DefaultEndpoint = "https://texttospeech.googleapis.com/v1/text:synthesize"

// GoogleClient implements Synthesizer with the Google Cloud TTS REST API.
// Every call is one POST with no retries and no caching.
type GoogleClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
}

// synthesizeRequest is the request payload of text:synthesize
type synthesizeRequest struct {
	Input       synthesisInput             `json:"input"`
	Voice       language.VoiceParams       `json:"voice"`
	AudioConfig language.AudioConfigParams `json:"audioConfig"`
}

type synthesisInput struct {
	Text string `json:"text"`
}

// synthesizeResponse carries base64 encoded audio
type synthesizeResponse struct {
	AudioContent *string `json:"audioContent"`
}

// GoogleOption configures a GoogleClient
type GoogleOption func(*GoogleClient)

// WithEndpoint overrides the synthesize URL
func WithEndpoint(endpoint string) GoogleOption {
	return func(c *GoogleClient) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithHTTPClient sets the HTTP client used for requests. The client is
// copied, so a timeout set with WithTimeout never changes the caller's.
func WithHTTPClient(client *http.Client) GoogleOption {
	return func(c *GoogleClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request HTTP timeout; zero keeps the client's own
func WithTimeout(timeout time.Duration) GoogleOption {
	return func(c *GoogleClient) {
		c.timeout = timeout
	}
}

// NewGoogleClient creates a Google TTS client authenticating with apiKey
func NewGoogleClient(apiKey string, opts ...GoogleOption) *GoogleClient {
	c := &GoogleClient{
		apiKey:     apiKey,
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}

	owned := *c.httpClient
	if c.timeout > 0 {
		owned.Timeout = c.timeout
	}
	c.httpClient = &owned
	return c
}

// Synthesize converts text to audio in the given language
func (c *GoogleClient) Synthesize(ctx context.Context, input string, lang language.Language) ([]byte, error) {
	payload, err := json.Marshal(synthesizeRequest{
		Input:       synthesisInput{Text: input},
		Voice:       lang.Voice(),
		AudioConfig: lang.AudioConfig(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqURL, err := c.requestURL()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteServiceError{
			StatusCode: resp.StatusCode,
			Body:       text.Truncate(strings.TrimSpace(string(body)), maxErrorBody),
		}
	}

	return decodeAudio(body)
}

func (c *GoogleClient) requestURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid tts endpoint %q: %w", c.endpoint, err)
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func decodeAudio(body []byte) ([]byte, error) {
	var r synthesizeResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, &DecodeError{Reason: "invalid JSON response", Err: err}
	}
	if r.AudioContent == nil {
		return nil, &DecodeError{Reason: "response has no audioContent field"}
	}
	if *r.AudioContent == "" {
		return nil, &DecodeError{Reason: "audioContent is empty"}
	}

	audio, err := base64.StdEncoding.DecodeString(*r.AudioContent)
	if err != nil {
		return nil, &DecodeError{Reason: "audioContent is not valid base64", Err: err}
	}
	return audio, nil
}
