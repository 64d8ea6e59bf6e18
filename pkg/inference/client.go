// Package inference talks to an OpenAI-compatible chat completion endpoint.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-go-golems/novachat/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout = 150 * time.Second
	// maxBodyBytes bounds how much of a response body is read.
	maxBodyBytes = 8 << 20
)

// Sender is the contract the orchestrator and the HTTP mirror depend on.
type Sender interface {
	Send(ctx context.Context, history []conversation.Message, temperature float64, maxTokens int) Result
}

type Settings struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

type Client struct {
	HTTPClient *http.Client
	settings   Settings
}

var _ Sender = (*Client)(nil)

func NewClient(s Settings) *Client {
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: s.Timeout},
		settings:   s,
	}
}

func (c *Client) Model() string {
	return c.settings.Model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

func hasCredential(key string) bool {
	k := strings.TrimSpace(key)
	return k != "" && k != "None"
}

// Send posts history and returns the assistant reply. history is only read.
func (c *Client) Send(ctx context.Context, history []conversation.Message, temperature float64, maxTokens int) Result {
	messages := make([]chatMessage, 0, len(history))
	for _, m := range history {
		messages = append(messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	reqBody, err := json.Marshal(chatCompletionsRequest{
		Model:       c.settings.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      false,
	})
	if err != nil {
		return ParseFailure(errors.Wrap(err, "could not encode request").Error())
	}

	ctx, cancel := context.WithTimeout(ctx, c.settings.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.settings.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		log.Error().Err(err).Str("endpoint", c.settings.Endpoint).Msg("could not build inference request")
		return NetworkFailure(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if hasCredential(c.settings.APIKey) {
		req.Header.Set("Authorization", "Bearer "+c.settings.APIKey)
	}

	start := time.Now()
	log.Debug().
		Str("endpoint", c.settings.Endpoint).
		Str("model", c.settings.Model).
		Int("messages", len(messages)).
		Msg("sending conversation to LLM")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("error communicating with LLM")
		return NetworkFailure(err.Error())
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		log.Error().Err(err).Msg("error reading LLM response")
		return NetworkFailure(errors.Wrap(err, "reading response").Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := fmt.Sprintf("status=%d body=%s", resp.StatusCode, truncate(string(body), 512))
		log.Error().Int("status", resp.StatusCode).Msg("LLM returned non-2xx status")
		return NetworkFailure(detail)
	}

	text, shape, err := extractText(body)
	if err != nil {
		log.Error().Err(err).Str("body", truncate(string(body), 512)).Msg("unexpected LLM response structure")
		return ParseFailure(err.Error())
	}
	log.Debug().
		Str("shape", shape).
		Dur("elapsed", time.Since(start)).
		Int("chars", len(text)).
		Msg("LLM response received")
	return Success(text)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
