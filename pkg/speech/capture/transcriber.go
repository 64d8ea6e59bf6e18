package capture

import (
	"bytes"
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

type Transcriber interface {
	// Transcribe returns the text spoken in a WAV file.
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

type TranscriberSettings struct {
	// BaseURL of an OpenAI compatible API, e.g. http://127.0.0.1:8080/v1.
	// Empty means api.openai.com.
	BaseURL  string
	APIKey   string
	Model    string
	Language string
}

// OpenAITranscriber posts audio to an OpenAI compatible
// /audio/transcriptions endpoint.
type OpenAITranscriber struct {
	client   *openai.Client
	model    string
	language string
}

var _ Transcriber = (*OpenAITranscriber)(nil)

func NewOpenAITranscriber(s TranscriberSettings) *OpenAITranscriber {
	cfg := openai.DefaultConfig(s.APIKey)
	if s.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(s.BaseURL, "/")
	}
	model := s.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAITranscriber{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		language: s.Language,
	}
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: "speech.wav",
		Reader:   bytes.NewReader(wav),
		Language: t.language,
	})
	if err != nil {
		return "", errors.Wrap(ErrServiceFailure, err.Error())
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrUnintelligible
	}
	return text, nil
}
