package capture

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAITranscriber(t *testing.T) {
	var gotModel, gotFile, gotAuth string
	var gotAudio []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotModel = r.FormValue("model")
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		gotFile = hdr.Filename
		gotAudio, _ = io.ReadAll(f)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" open the pod bay doors "}`))
	}))
	defer srv.Close()

	tr := NewOpenAITranscriber(TranscriberSettings{BaseURL: srv.URL + "/v1/", APIKey: "sk-test"})
	wav := EncodeWAV(tone(0), 16000, 1)
	text, err := tr.Transcribe(context.Background(), wav)
	require.NoError(t, err)
	assert.Equal(t, "open the pod bay doors", text)
	assert.Equal(t, "whisper-1", gotModel)
	assert.Equal(t, "speech.wav", gotFile)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, wav, gotAudio)
}

func TestOpenAITranscriberFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"service error", http.StatusServiceUnavailable, `{"error":{"message":"overloaded","type":"server_error"}}`, ErrServiceFailure},
		{"empty text", http.StatusOK, `{"text":""}`, ErrUnintelligible},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			tr := NewOpenAITranscriber(TranscriberSettings{BaseURL: srv.URL, Model: "small"})

			_, err := tr.Transcribe(context.Background(), EncodeWAV(nil, 16000, 1))
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}
