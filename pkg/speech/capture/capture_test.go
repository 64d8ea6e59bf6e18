package capture

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	io.Reader
	mu      sync.Mutex
	stopped bool
	closed  bool
}

func (s *fakeSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeRecorder struct {
	pcm      []byte
	startErr error
	starts   int
	session  *fakeSession
}

func (r *fakeRecorder) Start(ctx context.Context, cfg AudioConfig) (Session, error) {
	r.starts++
	if r.startErr != nil {
		return nil, r.startErr
	}
	r.session = &fakeSession{Reader: bytes.NewReader(r.pcm)}
	return r.session, nil
}

type fakeTranscriber struct {
	text  string
	err   error
	panic bool
	got   []byte
}

func (t *fakeTranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if t.panic {
		panic("decoder exploded")
	}
	t.got = wav
	return t.text, t.err
}

func testSettings() Settings {
	return Settings{
		Audio:           AudioConfig{SampleRate: testRate, Channels: 1},
		Calibration:     300 * time.Millisecond,
		Timeout:         2 * time.Second,
		PhraseLimit:     3 * time.Second,
		TrailingSilence: 600 * time.Millisecond,
	}
}

func speechPCM() []byte {
	return bytes.Join([][]byte{silence(300 * time.Millisecond), tone(time.Second), silence(2 * time.Second)}, nil)
}

func TestCaptureSuccess(t *testing.T) {
	rec := &fakeRecorder{pcm: speechPCM()}
	tr := &fakeTranscriber{text: "  what time is it  "}
	c := NewCapturer(rec, tr, testSettings())
	require.True(t, c.Available())

	var statuses []string
	res := c.Capture(context.Background(), func(s string) { statuses = append(statuses, s) })
	require.True(t, res.OK())
	assert.Equal(t, "what time is it", res.Text)
	assert.Empty(t, res.Status)
	assert.NoError(t, res.Err)
	assert.Equal(t, []string{StatusListening, StatusDecoding}, statuses)
	assert.Equal(t, "RIFF", string(tr.got[:4]))
	assert.True(t, rec.session.closed)
}

func TestCaptureFailuresCollapseToEmptyResult(t *testing.T) {
	tests := []struct {
		name       string
		recorder   *fakeRecorder
		tr         *fakeTranscriber
		wantStatus string
		wantErr    error
	}{
		{
			name:       "no speech",
			recorder:   &fakeRecorder{pcm: silence(10 * time.Second)},
			tr:         &fakeTranscriber{text: "unused"},
			wantStatus: StatusNoSpeech,
			wantErr:    ErrWaitTimeout,
		},
		{
			name:       "unintelligible",
			recorder:   &fakeRecorder{pcm: speechPCM()},
			tr:         &fakeTranscriber{text: "   "},
			wantStatus: StatusGarbled,
			wantErr:    ErrUnintelligible,
		},
		{
			name:       "service failure",
			recorder:   &fakeRecorder{pcm: speechPCM()},
			tr:         &fakeTranscriber{err: errors.Wrap(ErrServiceFailure, "503")},
			wantStatus: StatusRelayError,
			wantErr:    ErrServiceFailure,
		},
		{
			name:       "recorder broken",
			recorder:   &fakeRecorder{startErr: errors.New("device or resource busy")},
			tr:         &fakeTranscriber{text: "unused"},
			wantStatus: StatusSystemError,
		},
		{
			name:       "transcriber panics",
			recorder:   &fakeRecorder{pcm: speechPCM()},
			tr:         &fakeTranscriber{panic: true},
			wantStatus: StatusSystemError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCapturer(tt.recorder, tt.tr, testSettings())
			res := c.Capture(context.Background(), nil)
			assert.False(t, res.OK())
			assert.Empty(t, res.Text)
			assert.Equal(t, tt.wantStatus, res.Status)
			require.Error(t, res.Err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(res.Err, tt.wantErr), "got %v", res.Err)
			}
		})
	}
}

func TestCaptureUnavailableNeverTouchesRecorder(t *testing.T) {
	tr := &fakeTranscriber{text: "hello"}
	c := NewCapturer(nil, tr, testSettings())
	assert.False(t, c.Available())

	for i := 0; i < 3; i++ {
		res := c.Capture(context.Background(), nil)
		assert.Equal(t, StatusOffline, res.Status)
		assert.True(t, errors.Is(res.Err, ErrDeviceUnavailable))
	}
	assert.Nil(t, tr.got)

	rec := &fakeRecorder{pcm: speechPCM()}
	c = NewCapturer(rec, nil, testSettings())
	assert.False(t, c.Available())
	c.Capture(context.Background(), nil)
	assert.Equal(t, 0, rec.starts)
}

func TestExecRecorderMissingBinary(t *testing.T) {
	_, err := NewExecRecorder("definitely-not-a-recorder-binary")
	assert.True(t, errors.Is(err, ErrDeviceUnavailable))
}

func TestExecRecorderArgs(t *testing.T) {
	cfg := AudioConfig{SampleRate: 16000, Channels: 1, Device: "hw:1"}
	a := (&ExecRecorder{name: "arecord"}).args(cfg)
	assert.Equal(t, []string{"-q", "-t", "raw", "-f", "S16_LE", "-c", "1", "-r", "16000", "-D", "hw:1"}, a)
	r := (&ExecRecorder{name: "rec"}).args(cfg)
	assert.Equal(t, "-", r[len(r)-1])
	assert.Contains(t, r, "signed-integer")
}
