// Package capture turns one microphone utterance into text.
//
// Every failure inside a capture (no speech before the timeout, audio the
// transcriber cannot make sense of, a transcription service error, a broken
// recorder) collapses into a Result with empty Text and a status line meant
// for the user. Capture never returns an error and never panics.
package capture

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	ErrWaitTimeout       = errors.New("no speech detected before timeout")
	ErrUnintelligible    = errors.New("speech could not be understood")
	ErrServiceFailure    = errors.New("transcription service failure")
)

// Status lines reported while and after capturing.
const (
	StatusOffline     = "Input Offline."
	StatusListening   = "Listening intently..."
	StatusDecoding    = "Decoding Input..."
	StatusNoSpeech    = "No speech detected in time."
	StatusGarbled     = "Input Garbled. Try Again."
	StatusRelayError  = "Comms Relay Error (Speech Service)."
	StatusSystemError = "Input System Error."
)

// Result is the outcome of one capture. Text is empty when there is no
// usable input, in which case Status says why and Err carries the cause.
type Result struct {
	Text   string
	Status string
	Err    error
}

func (r Result) OK() bool {
	return r.Text != ""
}

// ProgressFunc receives intermediate status lines. It is called from the
// capturing goroutine.
type ProgressFunc func(status string)

type Settings struct {
	Audio           AudioConfig
	Calibration     time.Duration
	Timeout         time.Duration
	PhraseLimit     time.Duration
	TrailingSilence time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		Audio:           AudioConfig{SampleRate: 16000, Channels: 1},
		Calibration:     500 * time.Millisecond,
		Timeout:         5 * time.Second,
		PhraseLimit:     10 * time.Second,
		TrailingSilence: time.Second,
	}
}

type Capturer struct {
	recorder    Recorder
	transcriber Transcriber
	settings    Settings
	detector    Detector
	unavailable error
}

// NewCapturer records whether capture is possible at all. A nil recorder or
// transcriber makes the capturer permanently unavailable.
func NewCapturer(recorder Recorder, transcriber Transcriber, s Settings) *Capturer {
	c := &Capturer{
		recorder:    recorder,
		transcriber: transcriber,
		settings:    s,
		detector: Detector{
			SampleRate:      s.Audio.SampleRate,
			Channels:        s.Audio.Channels,
			Calibration:     s.Calibration,
			Timeout:         s.Timeout,
			PhraseLimit:     s.PhraseLimit,
			TrailingSilence: s.TrailingSilence,
		},
	}
	switch {
	case recorder == nil:
		c.unavailable = errors.Wrap(ErrDeviceUnavailable, "no recorder")
	case transcriber == nil:
		c.unavailable = errors.Wrap(ErrDeviceUnavailable, "no transcriber")
	}
	if c.unavailable != nil {
		log.Warn().Err(c.unavailable).Msg("voice input disabled")
	}
	return c
}

func (c *Capturer) Available() bool {
	return c.unavailable == nil
}

// Capture blocks until an utterance has been recorded and transcribed or
// something went wrong.
func (c *Capturer) Capture(ctx context.Context, progress ProgressFunc) (res Result) {
	if c.unavailable != nil {
		return Result{Status: StatusOffline, Err: c.unavailable}
	}
	if progress == nil {
		progress = func(string) {}
	}
	defer func() {
		if r := recover(); r != nil {
			err := errors.Errorf("capture panicked: %v", r)
			log.Error().Err(err).Msg("error during voice input")
			res = Result{Status: StatusSystemError, Err: err}
		}
	}()

	pcm, err := c.record(ctx, progress)
	if err != nil {
		return failed(err)
	}

	progress(StatusDecoding)
	wav := EncodeWAV(pcm, c.settings.Audio.SampleRate, c.settings.Audio.Channels)
	text, err := c.transcriber.Transcribe(ctx, wav)
	if err != nil {
		return failed(err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return failed(ErrUnintelligible)
	}
	log.Info().Str("text", text).Msg("voice input recognized")
	return Result{Text: text}
}

func (c *Capturer) record(ctx context.Context, progress ProgressFunc) ([]byte, error) {
	budget := c.settings.Calibration + c.settings.Timeout + c.settings.PhraseLimit + 2*time.Second
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	session, err := c.recorder.Start(ctx, c.settings.Audio)
	if err != nil {
		return nil, errors.Wrap(err, "could not start recorder")
	}
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Stop()
		case <-stopped:
		}
	}()
	defer func() {
		if err := session.Close(); err != nil {
			log.Debug().Err(err).Msg("recorder close")
		}
	}()

	pcm, err := c.detector.Listen(session, func() { progress(StatusListening) })
	if err != nil && ctx.Err() != nil && !errors.Is(err, ErrWaitTimeout) {
		return nil, errors.Wrap(ErrWaitTimeout, ctx.Err().Error())
	}
	return pcm, err
}

func failed(err error) Result {
	r := Result{Err: err}
	switch {
	case errors.Is(err, ErrWaitTimeout):
		r.Status = StatusNoSpeech
		log.Warn().Err(err).Msg("voice input: no speech detected")
	case errors.Is(err, ErrUnintelligible):
		r.Status = StatusGarbled
		log.Warn().Err(err).Msg("speech recognition could not understand audio")
	case errors.Is(err, ErrServiceFailure):
		r.Status = StatusRelayError
		log.Error().Err(err).Msg("could not request results from speech recognition service")
	default:
		r.Status = StatusSystemError
		log.Error().Err(err).Msg("error during voice input")
	}
	return r
}
