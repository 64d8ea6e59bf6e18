package orchestrator

import (
	"context"
	"sync"

	"github.com/go-go-golems/novachat/pkg/conversation"
	"github.com/go-go-golems/novachat/pkg/events"
	"github.com/go-go-golems/novachat/pkg/inference"
	"github.com/go-go-golems/novachat/pkg/speech/capture"
)

type fakeSurface struct {
	turns          []Turn
	statuses       []string
	inputEnabled   bool
	inputChanges   []bool
	label          string
	voiceAvailable bool
}

func (s *fakeSurface) AppendTurn(t Turn)             { s.turns = append(s.turns, t) }
func (s *fakeSurface) SetStatus(text string)         { s.statuses = append(s.statuses, text) }
func (s *fakeSurface) SetSpeechToggleLabel(l string) { s.label = l }
func (s *fakeSurface) SetVoiceAvailable(a bool)      { s.voiceAvailable = a }
func (s *fakeSurface) SetInputEnabled(enabled bool) {
	s.inputEnabled = enabled
	s.inputChanges = append(s.inputChanges, enabled)
}

func (s *fakeSurface) status() string {
	if len(s.statuses) == 0 {
		return ""
	}
	return s.statuses[len(s.statuses)-1]
}

func (s *fakeSurface) lastTurn() Turn {
	return s.turns[len(s.turns)-1]
}

type fakeSender struct {
	mu        sync.Mutex
	results   []inference.Result
	histories [][]conversation.Message
	panics    bool
}

func (f *fakeSender) Send(ctx context.Context, history []conversation.Message, temperature float64, maxTokens int) inference.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("nil pointer in transport")
	}
	f.histories = append(f.histories, history)
	if len(f.results) == 0 {
		return inference.Success("ok")
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r
}

func (f *fakeSender) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.histories)
}

type fakeSpeech struct {
	mu        sync.Mutex
	available bool
	enabled   bool
	calls     []string
	sayErr    error
}

func (f *fakeSpeech) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "say:"+text)
	return f.sayErr
}

func (f *fakeSpeech) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "stop")
	return nil
}

func (f *fakeSpeech) SetEnabled(enabled bool) {
	if f.available {
		f.enabled = enabled
	}
}

func (f *fakeSpeech) Enabled() bool   { return f.available && f.enabled }
func (f *fakeSpeech) Available() bool { return f.available }

type fakeCapture struct {
	available bool
	result    capture.Result
	progress  []string
}

func (f *fakeCapture) Capture(ctx context.Context, progress capture.ProgressFunc) capture.Result {
	for _, p := range f.progress {
		progress(p)
	}
	return f.result
}

func (f *fakeCapture) Available() bool { return f.available }

type recordingSink struct {
	events []events.Event
}

func (r *recordingSink) Publish(e events.Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) types() []events.Type {
	var out []events.Type
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
