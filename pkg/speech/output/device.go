package output

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrDeviceUnavailable means no synthesis engine could be initialized.
	ErrDeviceUnavailable = errors.New("speech output device unavailable")
	// ErrDeviceBusy is returned by devices that refuse to start an utterance
	// while an earlier one is still winding down.
	ErrDeviceBusy = errors.New("speech output device busy")
)

// Device is a speech synthesis engine. It is not re-entrant: callers must
// not run two Say calls at the same time. Stop may be called from any
// goroutine and interrupts the current Say.
type Device interface {
	// Say blocks until text has been spoken, ctx is cancelled, or Stop is
	// called.
	Say(ctx context.Context, text string) error
	Stop() error
}

type Voice struct {
	ID   string
	Name string
}

// VoiceLister is implemented by devices that can enumerate their voices.
type VoiceLister interface {
	Voices(ctx context.Context) ([]Voice, error)
}
