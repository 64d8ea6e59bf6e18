// Package output owns the speech synthesis device.
package output

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Controller serializes access to a Device. Speak always stops the previous
// utterance before starting a new one, so rapid turns never queue up audio.
//
// A Controller built without a device is permanently unavailable: Speak and
// Stop are no-ops and SetEnabled(true) has no effect.
type Controller struct {
	device  Device
	enabled atomic.Bool

	// sayMu is held for the whole duration of a Device.Say call.
	sayMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

func NewController(device Device, enabled bool) *Controller {
	c := &Controller{device: device}
	c.enabled.Store(device != nil && enabled)
	return c
}

func (c *Controller) Available() bool {
	return c.device != nil
}

func (c *Controller) Enabled() bool {
	return c.device != nil && c.enabled.Load()
}

// SetEnabled changes whether Speak produces audio. Disabling does not stop
// an utterance in progress; call Stop for that.
func (c *Controller) SetEnabled(enabled bool) {
	if c.device == nil {
		return
	}
	c.enabled.Store(enabled)
}

// Speak blocks until text has been spoken or interrupted. Failures are
// returned for status reporting; a busy device is logged and ignored.
func (c *Controller) Speak(ctx context.Context, text string) error {
	if !c.Enabled() || strings.TrimSpace(text) == "" {
		return nil
	}

	// register before stopping, so a later Speak or Stop can always reach
	// this utterance, even while it waits for the device
	sayCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	prev := c.cancel
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.gen == gen {
			c.cancel = nil
		}
		c.mu.Unlock()
		cancel()
	}()

	if prev != nil {
		prev()
	}
	if err := c.device.Stop(); err != nil {
		log.Warn().Err(err).Msg("could not stop previous utterance")
	}

	c.sayMu.Lock()
	defer c.sayMu.Unlock()
	if sayCtx.Err() != nil || !c.Enabled() {
		return nil
	}

	err := c.device.Say(sayCtx, text)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDeviceBusy):
		log.Warn().Err(err).Msg("speech engine was busy, skipping utterance")
		return nil
	default:
		log.Error().Err(err).Msg("error during speech synthesis")
		return errors.Wrap(err, "speech synthesis failed")
	}
}

// Stop interrupts the current utterance, if any.
func (c *Controller) Stop() error {
	if c.device == nil {
		return nil
	}
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return c.device.Stop()
}
