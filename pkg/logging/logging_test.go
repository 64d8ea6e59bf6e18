package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesToFile(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "novachat.log")
	closer, err := Init(Settings{Level: "debug", File: path})
	require.NoError(t, err)
	log.Debug().Str("turn_id", "t-1").Msg("dispatching")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"turn_id":"t-1"`)
	assert.Contains(t, string(b), `"message":"dispatching"`)
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	_, err := Init(Settings{Level: "chatty"})
	assert.Error(t, err)
}

func TestWatermillAdapter(t *testing.T) {
	var buf bytes.Buffer
	a := NewWatermill(zerolog.New(&buf))
	a.With(watermill.LogFields{"topic": "novachat.turns"}).
		Error("publish failed", errors.New("redis down"), watermill.LogFields{"attempt": 2})

	out := buf.String()
	assert.Contains(t, out, `"component":"watermill"`)
	assert.Contains(t, out, `"topic":"novachat.turns"`)
	assert.Contains(t, out, `"attempt":2`)
	assert.Contains(t, out, `"error":"redis down"`)
	assert.Contains(t, out, `"level":"error"`)
}
