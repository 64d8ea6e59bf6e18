package redisstream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettingsAreDisabled(t *testing.T) {
	s := DefaultSettings()
	assert.False(t, s.Enabled)
	assert.Equal(t, "localhost:6379", s.Addr)
	assert.NotEmpty(t, s.Group)
	assert.NotEmpty(t, s.Consumer)
}

func TestEnsureGroupAtTailFailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := EnsureGroupAtTail(ctx, "127.0.0.1:1", "novachat.turns", "novachat")
	require.Error(t, err)
}
