package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkDeliversThroughRouter(t *testing.T) {
	r, err := NewRouter()
	require.NoError(t, err)

	got := make(chan Event, 4)
	r.AddHandler("collect", "novachat.turns", func(msg *message.Message) error {
		defer msg.Ack()
		e, err := FromJSON(msg.Payload)
		if err != nil {
			return err
		}
		got <- e
		return nil
	})
	r.AddHandler("log", "novachat.turns", LogHandler())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()
	<-r.Running()

	sink := NewWatermillSink(r.Publisher, "novachat.turns", 8)
	go func() { _ = sink.Run(ctx) }()

	e := New(TypeTurnCompleted, "turn-1")
	e.Outcome = "success"
	e.Messages = 3
	require.NoError(t, sink.Publish(e))

	select {
	case recv := <-got:
		assert.Equal(t, e.ID, recv.ID)
		assert.Equal(t, TypeTurnCompleted, recv.Type)
		assert.Equal(t, "turn-1", recv.TurnID)
		assert.Equal(t, 3, recv.Messages)
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}

	sink.Close()
	require.NoError(t, r.Close())
}

func TestSinkNeverBlocks(t *testing.T) {
	sink := NewWatermillSink(nil, "novachat.turns", 1)
	require.NoError(t, sink.Publish(New(TypeSessionStarted, "")))
	assert.ErrorIs(t, sink.Publish(New(TypeSessionStarted, "")), ErrSinkFull)
}

func TestFromJSON(t *testing.T) {
	_, err := FromJSON([]byte(`{"id":"` + uuid.NewString() + `"}`))
	assert.Error(t, err)
	_, err = FromJSON([]byte(`not json`))
	assert.Error(t, err)

	e := New(TypeAnomaly, "turn-9")
	e.Detail = "submit while awaiting inference"
	b, err := json.Marshal(e)
	require.NoError(t, err)
	back, err := FromJSON(b)
	require.NoError(t, err)
	assert.Equal(t, e.Detail, back.Detail)
	assert.True(t, e.Time.Equal(back.Time))
}

func TestLogHandlerAcksUndecodablePayload(t *testing.T) {
	msg := message.NewMessage(uuid.NewString(), []byte("garbage"))
	require.NoError(t, LogHandler()(msg))
	select {
	case <-msg.Acked():
	default:
		t.Fatal("message was not acked")
	}
}

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	assert.NoError(t, s.Publish(New(TypeShutdown, "")))
}
