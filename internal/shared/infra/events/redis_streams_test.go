package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sharedEvents "github.com/davicafu/catalogsync/internal/shared/domain/events"
	sharedBus "github.com/davicafu/catalogsync/internal/shared/infra/platform/bus"
	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDecodeStreamEnvelope_RoundTripsPublishedFields(t *testing.T) {
	sent := sharedEvents.Envelope{
		ID:         uuid.New(),
		Type:       "game.updated.v1",
		Key:        "game-9",
		OccurredOn: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Payload:    json.RawMessage(`{"gameId":9}`),
	}
	data, err := json.Marshal(sent)
	require.NoError(t, err)

	got := decodeStreamEnvelope(rueidis.XRangeEntry{
		ID:          "1-0",
		FieldValues: map[string]string{streamFieldType: sent.Type, streamFieldEnvelope: string(data)},
	})

	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, sent.Key, got.Key)
	assert.True(t, sent.OccurredOn.Equal(got.OccurredOn))
	assert.JSONEq(t, `{"gameId":9}`, string(got.Payload))
}

func TestDecodeStreamEnvelope_FallsBackToTypeField(t *testing.T) {
	got := decodeStreamEnvelope(rueidis.XRangeEntry{
		ID:          "2-0",
		FieldValues: map[string]string{streamFieldType: "promotion.created.v1", streamFieldEnvelope: "{broken"},
	})

	assert.Equal(t, "promotion.created.v1", got.Type)
	assert.Equal(t, "{broken", string(got.Payload))
}

func streamEntries(ids ...string) []rueidis.XRangeEntry {
	out := make([]rueidis.XRangeEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, rueidis.XRangeEntry{ID: id, FieldValues: map[string]string{
			streamFieldType:     "game.created.v1",
			streamFieldEnvelope: `{"id":1}`,
		}})
	}
	return out
}

func TestStreamConsumer_BacksOffAfterFailedAck(t *testing.T) {
	var handled []string
	handler := sharedBus.HandlerFunc(func(_ context.Context, env sharedEvents.Envelope) error {
		handled = append(handled, env.Type)
		return nil
	})
	c := NewStreamConsumer(nil, "catalog", "projector", "c-1", handler, zap.NewNop())
	c.retryDelay = 20 * time.Millisecond

	var acked []string
	c.ack = func(_ context.Context, id string) error {
		acked = append(acked, id)
		return errors.New("connection reset")
	}

	start := time.Now()
	ok := c.process(context.Background(), streamEntries("1-0", "2-0"))

	assert.True(t, ok)
	assert.Len(t, handled, 2)
	assert.Equal(t, []string{"1-0", "2-0"}, acked)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestStreamConsumer_StopsWhenCancelledDuringAckBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handled := 0
	handler := sharedBus.HandlerFunc(func(context.Context, sharedEvents.Envelope) error {
		handled++
		return nil
	})
	c := NewStreamConsumer(nil, "catalog", "projector", "c-1", handler, zap.NewNop())
	c.retryDelay = time.Hour
	c.ack = func(context.Context, string) error {
		cancel()
		return errors.New("connection reset")
	}

	assert.False(t, c.process(ctx, streamEntries("1-0", "2-0")))
	assert.Equal(t, 1, handled)
}

func TestStreamConsumer_AckedEntriesDoNotWait(t *testing.T) {
	handler := sharedBus.HandlerFunc(func(context.Context, sharedEvents.Envelope) error { return nil })
	c := NewStreamConsumer(nil, "catalog", "projector", "c-1", handler, zap.NewNop())
	c.retryDelay = time.Hour
	c.ack = func(context.Context, string) error { return nil }

	done := make(chan bool, 1)
	go func() { done <- c.process(context.Background(), streamEntries("1-0", "2-0", "3-0")) }()

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("process waited despite successful acks")
	}
}
