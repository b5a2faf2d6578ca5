package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingEvent struct {
	Seq int `json:"seq"`
}

func (e pingEvent) Validate() error {
	if e.Seq <= 0 {
		return errors.New("seq must be positive")
	}
	return nil
}

func TestRegistry_DecodeTyped(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterJSON[pingEvent](r, "ping.v1"))

	evt, err := r.Decode("ping.v1", []byte(`{"seq":7}`))
	require.NoError(t, err)

	ping, ok := evt.(pingEvent)
	require.True(t, ok)
	assert.Equal(t, 7, ping.Seq)
	assert.True(t, r.Known("ping.v1"))
	assert.Equal(t, []string{"ping.v1"}, r.Types())
}

func TestRegistry_UnknownType(t *testing.T) {
	r := NewRegistry()

	_, err := r.Decode("pong.v1", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownEventType)
}

func TestRegistry_MalformedPayload(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterJSON[pingEvent](r, "ping.v1"))

	_, err := r.Decode("ping.v1", []byte(`{"seq":`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	// decodifica pero no pasa la validación
	_, err = r.Decode("ping.v1", []byte(`{"seq":0}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterJSON[pingEvent](r, "ping.v1"))

	err := RegisterJSON[pingEvent](r, "ping.v1")
	assert.ErrorIs(t, err, ErrDuplicateType)
}
