package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeKeepsTypeAndTime(t *testing.T) {
	e := New("ASSISTANT_EXCHANGE_FAILED", map[string]interface{}{"task": "chat"})

	data, err := json.Marshal(ToEnvelope(e))
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	back := env.Event()

	assert.Equal(t, "ASSISTANT_EXCHANGE_FAILED", back.EventType())
	assert.Equal(t, "chat", back.Payload()["task"])
	assert.True(t, e.Timestamp().Equal(back.Timestamp()))
}
