package protocol

import (
	"encoding/json"
	"testing"

	"grandexchange-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBase_RoutesByType(t *testing.T) {
	raw, err := json.Marshal(NewDelta(model.HistoryDelta{Sequence: 4}))
	require.NoError(t, err)

	base, err := DecodeBase(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeDelta, base.Type)
}

func TestSchemas(t *testing.T) {
	assert.NoError(t, HelloSchema.Bytes([]byte(`{"type":"HELLO","protocol_version":"1.0","token":"ges_abc"}`)))
	assert.Error(t, HelloSchema.Bytes([]byte(`{"type":"HELLO","protocol_version":"1.0"}`)))

	assert.NoError(t, AckSchema.Bytes([]byte(`{"type":"HISTORY_ACK","timestamp":1700000000000}`)))
	assert.Error(t, AckSchema.Bytes([]byte(`{"type":"HISTORY_ACK","timestamp":-1}`)))
	assert.Error(t, AckSchema.Bytes([]byte(`{"type":"HELLO","timestamp":5}`)))
}
