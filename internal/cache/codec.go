package cache

import (
	"encoding/json"
	"fmt"

	"grandexchange-api/internal/model"

	"github.com/klauspost/compress/zstd"
)

// Encoder and decoder are safe for concurrent EncodeAll/DecodeAll calls.
var (
	stateEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	stateDecoder, _ = zstd.NewReader(nil)
)

// bufferedState is the record kept in the write-behind buffer.
type bufferedState struct {
	State      model.PlayerState `json:"state"`
	BufferedAt int64             `json:"buffered_at"`
}

// EncodeJSON marshals v to JSON and compresses it with zstd. Large values
// kept in the cache, such as the audit log snapshot, go through it.
func EncodeJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return stateEncoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// DecodeJSON reverses EncodeJSON.
func DecodeJSON(data []byte, v any) error {
	raw, err := stateDecoder.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func encodeState(s bufferedState) ([]byte, error) {
	data, err := EncodeJSON(s)
	if err != nil {
		return nil, fmt.Errorf("encode player %d: %w", s.State.PlayerID, err)
	}
	return data, nil
}

func decodeState(data []byte) (bufferedState, error) {
	var s bufferedState
	if err := DecodeJSON(data, &s); err != nil {
		return s, fmt.Errorf("player state: %w", err)
	}
	return s, nil
}
