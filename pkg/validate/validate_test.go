package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sample = `{
	"type": "object",
	"required": ["quantity"],
	"properties": {
		"quantity": {"type": "integer", "minimum": 1}
	}
}`

func TestSchema_Bytes(t *testing.T) {
	s := MustCompile("sample.json", sample)

	assert.NoError(t, s.Bytes([]byte(`{"quantity": 3}`)))
	assert.Error(t, s.Bytes([]byte(`{"quantity": 0}`)))
	assert.Error(t, s.Bytes([]byte(`{"quantity": 1.5}`)))
	assert.Error(t, s.Bytes([]byte(`{}`)))
	assert.Error(t, s.Bytes([]byte(`not json`)))
}

func TestMustCompile_PanicsOnBadSchema(t *testing.T) {
	assert.Panics(t, func() { MustCompile("bad.json", `{"type": 12}`) })
}
