package uid

import (
	"bytes"
	"context"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	a, b := New(), New()
	assert.True(t, IsValid(a))
	assert.NotEqual(t, a, b)
}

func TestNormalize(t *testing.T) {
	id := New()
	assert.Equal(t, id, Normalize(strings.ToUpper(id)))

	replaced := Normalize("not-a-uuid\nforged log line")
	assert.True(t, IsValid(replaced))
	assert.True(t, IsValid(Normalize("")))
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))

	id := New()
	assert.Equal(t, id, RequestID(WithRequestID(ctx, id)))
}

func TestLogfAppendsRequestID(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	flags := log.Flags()
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(flags)
	})

	Logf(context.Background(), "[MarketService] Trade: qty=%d", 3)
	Logf(WithRequestID(context.Background(), "abc"), "[MarketService] Trade: qty=%d", 4)

	assert.Equal(t, "[MarketService] Trade: qty=3\n[MarketService] Trade: qty=4 request_id=abc\n", buf.String())
}
