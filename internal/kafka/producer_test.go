package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/ariefcatur/go-jewelry-shop/internal/logx"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "t", 16, logx.Discard())
	p.Start(context.Background())

	for i := 0; i < 5; i++ {
		p.Publish([]byte("k"), []byte{byte('a' + i)}, Header{Key: HeaderEventType, Value: []byte("X")})
	}
	p.Close()
	p.WaitClosed()

	assert.Len(t, w.msgs, 5)
	assert.True(t, w.closed)
	assert.Equal(t, "X", HeaderValue(w.msgs[0].Headers, HeaderEventType))
}

func TestProducerPublishAfterCloseIsDropped(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "t", 1, logx.Discard())
	p.Start(context.Background())
	p.Close()
	p.Close()
	p.Publish([]byte("k"), []byte("v"))
	p.WaitClosed()
	assert.Empty(t, w.msgs)
}

func TestUnwrapPayload(t *testing.T) {
	type payload struct {
		OrderID string `json:"order_id"`
	}
	got, err := UnwrapPayload[payload](json.RawMessage(MustMarshal(payload{OrderID: "o-1"})))
	require.NoError(t, err)
	assert.Equal(t, "o-1", got.OrderID)

	_, err = UnwrapPayload[payload](json.RawMessage(`{`))
	assert.Error(t, err)
}
