package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-jewelry-shop/internal/logx"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader hands out queued messages and then blocks until ctx ends.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.queue) > 0 {
		m := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeReader) commits() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

func startConsumer(t *testing.T, r *fakeReader, workers int, h Handler) (context.CancelFunc, <-chan error) {
	t.Helper()
	c := newConsumer(r, workers, logx.Discard())
	c.backoff, c.maxBackoff = time.Millisecond, 4*time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, h) }()
	t.Cleanup(cancel)
	return cancel, done
}

func TestConsumerRetriesUntilHandled(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Topic: "t", Partition: 0, Offset: 0},
		{Topic: "t", Partition: 0, Offset: 1},
	}}
	var (
		mu    sync.Mutex
		calls []int64
	)
	cancel, done := startConsumer(t, r, 3, func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, m.Offset)
		if m.Offset == 0 && len(calls) < 3 {
			return errors.New("redis down")
		}
		return nil
	})

	require.Eventually(t, func() bool { return len(r.commits()) == 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{0, 0, 0, 1}, calls)
	assert.Equal(t, []int64{0, 1}, r.commits())
	assert.True(t, r.closed)
}

func TestConsumerNeverCommitsFailedMessage(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Topic: "t", Partition: 0, Offset: 7},
		{Topic: "t", Partition: 0, Offset: 8},
	}}
	var (
		mu       sync.Mutex
		attempts int
	)
	cancel, done := startConsumer(t, r, 1, func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		if m.Offset == 7 {
			attempts++
			return errors.New("redis down")
		}
		return nil
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts >= 4
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, r.commits())
}

func TestConsumerLaneIsStablePerPartition(t *testing.T) {
	c := newConsumer(&fakeReader{}, 4, logx.Discard())
	a := kafka.Message{Topic: "shop.order.placed", Partition: 2, Offset: 1}
	b := kafka.Message{Topic: "shop.order.placed", Partition: 2, Offset: 99}
	assert.Equal(t, c.lane(a), c.lane(b))
	assert.Less(t, c.lane(a), 4)
}
