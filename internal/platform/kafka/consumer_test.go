package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedReader serves a fixed list of messages, then blocks until the context ends.
type scriptedReader struct {
	mu        sync.Mutex
	msgs      []kafkago.Message
	committed []int64
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *scriptedReader) Close() error { return nil }

func (r *scriptedReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func newTestConsumer(reader messageReader) *Consumer {
	return &Consumer{
		reader:     reader,
		logger:     zap.NewNop(),
		minBackoff: time.Millisecond,
		maxBackoff: 4 * time.Millisecond,
	}
}

func TestConsume_RetriesFailedMessageBeforeMovingOn(t *testing.T) {
	reader := &scriptedReader{msgs: []kafkago.Message{{Offset: 7}, {Offset: 8}}}
	c := newTestConsumer(reader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		offsets []int64
	)
	failures := 2
	handler := func(_ context.Context, msg kafkago.Message) error {
		mu.Lock()
		defer mu.Unlock()
		offsets = append(offsets, msg.Offset)
		if msg.Offset == 7 && failures > 0 {
			failures--
			return errors.New("optimistic lock conflict")
		}
		if msg.Offset == 8 {
			cancel()
		}
		return nil
	}

	err := c.Consume(ctx, handler)
	require.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{7, 7, 7, 8}, offsets)
	assert.Equal(t, []int64{7, 8}, reader.commits())
}

func TestConsume_CancelDuringRetryLeavesOffsetUncommitted(t *testing.T) {
	reader := &scriptedReader{msgs: []kafkago.Message{{Offset: 3}}}
	c := newTestConsumer(reader)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	handler := func(context.Context, kafkago.Message) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("database unavailable")
	}

	err := c.Consume(ctx, handler)
	require.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, calls, 2)
	assert.Empty(t, reader.commits())
}
