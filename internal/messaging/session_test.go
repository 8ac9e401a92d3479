package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_SuccessfulHandlerClearsDelivery(t *testing.T) {
	s := New("ws://unused", nil)
	var calls int32
	s.Subscribe(ConsumerConfig{FilterSubject: "machine.m1.tool-install", DeliverSubject: "machine.m1.tool-install", DurableName: "d1", MaxDeliver: 10}, func(ctx context.Context, data json.RawMessage) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	s.dispatch(context.Background(), Envelope{Subject: "machine.m1.tool-install", DeliverID: 1})

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	s.mu.Lock()
	_, pending := s.deliveries[1]
	s.mu.Unlock()
	assert.False(t, pending)
}

func TestDispatch_UnmatchedSubjectIsIgnored(t *testing.T) {
	s := New("ws://unused", nil)
	var calls int32
	s.Subscribe(ConsumerConfig{FilterSubject: "machine.m1.tool-install", DeliverSubject: "machine.m1.tool-install", DurableName: "d1"}, func(ctx context.Context, data json.RawMessage) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	s.dispatch(context.Background(), Envelope{Subject: "machine.other.tool-install", DeliverID: 1})
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestDispatch_FailedHandlerRedeliversUntilMaxDeliver(t *testing.T) {
	s := New("ws://unused", nil)
	var calls int32
	var mu sync.Mutex
	done := make(chan struct{})

	s.Subscribe(ConsumerConfig{
		FilterSubject:  "machine.all.client-update",
		DeliverSubject: "machine.m1.client-update",
		DurableName:    "d1",
		AckWait:        1 * time.Millisecond,
		MaxDeliver:     3,
	}, func(ctx context.Context, data json.RawMessage) error {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 3 {
			close(done)
		}
		return assert.AnError
	})

	s.dispatch(context.Background(), Envelope{Subject: "machine.m1.client-update", DeliverID: 7})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not reach max deliver attempts in time")
	}

	mu.Lock()
	total := calls
	mu.Unlock()
	assert.Equal(t, int32(3), total)

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, pending := s.deliveries[7]
		return !pending
	}, time.Second, 10*time.Millisecond)
}

func TestPublish_WithoutConnectionReturnsError(t *testing.T) {
	s := New("ws://unused", nil)
	err := s.Publish(context.Background(), "subject", map[string]string{"a": "b"})
	require.Error(t, err)
}
