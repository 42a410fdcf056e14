package events

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type orderEvent struct {
	BaseEvent
	OrderID string
}

func newOrderEvent(eventType, orderID string) orderEvent {
	return orderEvent{BaseEvent: NewBaseEvent(eventType, orderID), OrderID: orderID}
}

func TestBus_DeliversToSubscribers(t *testing.T) {
	bus := NewBus(zap.NewNop(), 8)

	received := make(chan Event, 1)
	bus.SubscribeFunc("order.placed", func(e Event) error {
		received <- e
		return nil
	})

	bus.Publish(newOrderEvent("order.placed", "o1"))

	select {
	case e := <-received:
		assert.Equal(t, "order.placed", e.EventType())
		assert.Equal(t, "o1", e.AggregateID())
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
	bus.Close()
}

func TestBus_OnlyMatchingTypeIsDelivered(t *testing.T) {
	bus := NewBus(zap.NewNop(), 8)

	var mu sync.Mutex
	var got []string
	bus.SubscribeFunc("order.placed", func(e Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.EventType())
		return nil
	})

	bus.Publish(newOrderEvent("order.placed", "o1"))
	bus.Publish(newOrderEvent("order.canceled", "o2"))
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"order.placed"}, got)
}

func TestBus_CloseDrainsQueue(t *testing.T) {
	bus := NewBus(zap.NewNop(), 64)

	var mu sync.Mutex
	count := 0
	bus.SubscribeFunc("order.placed", func(Event) error {
		mu.Lock()
		defer mu.Unlock()
		count++
		return nil
	})

	for i := 0; i < 50; i++ {
		bus.Publish(newOrderEvent("order.placed", "o1"))
	}
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 50, count)
}

func TestBus_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	bus := NewBus(zap.NewNop(), 8)

	received := make(chan struct{}, 2)
	bus.SubscribeFunc("order.placed", func(Event) error {
		return errors.New("boom")
	})
	bus.SubscribeFunc("order.placed", func(Event) error {
		received <- struct{}{}
		return nil
	})

	bus.Publish(newOrderEvent("order.placed", "o1"))
	bus.Close()

	require.Len(t, received, 1)
}

func TestBus_CloseIsIdempotent(t *testing.T) {
	bus := NewBus(zap.NewNop(), 8)
	bus.Close()
	bus.Close()
}

func TestBaseEvent(t *testing.T) {
	e := NewBaseEvent("payment.succeeded", "tx_1")

	assert.Equal(t, "payment.succeeded", e.EventType())
	assert.Equal(t, "tx_1", e.AggregateID())
	assert.NotZero(t, e.EventID())
	assert.WithinDuration(t, time.Now(), e.OccurredAt(), time.Minute)
}
