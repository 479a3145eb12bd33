package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatrail/chatrail/pkg/channels/gochannel"
	"github.com/chatrail/chatrail/pkg/events"
)

func newTestBus(t *testing.T) EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestPublishReachesSubscribedHandler(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan events.Event, 1)

	require.NoError(t, bus.Handle(events.OrderPlacedEvent, func(_ context.Context, event events.Event) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	sent := events.OrderPlaced{
		BaseEvent:  events.NewBaseEvent(events.OrderPlacedEvent, "biz-1"),
		OrderID:    "ord-77",
		CustomerID: "cust-3",
		Total:      120.50,
	}
	require.NoError(t, bus.Publish(ctx, "biz-1", sent))

	select {
	case event := <-received:
		order, ok := event.(events.OrderPlaced)
		require.True(t, ok)
		assert.Equal(t, "ord-77", order.OrderID)
		assert.Equal(t, "biz-1", order.GetBusinessID())
		assert.InDelta(t, 120.50, order.Total, 0.001)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestEventsWithoutHandlerAreAcked(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	event := events.NewCustomer{
		BaseEvent:  events.NewBaseEvent(events.NewCustomerEvent, "biz-1"),
		CustomerID: "cust-1",
	}

	// No handler registered for the type; publish must not error or block.
	require.NoError(t, bus.Publish(ctx, "biz-1", event))
}

func TestGenerateIDIsUnique(t *testing.T) {
	bus := newTestBus(t)

	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
