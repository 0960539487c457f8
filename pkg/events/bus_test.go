package events

import "testing"

func TestPublishFanOut(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe(4)
	b := bus.Subscribe(4)

	bus.Publish(Event{Kind: OrdersNew})

	select {
	case ev := <-a:
		if ev.Kind != OrdersNew {
			t.Fatalf("unexpected kind on a: %s", ev.Kind)
		}
	default:
		t.Fatalf("expected event delivered to consumer a")
	}
	select {
	case ev := <-b:
		if ev.Kind != OrdersNew {
			t.Fatalf("unexpected kind on b: %s", ev.Kind)
		}
	default:
		t.Fatalf("expected event delivered to consumer b")
	}
}

func TestPublishDoesNotBlockOnFullConsumer(t *testing.T) {
	bus := NewBus()
	slow := bus.Subscribe(1)
	bus.Publish(Event{Kind: TradeEvent})
	bus.Publish(Event{Kind: TradeEvent}) // buffer full, must not block

	if len(slow) != 1 {
		t.Fatalf("expected buffer to hold exactly 1 event, got %d", len(slow))
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(1)
	bus.Unsubscribe(ch)
	if bus.Len() != 0 {
		t.Fatalf("expected no consumers after unsubscribe")
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
}
