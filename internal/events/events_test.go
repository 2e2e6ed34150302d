package events

import (
	"testing"

	"github.com/projectlif/liplearn/internal/model"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	a, unsubA := bus.Subscribe(4)
	b, unsubB := bus.Subscribe(4)
	defer unsubA()
	defer unsubB()

	bus.Publish(StateChanged{From: model.StateIdle, To: model.StateCountingDown})

	for _, ch := range []<-chan Event{a, b} {
		ev := <-ch
		sc, ok := ev.(StateChanged)
		if !ok || sc.To != model.StateCountingDown {
			t.Fatalf("unexpected event %#v", ev)
		}
	}
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(1)
	defer unsub()

	bus.Publish(CountdownTick{Remaining: 3})
	bus.Publish(CountdownTick{Remaining: 2})

	if got := len(ch); got != 1 {
		t.Fatalf("expected 1 buffered event, got %d", got)
	}
	if tick := (<-ch).(CountdownTick); tick.Remaining != 3 {
		t.Fatalf("expected first tick to survive, got %d", tick.Remaining)
	}
}

func TestSubscribeFuncSkipsRejectedEvents(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.SubscribeFunc(1, func(ev Event) bool {
		_, ok := ev.(ResultReady)
		return ok
	})
	defer unsub()

	for i := 0; i < 10; i++ {
		bus.Publish(FrameCaptured{Count: i + 1, Target: 22})
	}
	bus.Publish(ResultReady{Attempt: model.Attempt{ID: "attempt-1"}})

	if got := len(ch); got != 1 {
		t.Fatalf("expected 1 buffered event, got %d", got)
	}
	ready, ok := (<-ch).(ResultReady)
	if !ok || ready.Attempt.ID != "attempt-1" {
		t.Fatalf("expected the result to be delivered, got %#v", ready)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(1)
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	bus.Publish(Notice{Message: "ignored"})
}

func TestCloseClosesSubscribers(t *testing.T) {
	bus := NewBus()
	ch, _ := bus.Subscribe(1)
	bus.Close()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after bus close")
	}
	late, _ := bus.Subscribe(1)
	if _, ok := <-late; ok {
		t.Fatalf("expected closed channel for late subscriber")
	}
}

func TestNilBusPublishIsNoop(t *testing.T) {
	var bus *Bus
	bus.Publish(Notice{Message: "nothing"})
}
