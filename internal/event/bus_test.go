package event

import (
	"sync"
	"testing"
)

func TestPublishSubscribe(t *testing.T) {
	bus := New()

	var got []Event
	bus.Subscribe(TopicTabCreated, func(ev Event) {
		got = append(got, ev)
	})

	bus.Publish(TopicTabCreated, TabEvent{ID: 1, Name: "Untitled"})
	bus.Publish(TopicTabClosed, TabEvent{ID: 1})

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Topic != TopicTabCreated {
		t.Errorf("got topic %q", got[0].Topic)
	}
	payload, ok := got[0].Payload.(TabEvent)
	if !ok || payload.ID != 1 {
		t.Errorf("unexpected payload %+v", got[0].Payload)
	}
}

func TestSubscribeOrder(t *testing.T) {
	bus := New()

	var order []int
	bus.Subscribe("t", func(Event) { order = append(order, 1) })
	bus.Subscribe("t", func(Event) { order = append(order, 2) })
	bus.Subscribe("t", func(Event) { order = append(order, 3) })

	bus.Publish("t", nil)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("handlers ran out of order: %v", order)
	}
}

func TestWildcard(t *testing.T) {
	bus := New()

	topics := make(map[string]int)
	bus.Subscribe(Wildcard, func(ev Event) {
		topics[ev.Topic]++
	})

	bus.Publish(TopicTabCreated, nil)
	bus.Publish(TopicDocSaved, nil)

	if topics[TopicTabCreated] != 1 || topics[TopicDocSaved] != 1 {
		t.Errorf("wildcard missed topics: %v", topics)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := New()

	calls := 0
	id := bus.Subscribe("t", func(Event) { calls++ })

	bus.Publish("t", nil)
	if !bus.Unsubscribe(id) {
		t.Fatal("expected unsubscribe to succeed")
	}
	bus.Publish("t", nil)

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if bus.Unsubscribe(id) {
		t.Error("second unsubscribe should fail")
	}
	if bus.SubscriberCount("t") != 0 {
		t.Errorf("expected 0 subscribers, got %d", bus.SubscriberCount("t"))
	}
}

type captureLog struct {
	mu   sync.Mutex
	msgs []string
}

func (c *captureLog) Error(msg string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func TestHandlerPanicRecovered(t *testing.T) {
	log := &captureLog{}
	bus := New(WithLogger(log))

	ran := false
	bus.Subscribe("t", func(Event) { panic("boom") })
	bus.Subscribe("t", func(Event) { ran = true })

	bus.Publish("t", nil)

	if !ran {
		t.Error("second handler should run after a panic in the first")
	}
	if len(log.msgs) != 1 {
		t.Errorf("expected 1 logged panic, got %d", len(log.msgs))
	}
}

func TestConcurrentPublish(t *testing.T) {
	bus := New()

	var mu sync.Mutex
	count := 0
	bus.Subscribe("t", func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Publish("t", nil)
			}
		}()
	}
	wg.Wait()

	if count != 16*50 {
		t.Errorf("expected %d deliveries, got %d", 16*50, count)
	}
}
