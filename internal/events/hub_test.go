package events

import (
	"testing"
	"time"
)

func TestHub_PublishReachesAllSubscribers(t *testing.T) {
	hub := NewHub()

	ch1, cancel1 := hub.Subscribe()
	defer cancel1()
	ch2, cancel2 := hub.Subscribe()
	defer cancel2()

	hub.Publish(StatusEvent{Kind: KindConnected, Address: "secret1abc"})

	for i, ch := range []<-chan StatusEvent{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Kind != KindConnected || ev.Address != "secret1abc" {
				t.Errorf("subscriber %d got unexpected event: %+v", i, ev)
			}
			if ev.At.IsZero() {
				t.Errorf("subscriber %d got event without timestamp", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
	}
}

func TestHub_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewHub()

	_, cancel := hub.Subscribe()
	defer cancel()

	// Fill the subscriber's buffer and keep publishing; Publish must return.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			hub.Publish(StatusEvent{Kind: KindInfo})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestHub_CancelRemovesSubscriber(t *testing.T) {
	hub := NewHub()

	ch, cancel := hub.Subscribe()
	if hub.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.SubscriberCount())
	}

	cancel()
	if hub.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.SubscriberCount())
	}

	// Channel closed so range loops terminate.
	if _, ok := <-ch; ok {
		t.Error("expected closed channel after cancel")
	}

	// Double cancel is safe.
	cancel()
}

func TestHub_PublishAfterCancelIsSafe(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe()
	cancel()
	hub.Publish(StatusEvent{Kind: KindInfo})
}
