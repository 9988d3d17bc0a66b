package broadcast

import (
	"testing"
	"time"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	s := New[int]()
	ch1, _ := s.Subscribe()
	ch2, _ := s.Subscribe()

	s.Publish(7)

	for _, ch := range []<-chan int{ch1, ch2} {
		select {
		case v := <-ch:
			if v != 7 {
				t.Errorf("got %d, want 7", v)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for publish")
		}
	}
}

func TestLateSubscriberDoesNotSeeHistory(t *testing.T) {
	s := New[int]()
	s.Publish(1)

	ch, _ := s.Subscribe()
	select {
	case v := <-ch:
		t.Fatalf("late subscriber received a replayed value: %d", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	s := New[int]()
	ch, unsubscribe := s.Subscribe()
	unsubscribe()
	unsubscribe() // must be safe to call twice

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}

	// Publish after unsubscribe must not panic or block.
	s.Publish(42)
}

func TestPublishDropsForFullSubscriber(t *testing.T) {
	s := New[int]()
	ch, _ := s.Subscribe()

	for i := 0; i < subscriberBuffer+5; i++ {
		s.Publish(i)
	}

	// The channel should be full but Publish must not have blocked to
	// get here; drain it and confirm it holds only the earliest values.
	first := <-ch
	if first != 0 {
		t.Errorf("first buffered value = %d, want 0", first)
	}
}

func TestCloseClosesAllSubscribers(t *testing.T) {
	s := New[int]()
	ch1, _ := s.Subscribe()
	ch2, _ := s.Subscribe()

	s.Close()
	s.Close() // idempotent

	for _, ch := range []<-chan int{ch1, ch2} {
		if _, ok := <-ch; ok {
			t.Error("expected channel closed after Close")
		}
	}
}

func TestSubscribeAfterCloseReturnsClosedChannel(t *testing.T) {
	s := New[int]()
	s.Close()

	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	if _, ok := <-ch; ok {
		t.Error("expected a subscribe-after-close channel to be already closed")
	}
}
