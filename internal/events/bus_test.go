/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "testing"

func TestPublishReachesSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventBellWork)

	bus.Publish(EventBellWork, Payload{"kind": "work"})

	select {
	case payload := <-sub:
		if payload["kind"] != "work" {
			t.Errorf("payload = %v", payload)
		}
	default:
		t.Fatal("subscriber received nothing")
	}
}

func TestPublishSkipsOtherTypes(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventBellBreak)

	bus.Publish(EventBellWork, Payload{})

	select {
	case <-sub:
		t.Fatal("subscriber received an event of another type")
	default:
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := NewBus()
	sub := bus.SubscribeAll(EventBellWork, EventClockResync)

	bus.Publish(EventBellWork, Payload{"n": 1})
	bus.Publish(EventClockResync, Payload{"n": 2})

	for i := 0; i < 2; i++ {
		select {
		case <-sub:
		default:
			t.Fatalf("missing event %d", i)
		}
	}
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventBellWork)

	// Overflow the subscriber buffer; Publish must drop, not block.
	for i := 0; i < 20; i++ {
		bus.Publish(EventBellWork, Payload{"n": i})
	}

	drained := 0
	for {
		select {
		case <-sub:
			drained++
			continue
		default:
		}
		break
	}
	if drained == 0 || drained > 8 {
		t.Errorf("drained %d events, want 1..8", drained)
	}
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	bus := NewBus()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5000; i++ {
			bus.Publish(EventBellWork, Payload{"n": i})
		}
	}()

	// Churn subscribers while the publisher runs. A send racing a close
	// would panic the publisher goroutine and fail the test.
	for i := 0; i < 5000; i++ {
		sub := bus.Subscribe(EventBellWork)
		bus.Unsubscribe(sub)
	}
	<-done
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.SubscribeAll(EventBellWork, EventBellBreak)

	bus.Unsubscribe(sub)

	if _, open := <-sub; open {
		t.Fatal("channel still open after Unsubscribe")
	}
	// Publishing after unsubscribe must not panic on the closed channel.
	bus.Publish(EventBellWork, Payload{})
}
