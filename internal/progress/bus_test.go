package progress

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := NewBus()
	jobID := uuid.New()

	ch, unsubscribe := b.Subscribe(jobID)
	defer unsubscribe()

	b.Publish(jobID, TypeHeartbeat, map[string]int{"pages": 3})

	select {
	case msg := <-ch:
		if msg.Type != TypeHeartbeat || msg.JobID != jobID {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected message was not delivered")
	}
}

func TestPublishWithNoSubscribersDoesNotBlock(t *testing.T) {
	b := NewBus()
	done := make(chan struct{})
	go func() {
		b.Publish(uuid.New(), TypeCompleted, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked with no subscribers")
	}
}

func TestPublishToFullBufferDoesNotBlock(t *testing.T) {
	b := NewBus()
	jobID := uuid.New()
	_, unsubscribe := b.Subscribe(jobID)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			b.Publish(jobID, TypeCrawlUpdate, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked once subscriber buffer filled")
	}
}

func TestUnsubscribeRemovesSubscriberAndClosesChannel(t *testing.T) {
	b := NewBus()
	jobID := uuid.New()

	ch, unsubscribe := b.Subscribe(jobID)
	if got := b.SubscriberCount(jobID); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}

	unsubscribe()

	if got := b.SubscriberCount(jobID); got != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribe, got %d", got)
	}

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
}

func TestSubscribersAreIsolatedAcrossJobs(t *testing.T) {
	b := NewBus()
	jobA, jobB := uuid.New(), uuid.New()

	chA, unsubA := b.Subscribe(jobA)
	defer unsubA()
	chB, unsubB := b.Subscribe(jobB)
	defer unsubB()

	b.Publish(jobA, TypeCompleted, nil)

	select {
	case <-chA:
	case <-time.After(time.Second):
		t.Fatal("jobA subscriber did not receive its message")
	}

	select {
	case <-chB:
		t.Fatal("jobB subscriber received jobA's message")
	case <-time.After(50 * time.Millisecond):
	}
}
