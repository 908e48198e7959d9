// Package progress implements an in-process publish/subscribe bus
// keyed by job id, used to stream crawl/upload progress to HTTP
// websocket and MCP clients without coupling the job executors to any
// particular transport.
package progress

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MessageType distinguishes the kinds of progress events a subscriber
// can receive.
type MessageType string

const (
	TypeCrawlUpdate  MessageType = "crawl_update"
	TypeUploadUpdate MessageType = "upload_update"
	TypeCompleted    MessageType = "completed"
	TypeFailed       MessageType = "failed"
	TypeHeartbeat    MessageType = "heartbeat"
)

// Message is one event delivered to a job's subscribers.
type Message struct {
	Type      MessageType
	JobID     uuid.UUID
	Data      any
	Timestamp time.Time
}

// subscriberBuffer bounds how many undelivered messages accumulate for
// a slow subscriber before new ones are dropped for it.
const subscriberBuffer = 64

// Bus is a mutex-guarded map of job id to subscriber channels. Publish
// never blocks: a subscriber whose channel is full silently misses the
// message rather than stalling the publisher, so delivery is
// best-effort and a slow subscriber can lose messages.
type Bus struct {
	mu          sync.Mutex
	subscribers map[uuid.UUID][]chan Message
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[uuid.UUID][]chan Message)}
}

// Subscribe registers a new buffered channel for jobID and returns it
// along with an unsubscribe func the caller must invoke when done
// listening (typically on websocket/stream disconnect).
func (b *Bus) Subscribe(jobID uuid.UUID) (<-chan Message, func()) {
	ch := make(chan Message, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[jobID] = append(b.subscribers[jobID], ch)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		chans := b.subscribers[jobID]
		for i, c := range chans {
			if c == ch {
				b.subscribers[jobID] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		if len(b.subscribers[jobID]) == 0 {
			delete(b.subscribers, jobID)
		}
		close(ch)
	}

	return ch, unsubscribe
}

// Publish delivers msg to every current subscriber of jobID. A
// subscriber with a full buffer is skipped for this message rather
// than blocking the publisher.
func (b *Bus) Publish(jobID uuid.UUID, msgType MessageType, data any) {
	b.mu.Lock()
	chans := append([]chan Message(nil), b.subscribers[jobID]...)
	b.mu.Unlock()

	msg := Message{Type: msgType, JobID: jobID, Data: data, Timestamp: time.Now()}
	for _, ch := range chans {
		select {
		case ch <- msg:
		default:
		}
	}
}

// SubscriberCount reports how many active subscribers a job currently
// has, mostly useful for tests and metrics.
func (b *Bus) SubscriberCount(jobID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[jobID])
}
