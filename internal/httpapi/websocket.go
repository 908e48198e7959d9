package httpapi

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"codeindex/internal/progress"
)

// wsUpgrader allows any origin (CheckOrigin always true); the duplex
// channel carries no secrets beyond job progress.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsClientMessage is what a client sends to (un)subscribe from a job's
// progress stream.
type wsClientMessage struct {
	Type  string `json:"type"` // "subscribe" | "unsubscribe"
	JobID string `json:"job_id"`
}

// wsOutboundMessage is the wire shape of every message pushed to a
// subscriber, matching progress.Message's documented {type, job_id,
// data} contract.
type wsOutboundMessage struct {
	Type      progress.MessageType `json:"type"`
	JobID     uuid.UUID            `json:"job_id"`
	Data      any                  `json:"data,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// websocketUpgrade wraps the net/http gorilla/websocket handler behind
// fiber's adaptor, since gorilla/websocket expects an
// http.ResponseWriter/*http.Request pair rather than fiber's
// fasthttp-backed *fiber.Ctx.
func (h *Handlers) websocketUpgrade() fiber.Handler {
	return adaptor.HTTPHandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		h.serveWebSocketClient(conn)
	})
}

// serveWebSocketClient pumps client subscribe/unsubscribe control
// messages on one goroutine and fans every subscribed job's Progress
// Bus messages out to the connection on another, until either side
// closes.
func (h *Handlers) serveWebSocketClient(conn *websocket.Conn) {
	type subscription struct {
		ch   <-chan progress.Message
		done func()
	}
	subs := make(map[uuid.UUID]subscription)
	defer func() {
		for _, sub := range subs {
			sub.done()
		}
	}()

	outbound := make(chan wsOutboundMessage, 64)
	closed := make(chan struct{})
	var writerWg chan struct{} = make(chan struct{})

	go func() {
		defer close(writerWg)
		for {
			select {
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			case <-closed:
				return
			}
		}
	}()

	fanOut := func(jobID uuid.UUID, ch <-chan progress.Message) {
		for msg := range ch {
			select {
			case outbound <- wsOutboundMessage{Type: msg.Type, JobID: msg.JobID, Data: msg.Data, Timestamp: msg.Timestamp}:
			case <-closed:
				return
			}
		}
	}

	for {
		var incoming wsClientMessage
		if err := conn.ReadJSON(&incoming); err != nil {
			break
		}

		jobID, err := uuid.Parse(incoming.JobID)
		if err != nil {
			continue
		}

		switch incoming.Type {
		case "subscribe":
			if _, exists := subs[jobID]; exists {
				continue
			}
			ch, unsubscribe := h.Progress.Subscribe(jobID)
			subs[jobID] = subscription{ch: ch, done: unsubscribe}
			go fanOut(jobID, ch)
		case "unsubscribe":
			if sub, exists := subs[jobID]; exists {
				sub.done()
				delete(subs, jobID)
			}
		}
	}

	close(closed)
	close(outbound)
	<-writerWg
}
