package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"codeindex/internal/progress"
)

// serveWebSocketClient is exercised directly against a raw net/http
// test server (bypassing the fiber adaptor, which httptest cannot
// dial into) over a real dialed connection.
func TestServeWebSocketClient_SubscribeFansOutProgressMessages(t *testing.T) {
	h := &Handlers{Progress: progress.NewBus()}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		h.serveWebSocketClient(conn)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()

	jobID := uuid.New()
	if err := conn.WriteJSON(wsClientMessage{Type: "subscribe", JobID: jobID.String()}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	// Give the server goroutine time to register the subscription before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.Progress.SubscriberCount(jobID) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if h.Progress.SubscriberCount(jobID) == 0 {
		t.Fatal("expected a subscriber to be registered")
	}

	h.Progress.Publish(jobID, progress.TypeHeartbeat, map[string]any{"ok": true})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var out wsOutboundMessage
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read outbound message: %v", err)
	}
	if out.JobID != jobID {
		t.Fatalf("expected job id %v, got %v", jobID, out.JobID)
	}
	if out.Type != progress.TypeHeartbeat {
		t.Fatalf("expected heartbeat type, got %v", out.Type)
	}
}
