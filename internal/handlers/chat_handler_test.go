package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"goalwise/internal/agent"
	apperrors "goalwise/internal/errors"
	"goalwise/internal/tools"
)

type runnerFunc func(ctx context.Context, messages []agent.Message, emit func(agent.Event)) error

func (f runnerFunc) Run(ctx context.Context, messages []agent.Message, emit func(agent.Event)) error {
	return f(ctx, messages, emit)
}

// echoRunner streams the last message back with one tool round trip.
func echoRunner(t *testing.T) runnerFunc {
	return func(ctx context.Context, messages []agent.Message, emit func(agent.Event)) error {
		callerOf(t, ctx)
		last := messages[len(messages)-1].Content
		emit(agent.Event{Type: agent.EventToolCall, CallID: "c1", Tool: "get_dashboard_stats", Arguments: json.RawMessage(`{}`)})
		emit(agent.Event{Type: agent.EventToolResult, CallID: "c1", Tool: "get_dashboard_stats", Result: tools.Result{"success": true}})
		emit(agent.Event{Type: agent.EventText, Text: "you said: " + last})
		emit(agent.Event{Type: agent.EventDone, Steps: 2})
		return nil
	}
}

func setupChatRouter(runner ConversationRunner) *gin.Engine {
	handler := NewChatHandler(runner)
	r := gin.New()
	authed := r.Group("", injectCaller(testCaller))
	authed.POST("/chat", handler.Chat)
	authed.GET("/chat/ws", handler.ChatWebSocket)
	r.POST("/anonymous/chat", handler.Chat)
	return r
}

type sseEvent struct {
	name string
	data agent.Event
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event:"):
				ev.name = strings.TrimPrefix(line, "event:")
			case strings.HasPrefix(line, "data:"):
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &ev.data); err != nil {
					t.Fatalf("bad event data %q: %v", line, err)
				}
			}
		}
		events = append(events, ev)
	}
	return events
}

const chatBody = `{"messages":[{"role":"user","content":"hello"}]}`

func TestChatHandler_Chat(t *testing.T) {
	t.Run("streams events", func(t *testing.T) {
		r := setupChatRouter(echoRunner(t))
		rec := doRequest(r, "POST", "/chat", chatBody)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
			t.Errorf("expected event stream, got %q", ct)
		}
		events := parseSSE(t, rec.Body.String())
		want := []string{"tool_call", "tool_result", "text", "done"}
		if len(events) != len(want) {
			t.Fatalf("expected %d events, got %d: %s", len(want), len(events), rec.Body.String())
		}
		for i, name := range want {
			if events[i].name != name || string(events[i].data.Type) != name {
				t.Errorf("event %d: expected %s, got %s/%s", i, name, events[i].name, events[i].data.Type)
			}
		}
		if events[2].data.Text != "you said: hello" {
			t.Errorf("unexpected text %q", events[2].data.Text)
		}
	})

	t.Run("returns 401 without caller", func(t *testing.T) {
		r := setupChatRouter(runnerFunc(func(context.Context, []agent.Message, func(agent.Event)) error {
			t.Fatal("runner must not be called")
			return nil
		}))
		rec := doRequest(r, "POST", "/anonymous/chat", chatBody)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "UNAUTHENTICATED")
	})

	t.Run("returns 503 when disabled", func(t *testing.T) {
		r := setupChatRouter(nil)
		rec := doRequest(r, "POST", "/chat", chatBody)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "ASSISTANT_DISABLED")
	})

	invalid := []struct {
		name string
		body string
	}{
		{"no_messages", `{"messages":[]}`},
		{"unknown_role", `{"messages":[{"role":"tool","content":"x"}]}`},
		{"malformed", `{"messages":`},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			r := setupChatRouter(echoRunner(t))
			rec := doRequest(r, "POST", "/chat", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
		})
	}

	t.Run("error before streaming is json", func(t *testing.T) {
		r := setupChatRouter(runnerFunc(func(context.Context, []agent.Message, func(agent.Event)) error {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "Conversation must contain a user message")
		}))
		rec := doRequest(r, "POST", "/chat", `{"messages":[{"role":"assistant","content":"hi"}]}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}

func dialChat(t *testing.T, r *gin.Engine) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntilDone reads events up to and including the next done event.
func readUntilDone(t *testing.T, conn *websocket.Conn) []agent.Event {
	t.Helper()
	var events []agent.Event
	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var e agent.Event
		if err := conn.ReadJSON(&e); err != nil {
			t.Fatalf("read: %v", err)
		}
		events = append(events, e)
		if e.Type == agent.EventDone {
			return events
		}
	}
}

func TestChatHandler_ChatWebSocket(t *testing.T) {
	t.Run("serves several conversations on one connection", func(t *testing.T) {
		conn := dialChat(t, setupChatRouter(echoRunner(t)))

		for _, text := range []string{"first", "second"} {
			msg := `{"messages":[{"role":"user","content":"` + text + `"}]}`
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				t.Fatalf("write: %v", err)
			}
			events := readUntilDone(t, conn)
			if len(events) != 4 {
				t.Fatalf("expected 4 events, got %d", len(events))
			}
			if events[2].Text != "you said: "+text {
				t.Errorf("unexpected text %q", events[2].Text)
			}
		}
	})

	t.Run("invalid frame keeps connection open", func(t *testing.T) {
		conn := dialChat(t, setupChatRouter(echoRunner(t)))

		for _, frame := range []string{`not json`, `{"messages":[]}`} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				t.Fatalf("write: %v", err)
			}
			events := readUntilDone(t, conn)
			if len(events) != 2 || events[0].Type != agent.EventError || events[0].Error == "" {
				t.Fatalf("expected error then done, got %+v", events)
			}
		}

		if err := conn.WriteMessage(websocket.TextMessage, []byte(chatBody)); err != nil {
			t.Fatalf("write: %v", err)
		}
		if events := readUntilDone(t, conn); len(events) != 4 {
			t.Errorf("expected 4 events after recovery, got %d", len(events))
		}
	})

	t.Run("runner error is sent as event", func(t *testing.T) {
		conn := dialChat(t, setupChatRouter(runnerFunc(func(context.Context, []agent.Message, func(agent.Event)) error {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "Conversation must contain a user message")
		})))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(chatBody)); err != nil {
			t.Fatalf("write: %v", err)
		}
		events := readUntilDone(t, conn)
		if events[0].Error != "Conversation must contain a user message" {
			t.Errorf("unexpected error %q", events[0].Error)
		}
	})
}
