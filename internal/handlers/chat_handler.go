package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gorilla/websocket"

	"goalwise/internal/agent"
	apperrors "goalwise/internal/errors"
	"goalwise/internal/logger"
)

const maxChatMessageBytes = 1 << 20

// ConversationRunner answers a conversation as the caller in ctx.
type ConversationRunner interface {
	Run(ctx context.Context, messages []agent.Message, emit func(agent.Event)) error
}

// ChatHandler serves the assistant over server-sent events and WebSocket.
type ChatHandler struct {
	runner   ConversationRunner
	upgrader websocket.Upgrader
}

// NewChatHandler creates a new ChatHandler. A nil runner disables the
// assistant endpoints.
func NewChatHandler(runner ConversationRunner) *ChatHandler {
	return &ChatHandler{
		runner: runner,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Upgrades are authenticated by bearer token, not cookies.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ChatRequest is a conversation sent by the client. The full history is
// sent on every request; nothing is kept server side.
type ChatRequest struct {
	Messages []agent.Message `json:"messages" binding:"required,min=1,max=100,dive"`
}

// Chat handles a conversation turn streamed as server-sent events
// @Summary     Chat with the assistant
// @Description Streams text, tool_call, tool_result, error and done events. Each SSE event name is the event type and its data is the JSON event.
// @Tags        chat
// @Accept      json
// @Produce     text/event-stream
// @Security    BearerAuth
// @Param       request body ChatRequest true "Conversation history"
// @Success     200 {object} agent.Event "Event stream"
// @Failure     400 {object} ErrorResponse "Invalid conversation"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     503 {object} ErrorResponse "Assistant not configured"
// @Router      /chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	ctx, err := requestContext(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if h.runner == nil {
		respondWithError(c, apperrors.ErrAssistantDisabled)
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	started := false
	emit := func(e agent.Event) {
		if !started {
			started = true
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Header("X-Accel-Buffering", "no")
			c.Status(http.StatusOK)
		}
		c.SSEvent(string(e.Type), e)
		c.Writer.Flush()
	}

	if err := h.runner.Run(ctx, req.Messages, emit); err != nil {
		if started {
			logger.Named("chat").Errorw("conversation failed after streaming started", "error", err)
			return
		}
		respondWithError(c, err)
	}
}

// ChatWebSocket handles a conversation over WebSocket
// @Summary     Chat with the assistant over WebSocket
// @Description Each client frame is a ChatRequest; the server answers with a sequence of JSON events ending in done. Browsers may pass the token as access_token.
// @Tags        chat
// @Security    BearerAuth
// @Param       access_token query string false "Bearer token for browsers"
// @Success     101
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     503 {object} ErrorResponse "Assistant not configured"
// @Router      /chat/ws [get]
func (h *ChatHandler) ChatWebSocket(c *gin.Context) {
	ctx, err := requestContext(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if h.runner == nil {
		respondWithError(c, apperrors.ErrAssistantDisabled)
		return
	}

	log := logger.Named("chat")
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		log.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxChatMessageBytes)

	send := func(e agent.Event) {
		if err := conn.WriteJSON(e); err != nil {
			log.Debugw("websocket write failed", "error", err)
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnw("websocket closed unexpectedly", "error", err)
			}
			return
		}

		var req ChatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			send(agent.Event{Type: agent.EventError, Error: "Invalid message format"})
			send(agent.Event{Type: agent.EventDone})
			continue
		}
		if err := binding.Validator.ValidateStruct(&req); err != nil {
			send(agent.Event{Type: agent.EventError, Error: err.Error()})
			send(agent.Event{Type: agent.EventDone})
			continue
		}

		if err := h.runner.Run(ctx, req.Messages, send); err != nil {
			msg := apperrors.ErrInternalServer.Message
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				msg = appErr.Message
			}
			send(agent.Event{Type: agent.EventError, Error: msg})
			send(agent.Event{Type: agent.EventDone})
		}
		if ctx.Err() != nil {
			return
		}
	}
}
