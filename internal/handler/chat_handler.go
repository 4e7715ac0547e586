package handler

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"campusconnect.id/communityhub/internal/dto"
	"campusconnect.id/communityhub/internal/service"
	"campusconnect.id/communityhub/internal/ws"
	"campusconnect.id/communityhub/pkg/apperror"
	"campusconnect.id/communityhub/pkg/response"
	"campusconnect.id/communityhub/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

type ChatHandler struct {
	chat     service.ChatService
	presence service.PresenceService
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

func NewChatHandler(chat service.ChatService, presence service.PresenceService, hub *ws.Hub) *ChatHandler {
	return &ChatHandler{
		chat:     chat,
		presence: presence,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
	}
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var input dto.SendMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, apperror.Wrap(apperror.ErrValidation, validator.FormatValidationError(err)))
		return
	}

	msg, err := h.chat.Publish(c.Request.Context(), userID, input.Content)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.SendMessageResponse{
		MessageID: msg.ID.String(),
		CreatedAt: msg.CreatedAt,
	})
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		if x, err := strconv.Atoi(v); err == nil && x > 0 {
			limit = x
		}
	}

	messages, err := h.chat.History(c.Request.Context(), limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": messages})
}

// Subscribe upgrades to a websocket and streams message:new and
// presence:changed events until the client goes away. The connection
// doubles as a presence session: registering it flips the user online on
// a 0->1 connection transition, and a "bye" text frame or the transport
// close flips it back on the last one.
func (h *ChatHandler) Subscribe(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	handle, err := h.presence.Connect(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.presence.Disconnect(handle)
		log.Printf("Failed to upgrade websocket: %v", err)
		return
	}
	defer conn.Close()
	defer h.presence.Disconnect(handle)

	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub)

	// Read pump: drains control frames, watches for the best-effort
	// going-away signal and signals transport close. Disconnect is
	// idempotent so the signal and the close racing is harmless.
	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.TextMessage && strings.TrimSpace(string(data)) == "bye" {
				h.presence.Disconnect(handle)
			}
		}
	}()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				// Dropped by the hub (we fell behind); the client must
				// reconnect and resync through the history read.
				_ = conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "resync required"),
					time.Now().Add(writeTimeout),
				)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("Failed to write message to websocket: %v", err)
				return
			}
		case <-clientClosed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
