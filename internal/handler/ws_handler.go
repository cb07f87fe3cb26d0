package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/quocanhngo/tradetalk/internal/model"
	"github.com/quocanhngo/tradetalk/internal/service"
	"github.com/quocanhngo/tradetalk/internal/ws"
	"github.com/quocanhngo/tradetalk/pkg/apperror"
	"github.com/quocanhngo/tradetalk/pkg/auth"
)

// Time allowed for one inbound event to reach the store
const eventTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origins are enforced by the token, not the browser
	},
}

// WSHandler upgrades connections and dispatches client events
type WSHandler struct {
	hub           *ws.Hub
	chatService   *service.ChatService
	authenticator *auth.Authenticator
	validate      *validator.Validate
}

func NewWSHandler(hub *ws.Hub, chatService *service.ChatService, authenticator *auth.Authenticator) *WSHandler {
	return &WSHandler{
		hub:           hub,
		chatService:   chatService,
		authenticator: authenticator,
		validate:      newPayloadValidator(),
	}
}

// HandleWebSocket godoc
// @Summary Open the real-time connection
// @Description Connect with ws://host/ws?token=<jwt> (or an Authorization header). Frames are {"type": "...", "payload": {...}}.
// @Tags Realtime
// @Param token query string false "JWT"
// @Success 101
// @Failure 401 {object} model.ErrorResponse
// @Router /ws [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token, _ = auth.BearerToken(c.GetHeader("Authorization"))
	}

	claims, err := h.authenticator.Authenticate(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn, claims.UserID, claims.Name, model.UserRole(claims.Role))
	h.hub.Register(client)

	log.Printf("✅ WS Connected: UserID=%s Name=%s [%s]", claims.UserID, claims.Name, client.ID)

	go client.WritePump()
	go client.ReadPump(h.handleEvent)
}

// handleEvent processes one client frame. Failures go back to this connection only.
func (h *WSHandler) handleEvent(client *ws.Client, event model.InboundWSEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	var err error
	switch event.Type {
	case model.WSEventJoinConversation:
		var p model.ConversationRoomPayload
		if err = h.decode(event, &p); err == nil {
			h.hub.JoinConversation(ctx, client, p.ConversationID, h.chatService)
		}

	case model.WSEventLeaveConversation:
		var p model.ConversationRoomPayload
		if err = h.decode(event, &p); err == nil {
			h.hub.LeaveConversation(client, p.ConversationID)
		}

	case model.WSEventTypingStart, model.WSEventTypingStop:
		var p model.ConversationRoomPayload
		if err = h.decode(event, &p); err == nil {
			err = h.chatService.SendTypingIndicator(ctx, client.UserID, p.ConversationID, event.Type == model.WSEventTypingStart)
		}

	case model.WSEventSendMessage:
		var req model.SendMessageRequest
		if err = h.decode(event, &req); err == nil {
			_, err = h.chatService.SendMessage(ctx, client.UserID, req)
		}

	case model.WSEventMarkRead:
		var req model.MarkReadRequest
		if err = h.decode(event, &req); err == nil {
			_, err = h.chatService.MarkAsRead(ctx, client.UserID, req)
		}

	case model.WSEventStatusUpdate:
		var p model.StatusUpdatePayload
		if err = h.decode(event, &p); err == nil {
			h.hub.BroadcastStatus(client, p.Status)
		}

	default:
		err = apperror.Validation("unknown event type: " + event.Type)
	}

	if err != nil {
		if apperror.CodeOf(err) == apperror.CodeInternal {
			log.Printf("❌ WS %s from %s failed: %v", event.Type, client.UserID, err)
		}
		h.hub.SendError(client, event.Type, err)
	}
}

// decode unmarshals and validates an event payload
func (h *WSHandler) decode(event model.InboundWSEvent, dst interface{}) error {
	if len(event.Payload) == 0 {
		return apperror.Validation("payload is required")
	}
	if err := json.Unmarshal(event.Payload, dst); err != nil {
		return apperror.Wrap(apperror.CodeValidation, "malformed payload", err)
	}
	if err := h.validate.Struct(dst); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			first := validationDetails(verrs)[0]
			return apperror.Validation(first.Field + ": " + first.Message)
		}
		return apperror.Wrap(apperror.CodeValidation, "invalid payload", err)
	}
	return nil
}
