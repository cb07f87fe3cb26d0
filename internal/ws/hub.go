package ws

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/quocanhngo/tradetalk/internal/metrics"
	"github.com/quocanhngo/tradetalk/internal/model"
	"github.com/quocanhngo/tradetalk/pkg/apperror"
)

const (
	userRoomPrefix         = "user:"
	roleRoomPrefix         = "role:"
	conversationRoomPrefix = "conversation:"
)

// UserRoom is the personal room of a user
func UserRoom(userID uuid.UUID) string { return userRoomPrefix + userID.String() }

// RoleRoom groups every connection of users with the role
func RoleRoom(role model.UserRole) string { return roleRoomPrefix + string(role) }

// ConversationRoom is joined explicitly by participants of the conversation
func ConversationRoom(conversationID uuid.UUID) string {
	return conversationRoomPrefix + conversationID.String()
}

func isConversationRoom(room string) bool {
	return strings.HasPrefix(room, conversationRoomPrefix)
}

// ParticipantChecker decides whether a user may join a conversation room
type ParticipantChecker interface {
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
}

// Relay carries encoded events between hub instances. Every instance delivers
// relayed events to its own local room members.
type Relay interface {
	Publish(ctx context.Context, room string, data []byte) error
	Subscribe(ctx context.Context, deliver func(room string, data []byte)) error
}

// Hub maps live connections to rooms and fans events out to them.
// Each connection is in its user room, its role room and any conversation
// rooms it joined. Presence is local to this instance.
type Hub struct {
	mu          sync.RWMutex
	rooms       map[string]map[*Client]struct{}
	clientRooms map[*Client]map[string]struct{}
	users       map[uuid.UUID]map[*Client]struct{}

	relay Relay

	// Callback when user comes online/offline
	onStatusChange func(userID uuid.UUID, online bool)
}

// NewHub creates an empty hub. relay may be nil for single-instance delivery.
func NewHub(relay Relay, onStatusChange func(userID uuid.UUID, online bool)) *Hub {
	return &Hub{
		rooms:          make(map[string]map[*Client]struct{}),
		clientRooms:    make(map[*Client]map[string]struct{}),
		users:          make(map[uuid.UUID]map[*Client]struct{}),
		relay:          relay,
		onStatusChange: onStatusChange,
	}
}

// Run delivers relayed events until ctx is cancelled. Without a relay it just waits.
func (h *Hub) Run(ctx context.Context) {
	if h.relay == nil {
		<-ctx.Done()
		return
	}
	if err := h.relay.Subscribe(ctx, h.deliverLocal); err != nil && ctx.Err() == nil {
		log.Printf("❌ Hub relay stopped: %v", err)
	}
}

// Register adds a connection to its user and role rooms
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clientRooms[client] = make(map[string]struct{})
	h.joinLocked(client, UserRoom(client.UserID))
	if client.Role != "" {
		h.joinLocked(client, RoleRoom(client.Role))
	}
	conns, ok := h.users[client.UserID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.users[client.UserID] = conns
	}
	conns[client] = struct{}{}
	firstConnection := len(conns) == 1
	total := len(conns)
	h.mu.Unlock()

	metrics.ActiveConnections.Inc()
	if firstConnection && h.onStatusChange != nil {
		go h.onStatusChange(client.UserID, true)
	}
	log.Printf("✅ Client connected: %s [%s] (user connections: %d)", client.UserID, client.ID, total)
}

// Unregister removes a connection from every room and closes its send queue.
// Calling it twice is harmless.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	rooms, ok := h.clientRooms[client]
	if !ok {
		h.mu.Unlock()
		return
	}
	var joined []string
	for room := range rooms {
		h.leaveLocked(client, room)
		if isConversationRoom(room) {
			joined = append(joined, room)
		}
	}
	delete(h.clientRooms, client)

	lastConnection := false
	if conns, ok := h.users[client.UserID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.users, client.UserID)
			lastConnection = true
		}
	}
	h.mu.Unlock()

	client.close()
	metrics.ActiveConnections.Dec()

	if lastConnection {
		// Advisory only: IsOnline stays the source of truth
		for _, room := range joined {
			h.emit(room, model.WSEventUserOffline, model.PresenceEvent{UserID: client.UserID, IsOnline: false})
		}
		if h.onStatusChange != nil {
			go h.onStatusChange(client.UserID, false)
		}
	}
	log.Printf("❌ Client disconnected: %s [%s]", client.UserID, client.ID)
}

func (h *Hub) joinLocked(client *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[client] = struct{}{}
	if rooms, ok := h.clientRooms[client]; ok {
		rooms[room] = struct{}{}
	}
}

func (h *Hub) leaveLocked(client *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.clientRooms[client]; ok {
		delete(rooms, room)
	}
}

// JoinConversation puts the connection into a conversation room after checking
// that its user takes part in the conversation. Refusals are reported to this
// connection only.
func (h *Hub) JoinConversation(ctx context.Context, client *Client, conversationID uuid.UUID, checker ParticipantChecker) bool {
	ok, err := checker.IsParticipant(ctx, conversationID, client.UserID)
	if err != nil {
		h.SendError(client, model.WSEventJoinConversation, err)
		return false
	}
	if !ok {
		h.SendError(client, model.WSEventJoinConversation, apperror.NotParticipant("you are not a participant of this conversation"))
		return false
	}

	room := ConversationRoom(conversationID)
	h.mu.Lock()
	if _, registered := h.clientRooms[client]; !registered {
		h.mu.Unlock()
		return false
	}
	h.joinLocked(client, room)
	h.mu.Unlock()

	client.Send(model.WSEventConversationJoined, model.ConversationJoinedEvent{
		ConversationID: conversationID,
		OnlineUsers:    h.OnlineUsersIn(conversationID),
	})
	h.emit(room, model.WSEventUserOnline, model.PresenceEvent{UserID: client.UserID, IsOnline: true})
	return true
}

// LeaveConversation removes the connection from a conversation room
func (h *Hub) LeaveConversation(client *Client, conversationID uuid.UUID) {
	h.mu.Lock()
	h.leaveLocked(client, ConversationRoom(conversationID))
	h.mu.Unlock()
}

// BroadcastToConversation sends an event to every connection in the conversation room
func (h *Hub) BroadcastToConversation(conversationID uuid.UUID, eventType string, payload interface{}) {
	h.emit(ConversationRoom(conversationID), eventType, payload)
}

// SendToUser sends an event to every connection of a user and reports whether
// the user had a live connection on this instance
func (h *Hub) SendToUser(userID uuid.UUID, eventType string, payload interface{}) bool {
	h.emit(UserRoom(userID), eventType, payload)
	return h.IsOnline(userID)
}

// SendToRole sends an event to every connection whose user has the role
func (h *Hub) SendToRole(role model.UserRole, eventType string, payload interface{}) {
	h.emit(RoleRoom(role), eventType, payload)
}

// BroadcastStatus tells every conversation the connection joined about its user's status
func (h *Hub) BroadcastStatus(client *Client, status string) {
	h.mu.RLock()
	var rooms []string
	for room := range h.clientRooms[client] {
		if isConversationRoom(room) {
			rooms = append(rooms, room)
		}
	}
	h.mu.RUnlock()

	for _, room := range rooms {
		h.emit(room, model.WSEventUserStatus, model.PresenceEvent{UserID: client.UserID, IsOnline: true, Status: status})
	}
}

// IsOnline reports whether the user has at least one live connection
func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// OnlineUsersIn lists the distinct users connected to a conversation room
func (h *Hub) OnlineUsersIn(conversationID uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[uuid.UUID]struct{})
	userIDs := []uuid.UUID{}
	for client := range h.rooms[ConversationRoom(conversationID)] {
		if _, dup := seen[client.UserID]; dup {
			continue
		}
		seen[client.UserID] = struct{}{}
		userIDs = append(userIDs, client.UserID)
	}
	return userIDs
}

// SendError reports a failure to the originating connection only
func (h *Hub) SendError(client *Client, causedBy string, err error) {
	client.Send(model.WSEventError, model.ErrorEvent{
		Code:    string(apperror.CodeOf(err)),
		Message: apperror.Message(err),
		Event:   causedBy,
	})
}

// emit encodes the event once and hands it to the relay, or delivers it locally
func (h *Hub) emit(room, eventType string, payload interface{}) {
	data, err := json.Marshal(&model.WSEvent{Type: eventType, Payload: payload})
	if err != nil {
		log.Printf("Error marshaling %s event: %v", eventType, err)
		return
	}

	if h.relay != nil {
		if err := h.relay.Publish(context.Background(), room, data); err != nil {
			log.Printf("Error publishing %s to relay: %v", eventType, err)
		}
		return
	}
	h.deliverLocal(room, data)
}

// deliverLocal copies the room's members under the read lock and enqueues
// outside of it. Clients whose buffer is full are dropped.
func (h *Hub) deliverLocal(room string, data []byte) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for client := range h.rooms[room] {
		members = append(members, client)
	}
	h.mu.RUnlock()

	for _, client := range members {
		if !client.enqueue(data) {
			metrics.DroppedEvents.Inc()
			log.Printf("⚠️ Dropping slow client %s [%s]", client.UserID, client.ID)
			go h.Unregister(client)
		}
	}
}
