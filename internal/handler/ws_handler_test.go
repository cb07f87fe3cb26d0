package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/quocanhngo/tradetalk/internal/model"
	"github.com/quocanhngo/tradetalk/internal/testutil"
	"github.com/quocanhngo/tradetalk/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsPeer struct {
	t       *testing.T
	conn    *websocket.Conn
	pending []model.InboundWSEvent
}

func (f *apiFixture) dial(t *testing.T, server *httptest.Server, u *model.User) *wsPeer {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + f.token(t, u)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return &wsPeer{t: t, conn: conn}
}

func (p *wsPeer) send(eventType string, payload interface{}) {
	p.t.Helper()
	data, err := json.Marshal(gin.H{"type": eventType, "payload": payload})
	require.NoError(p.t, err)
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, data))
}

// next returns the next event; one frame may carry several newline-separated events
func (p *wsPeer) next() model.InboundWSEvent {
	p.t.Helper()
	for len(p.pending) == 0 {
		require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		_, frame, err := p.conn.ReadMessage()
		require.NoError(p.t, err)
		for _, line := range bytes.Split(frame, []byte("\n")) {
			var ev model.InboundWSEvent
			require.NoError(p.t, json.Unmarshal(line, &ev))
			p.pending = append(p.pending, ev)
		}
	}
	ev := p.pending[0]
	p.pending = p.pending[1:]
	return ev
}

// await skips events until one of the given type arrives
func (p *wsPeer) await(eventType string) model.InboundWSEvent {
	p.t.Helper()
	for {
		if ev := p.next(); ev.Type == eventType {
			return ev
		}
	}
}

func TestWebSocket_RejectsBadToken(t *testing.T) {
	f := newAPIFixture(t, nil)
	server := httptest.NewServer(f.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_JoinSendReadFlow(t *testing.T) {
	f := newAPIFixture(t, nil)
	server := httptest.NewServer(f.router)
	defer server.Close()
	conv := f.conversation(t)
	eve := testutil.CreateUser(t, f.db, "eve", model.UserRoleBuyer)

	alice := f.dial(t, server, f.alice)
	bob := f.dial(t, server, f.bob)
	intruder := f.dial(t, server, eve)

	room := gin.H{"conversation_id": conv.ID}
	alice.send(model.WSEventJoinConversation, room)
	alice.await(model.WSEventConversationJoined)
	bob.send(model.WSEventJoinConversation, room)
	joined := bob.await(model.WSEventConversationJoined)
	var ack model.ConversationJoinedEvent
	require.NoError(t, json.Unmarshal(joined.Payload, &ack))
	assert.ElementsMatch(t, []uuid.UUID{f.alice.ID, f.bob.ID}, ack.OnlineUsers)

	intruder.send(model.WSEventJoinConversation, room)
	refusal := intruder.await(model.WSEventError)
	var errEv model.ErrorEvent
	require.NoError(t, json.Unmarshal(refusal.Payload, &errEv))
	assert.Equal(t, "NOT_PARTICIPANT", errEv.Code)

	alice.send(model.WSEventTypingStart, room)
	typing := bob.await(model.WSEventTypingIndicator)
	var typingEv model.TypingEvent
	require.NoError(t, json.Unmarshal(typing.Payload, &typingEv))
	assert.True(t, typingEv.IsTyping)
	assert.Equal(t, f.alice.ID, typingEv.UserID)

	alice.send(model.WSEventSendMessage, gin.H{"conversation_id": conv.ID, "content": "hello over ws"})
	incoming := bob.await(model.WSEventMessageNew)
	var msg model.Message
	require.NoError(t, json.Unmarshal(incoming.Payload, &msg))
	assert.Equal(t, "hello over ws", msg.Content)
	assert.Equal(t, f.bob.ID, msg.RecipientID)
	bob.await(model.WSEventConversationUpdated)
	bob.await(model.WSEventNotification)

	bob.send(model.WSEventMarkRead, gin.H{"conversation_id": conv.ID, "mark_all_as_read": true})
	receipt := alice.await(model.WSEventMessagesRead)
	var readEv model.MessagesReadEvent
	require.NoError(t, json.Unmarshal(receipt.Payload, &readEv))
	assert.Equal(t, f.bob.ID, readEv.ReaderID)
	unread := bob.await(model.WSEventUnreadUpdated)
	var unreadEv model.UnreadUpdatedEvent
	require.NoError(t, json.Unmarshal(unread.Payload, &unreadEv))
	assert.Zero(t, unreadEv.TotalUnread)
}

func TestWebSocket_InvalidEventsAnswerWithError(t *testing.T) {
	f := newAPIFixture(t, nil)
	server := httptest.NewServer(f.router)
	defer server.Close()
	alice := f.dial(t, server, f.alice)

	cases := []struct {
		name    string
		event   string
		payload interface{}
	}{
		{"unknown type", "call:offer", gin.H{}},
		{"missing payload", model.WSEventSendMessage, nil},
		{"missing conversation", model.WSEventSendMessage, gin.H{"content": "hi"}},
		{"bad status", model.WSEventStatusUpdate, gin.H{"status": "sleeping"}},
		{"unknown conversation", model.WSEventSendMessage, gin.H{"conversation_id": uuid.New(), "content": "hi"}},
	}
	for _, tc := range cases {
		alice.send(tc.event, tc.payload)
		ev := alice.await(model.WSEventError)
		var errEv model.ErrorEvent
		require.NoError(t, json.Unmarshal(ev.Payload, &errEv), tc.name)
		assert.Equal(t, tc.event, errEv.Event, tc.name)
		assert.NotEmpty(t, errEv.Code, tc.name)
	}

	require.NoError(t, alice.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var errEv model.ErrorEvent
	require.NoError(t, json.Unmarshal(alice.await(model.WSEventError).Payload, &errEv))
	assert.Equal(t, string(apperror.CodeValidation), errEv.Code)
}
