package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/tradetalk/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkerFunc func(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)

func (f checkerFunc) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	return f(ctx, conversationID, userID)
}

// participantsOf allows exactly the given users into any conversation
func participantsOf(users ...uuid.UUID) ParticipantChecker {
	return checkerFunc(func(_ context.Context, _ uuid.UUID, userID uuid.UUID) (bool, error) {
		for _, u := range users {
			if u == userID {
				return true, nil
			}
		}
		return false, nil
	})
}

type receivedEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func connect(h *Hub, userID uuid.UUID, role model.UserRole) *Client {
	c := NewClient(h, nil, userID, "tester", role)
	h.Register(c)
	return c
}

func nextEvent(t *testing.T, c *Client) receivedEvent {
	t.Helper()
	select {
	case data, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var ev receivedEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return receivedEvent{}
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if ok {
			t.Fatalf("unexpected event: %s", data)
		}
	default:
	}
}

func TestJoinConversation_OnlyParticipants(t *testing.T) {
	ctx := context.Background()
	h := NewHub(nil, nil)
	alice, bob, eve := uuid.New(), uuid.New(), uuid.New()
	convID := uuid.New()
	checker := participantsOf(alice, bob)

	aliceConn := connect(h, alice, model.UserRoleBuyer)
	bobConn := connect(h, bob, model.UserRoleSeller)
	eveConn := connect(h, eve, model.UserRoleBuyer)

	require.True(t, h.JoinConversation(ctx, aliceConn, convID, checker))
	ack := nextEvent(t, aliceConn)
	assert.Equal(t, model.WSEventConversationJoined, ack.Type)
	var joined model.ConversationJoinedEvent
	require.NoError(t, json.Unmarshal(ack.Payload, &joined))
	assert.Equal(t, []uuid.UUID{alice}, joined.OnlineUsers)
	assert.Equal(t, model.WSEventUserOnline, nextEvent(t, aliceConn).Type)

	require.True(t, h.JoinConversation(ctx, bobConn, convID, checker))
	assert.Equal(t, model.WSEventConversationJoined, nextEvent(t, bobConn).Type)
	assert.Equal(t, model.WSEventUserOnline, nextEvent(t, bobConn).Type)
	// alice learns that bob arrived
	assert.Equal(t, model.WSEventUserOnline, nextEvent(t, aliceConn).Type)

	require.False(t, h.JoinConversation(ctx, eveConn, convID, checker))
	refusal := nextEvent(t, eveConn)
	assert.Equal(t, model.WSEventError, refusal.Type)
	var errEv model.ErrorEvent
	require.NoError(t, json.Unmarshal(refusal.Payload, &errEv))
	assert.Equal(t, "NOT_PARTICIPANT", errEv.Code)
	assert.Equal(t, model.WSEventJoinConversation, errEv.Event)
	// the refusal is not broadcast
	assertNoEvent(t, aliceConn)
	assertNoEvent(t, bobConn)

	h.BroadcastToConversation(convID, model.WSEventMessageNew, map[string]string{"content": "hi"})
	assert.Equal(t, model.WSEventMessageNew, nextEvent(t, aliceConn).Type)
	assert.Equal(t, model.WSEventMessageNew, nextEvent(t, bobConn).Type)
	assertNoEvent(t, eveConn)

	assert.ElementsMatch(t, []uuid.UUID{alice, bob}, h.OnlineUsersIn(convID))
}

func TestJoinConversation_CheckerErrorIsReportedToCaller(t *testing.T) {
	h := NewHub(nil, nil)
	c := connect(h, uuid.New(), model.UserRoleBuyer)
	failing := checkerFunc(func(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
		return false, errors.New("db down")
	})

	assert.False(t, h.JoinConversation(context.Background(), c, uuid.New(), failing))
	ev := nextEvent(t, c)
	assert.Equal(t, model.WSEventError, ev.Type)
}

func TestLeaveConversation(t *testing.T) {
	ctx := context.Background()
	h := NewHub(nil, nil)
	alice := uuid.New()
	convID := uuid.New()
	c := connect(h, alice, model.UserRoleBuyer)

	require.True(t, h.JoinConversation(ctx, c, convID, participantsOf(alice)))
	nextEvent(t, c)
	nextEvent(t, c)

	h.LeaveConversation(c, convID)
	h.BroadcastToConversation(convID, model.WSEventMessageNew, nil)
	assertNoEvent(t, c)
	assert.Empty(t, h.OnlineUsersIn(convID))
}

func TestSendToUser_ReachesEveryConnection(t *testing.T) {
	h := NewHub(nil, nil)
	alice := uuid.New()
	phone := connect(h, alice, model.UserRoleBuyer)
	laptop := connect(h, alice, model.UserRoleBuyer)
	other := connect(h, uuid.New(), model.UserRoleBuyer)

	assert.True(t, h.SendToUser(alice, model.WSEventNotification, model.NotificationEvent{Title: "t"}))
	assert.Equal(t, model.WSEventNotification, nextEvent(t, phone).Type)
	assert.Equal(t, model.WSEventNotification, nextEvent(t, laptop).Type)
	assertNoEvent(t, other)

	assert.False(t, h.SendToUser(uuid.New(), model.WSEventNotification, nil))
}

func TestSendToRole(t *testing.T) {
	h := NewHub(nil, nil)
	seller := connect(h, uuid.New(), model.UserRoleSeller)
	buyer := connect(h, uuid.New(), model.UserRoleBuyer)

	h.SendToRole(model.UserRoleSeller, model.WSEventNotification, model.NotificationEvent{Title: "fees"})
	assert.Equal(t, model.WSEventNotification, nextEvent(t, seller).Type)
	assertNoEvent(t, buyer)
}

func TestUnregister_LastConnectionGoesOffline(t *testing.T) {
	ctx := context.Background()
	statuses := make(chan bool, 4)
	alice, bob := uuid.New(), uuid.New()
	h := NewHub(nil, func(userID uuid.UUID, online bool) {
		if userID == alice {
			statuses <- online
		}
	})
	convID := uuid.New()
	checker := participantsOf(alice, bob)

	first := connect(h, alice, model.UserRoleBuyer)
	second := connect(h, alice, model.UserRoleBuyer)
	bobConn := connect(h, bob, model.UserRoleSeller)
	assert.True(t, <-statuses)

	require.True(t, h.JoinConversation(ctx, first, convID, checker))
	require.True(t, h.JoinConversation(ctx, bobConn, convID, checker))
	for len(bobConn.send) > 0 {
		<-bobConn.send
	}

	h.Unregister(second)
	assert.True(t, h.IsOnline(alice))
	assertNoEvent(t, bobConn)

	h.Unregister(first)
	h.Unregister(first)
	assert.False(t, h.IsOnline(alice))
	offline := nextEvent(t, bobConn)
	assert.Equal(t, model.WSEventUserOffline, offline.Type)
	assert.False(t, <-statuses)

	_, open := <-first.send
	for open {
		_, open = <-first.send
	}
	assert.Equal(t, []uuid.UUID{bob}, h.OnlineUsersIn(convID))
}

func TestBroadcast_DropsSlowClient(t *testing.T) {
	h := NewHub(nil, nil)
	slowUser := uuid.New()
	slow := connect(h, slowUser, model.UserRoleBuyer)
	fast := connect(h, uuid.New(), model.UserRoleBuyer)

	for i := 0; i < sendBufferSize; i++ {
		require.True(t, slow.enqueue([]byte(`{}`)))
	}

	h.SendToRole(model.UserRoleBuyer, model.WSEventNotification, nil)
	assert.Equal(t, model.WSEventNotification, nextEvent(t, fast).Type)
	assert.Eventually(t, func() bool { return !h.IsOnline(slowUser) }, time.Second, 10*time.Millisecond)
}

func TestBroadcastStatus(t *testing.T) {
	ctx := context.Background()
	h := NewHub(nil, nil)
	alice, bob := uuid.New(), uuid.New()
	convID := uuid.New()
	checker := participantsOf(alice, bob)
	aliceConn := connect(h, alice, model.UserRoleBuyer)
	bobConn := connect(h, bob, model.UserRoleSeller)
	require.True(t, h.JoinConversation(ctx, aliceConn, convID, checker))
	require.True(t, h.JoinConversation(ctx, bobConn, convID, checker))
	for len(bobConn.send) > 0 {
		<-bobConn.send
	}

	h.BroadcastStatus(aliceConn, "away")
	ev := nextEvent(t, bobConn)
	assert.Equal(t, model.WSEventUserStatus, ev.Type)
	var presence model.PresenceEvent
	require.NoError(t, json.Unmarshal(ev.Payload, &presence))
	assert.Equal(t, alice, presence.UserID)
	assert.Equal(t, "away", presence.Status)
}

// memoryRelay connects hubs in one process the way Redis connects instances
type memoryRelay struct {
	mu   sync.Mutex
	subs []func(room string, data []byte)
}

func (r *memoryRelay) Publish(_ context.Context, room string, data []byte) error {
	r.mu.Lock()
	subs := append([]func(string, []byte){}, r.subs...)
	r.mu.Unlock()
	for _, deliver := range subs {
		deliver(room, data)
	}
	return nil
}

func (r *memoryRelay) Subscribe(ctx context.Context, deliver func(room string, data []byte)) error {
	r.mu.Lock()
	r.subs = append(r.subs, deliver)
	r.mu.Unlock()
	<-ctx.Done()
	return nil
}

func (r *memoryRelay) subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

func TestRelay_DeliversAcrossHubs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay := &memoryRelay{}
	hubA := NewHub(relay, nil)
	hubB := NewHub(relay, nil)
	go hubA.Run(ctx)
	go hubB.Run(ctx)
	require.Eventually(t, func() bool { return relay.subscribers() == 2 }, time.Second, 5*time.Millisecond)

	bob := uuid.New()
	bobOnB := connect(hubB, bob, model.UserRoleSeller)

	hubA.SendToUser(bob, model.WSEventNotification, model.NotificationEvent{Title: "hi"})
	assert.Equal(t, model.WSEventNotification, nextEvent(t, bobOnB).Type)
	// presence stays local to each instance
	assert.False(t, hubA.IsOnline(bob))
	assert.True(t, hubB.IsOnline(bob))
}
