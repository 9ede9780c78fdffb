package presence

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu         sync.Mutex
	activities map[string]string
}

func (m *memoryStore) SetActivity(_ context.Context, userID, activity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activities[userID] = activity
	return nil
}

func (m *memoryStore) Touch(context.Context, string) error { return nil }

func (m *memoryStore) Remove(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.activities, userID)
	return nil
}

func (m *memoryStore) get(userID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.activities[userID]
	return v, ok
}

func startHub(t *testing.T, store Store) *Hub {
	t.Helper()
	h := NewHub(store)
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func receive(t *testing.T, c *Client) *Message {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "client channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return &msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return nil
	}
}

// receiveType 跳过其他类型的消息，直到收到 t
func receiveType(t *testing.T, c *Client, typ MessageType) *Message {
	t.Helper()
	for {
		msg := receive(t, c)
		if msg.Type == typ {
			return msg
		}
	}
}

func TestActivityBroadcast(t *testing.T) {
	store := &memoryStore{activities: map[string]string{}}
	h := startHub(t, store)

	alice := NewClient(h, nil, "alice", "c1")
	bob := NewClient(h, nil, "bob", "c2")
	h.Register(alice)
	h.Register(bob)

	// alice 收到 bob 上线的通知
	msg := receiveType(t, alice, MsgTypeUserConnected)
	assert.Equal(t, "bob", msg.UserID)

	h.UpdateActivity("alice", "Playing Song by Artist")
	for _, c := range []*Client{alice, bob} {
		msg := receiveType(t, c, MsgTypeActivity)
		var data ActivityData
		require.NoError(t, json.Unmarshal(msg.Data, &data))
		assert.Equal(t, ActivityData{UserID: "alice", Activity: "Playing Song by Artist"}, data)
	}

	assert.Equal(t, map[string]string{"alice": "Playing Song by Artist", "bob": "Idle"}, h.Activities())
	assert.Equal(t, []string{"alice", "bob"}, h.Online())
	assert.Eventually(t, func() bool {
		v, _ := store.get("alice")
		return v == "Playing Song by Artist"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUnregisterLastConnection(t *testing.T) {
	store := &memoryStore{activities: map[string]string{}}
	h := startHub(t, store)

	tab1 := NewClient(h, nil, "alice", "c1")
	tab2 := NewClient(h, nil, "alice", "c2")
	watcher := NewClient(h, nil, "bob", "c3")
	h.Register(watcher)
	h.Register(tab1)
	h.Register(tab2)
	receiveType(t, watcher, MsgTypeUserConnected)

	h.Unregister(tab1)
	assert.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, h.Online(), "alice")

	h.Unregister(tab2)
	msg := receiveType(t, watcher, MsgTypeUserDisconnected)
	assert.Equal(t, "alice", msg.UserID)
	assert.Equal(t, []string{"bob"}, h.Online())

	for range tab2.send {
	}
	assert.True(t, tab2.closed, "send channel closed on unregister")
	assert.Eventually(t, func() bool {
		_, ok := store.get("alice")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSendAfterCloseDoesNotPanic(t *testing.T) {
	c := NewClient(nil, nil, "u", "c")
	c.close()
	c.close()
	assert.NotPanics(t, func() {
		assert.NoError(t, c.SendData(MsgTypeToast, map[string]string{"message": "hi"}))
	})
}

func TestStopClosesClients(t *testing.T) {
	h := NewHub(nil)
	go h.Run()

	c := NewClient(h, nil, "u", "c")
	h.Register(c)
	h.Stop()

	assert.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.closed
	}, time.Second, 5*time.Millisecond)
	// Stop 之后注册/注销不会阻塞
	h.Unregister(c)
	h.Register(NewClient(h, nil, "v", "d"))
}
