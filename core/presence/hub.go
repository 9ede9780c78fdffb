// Package presence tracks connected listeners and broadcasts what they are playing.
package presence

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"melodify/logger"
)

// MessageType 消息类型
type MessageType string

const (
	// 系统消息
	MsgTypeError MessageType = "error" // 错误消息
	MsgTypePing  MessageType = "ping"  // 心跳
	MsgTypePong  MessageType = "pong"  // 心跳响应
	MsgTypeToast MessageType = "toast" // 状态提示

	// 在线状态
	MsgTypeUserConnected    MessageType = "user_connected"
	MsgTypeUserDisconnected MessageType = "user_disconnected"
	MsgTypeActivity         MessageType = "activity"   // 收听状态变化
	MsgTypeActivities       MessageType = "activities" // 全部在线用户的收听状态

	// 播放器
	MsgTypeState         MessageType = "state"          // 播放状态快照
	MsgTypeSearchResults MessageType = "search_results" // 搜索结果
)

// Message WebSocket 消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	UserID    string          `json:"userId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// NewMessage marshals data into a message of type t.
func NewMessage(t MessageType, data interface{}) (*Message, error) {
	msg := &Message{Type: t}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return msg, nil
}

// ActivityData 收听状态
type ActivityData struct {
	UserID   string `json:"userId"`
	Activity string `json:"activity"`
}

// Store 在线状态持久化（Redis），可为空
type Store interface {
	SetActivity(ctx context.Context, userID, activity string) error
	Touch(ctx context.Context, userID string) error
	Remove(ctx context.Context, userID string) error
}

// Hub 在线用户 WebSocket 管理中心
type Hub struct {
	// 用户 -> 客户端集合（同一用户可以有多个标签页）
	users      map[string]map[*Client]bool
	activities map[string]string

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	store Store

	mu   sync.RWMutex
	done chan struct{}
	once sync.Once
}

type broadcastMessage struct {
	data    []byte
	exclude *Client
}

// NewHub 创建 Hub，store 可以为 nil
func NewHub(store Store) *Hub {
	return &Hub{
		users:      make(map[string]map[*Client]bool),
		activities: make(map[string]string),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
		store:      store,
		done:       make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.broadcastAll(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	first := len(h.users[client.UserID]) == 0
	if h.users[client.UserID] == nil {
		h.users[client.UserID] = make(map[*Client]bool)
	}
	h.users[client.UserID][client] = true
	if first {
		h.activities[client.UserID] = "Idle"
	}
	h.mu.Unlock()

	if first {
		h.persist(func(ctx context.Context) error { return h.store.SetActivity(ctx, client.UserID, "Idle") })
		h.queue(MsgTypeUserConnected, client.UserID, ActivityData{UserID: client.UserID, Activity: "Idle"}, client)
	}

	logger.Info("[WS] client registered",
		logger.String("user", client.UserID),
		logger.String("conn", client.ConnID))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	clients, ok := h.users[client.UserID]
	if !ok || !clients[client] {
		h.mu.Unlock()
		return
	}
	delete(clients, client)
	client.close()

	last := len(clients) == 0
	if last {
		delete(h.users, client.UserID)
		delete(h.activities, client.UserID)
	}
	h.mu.Unlock()

	if last {
		h.persist(func(ctx context.Context) error { return h.store.Remove(ctx, client.UserID) })
		h.queue(MsgTypeUserDisconnected, client.UserID, ActivityData{UserID: client.UserID}, nil)
	}

	logger.Info("[WS] client unregistered",
		logger.String("user", client.UserID),
		logger.String("conn", client.ConnID))
}

func (h *Hub) broadcastAll(msg *broadcastMessage) {
	h.mu.RLock()
	clientList := make([]*Client, 0, len(h.users))
	for _, clients := range h.users {
		for client := range clients {
			if client != msg.exclude {
				clientList = append(clientList, client)
			}
		}
	}
	h.mu.RUnlock()

	for _, client := range clientList {
		if !client.trySend(msg.data) {
			// 发送缓冲区满，移除客户端
			go h.Unregister(client)
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.users {
		for client := range clients {
			client.close()
		}
	}
	h.users = make(map[string]map[*Client]bool)
	h.activities = make(map[string]string)
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// UpdateActivity records what userID is doing and tells every other listener.
func (h *Hub) UpdateActivity(userID, activity string) {
	h.mu.Lock()
	if _, online := h.users[userID]; online {
		h.activities[userID] = activity
	}
	h.mu.Unlock()

	h.persist(func(ctx context.Context) error { return h.store.SetActivity(ctx, userID, activity) })
	h.queue(MsgTypeActivity, userID, ActivityData{UserID: userID, Activity: activity}, nil)
}

// Touch refreshes the user's heartbeat in the store.
func (h *Hub) Touch(userID string) {
	h.persist(func(ctx context.Context) error { return h.store.Touch(ctx, userID) })
}

// Activities returns the activity of every connected user.
func (h *Hub) Activities() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]string, len(h.activities))
	for k, v := range h.activities {
		out[k] = v
	}
	return out
}

// Online returns the connected user ids, sorted.
func (h *Hub) Online() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.users))
	for id := range h.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.users {
		n += len(clients)
	}
	return n
}

func (h *Hub) queue(t MessageType, userID string, data interface{}, exclude *Client) {
	msg, err := NewMessage(t, data)
	if err != nil {
		logger.Warn("[WS] failed to marshal broadcast", logger.ErrorField(err))
		return
	}
	msg.UserID = userID
	msg.Timestamp = time.Now().UnixMilli()
	raw, err := json.Marshal(msg)
	if err != nil {
		logger.Warn("[WS] failed to marshal broadcast", logger.ErrorField(err))
		return
	}

	select {
	case h.broadcast <- &broadcastMessage{data: raw, exclude: exclude}:
	case <-h.done:
	default:
		logger.Warn("[WS] broadcast queue full, dropping message", logger.String("type", string(t)))
	}
}

// persist 异步写入在线状态，不阻塞 Hub 主循环和播放会话
func (h *Hub) persist(fn func(ctx context.Context) error) {
	if h.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			logger.Warn("[WS] failed to update presence", logger.ErrorField(err))
		}
	}()
}
