package presence

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"melodify/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Client WebSocket 客户端
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	UserID string
	ConnID string

	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// NewClient 创建客户端，需要调用 Hub.Register 后才会收到广播
func NewClient(hub *Hub, conn *websocket.Conn, userID, connID string) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		ConnID: connID,
		send:   make(chan []byte, sendBuffer),
	}
}

// trySend 非阻塞发送，客户端已关闭或缓冲区满时返回 false
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Send 发送消息给客户端，缓冲区满时丢弃
func (c *Client) Send(msg *Message) error {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if !c.trySend(data) {
		logger.Debug("[WS] dropping message for slow client",
			logger.String("user", c.UserID),
			logger.String("type", string(msg.Type)))
	}
	return nil
}

// SendData marshals data into a message of type t and sends it.
func (c *Client) SendData(t MessageType, data interface{}) error {
	msg, err := NewMessage(t, data)
	if err != nil {
		return err
	}
	return c.Send(msg)
}

// ReadPump 读取消息循环，返回时注销客户端并关闭连接
func (c *Client) ReadPump(ctx context.Context, handler func(ctx context.Context, client *Client, msg *Message)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("[WS] websocket read error",
					logger.ErrorField(err),
					logger.String("user", c.UserID))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Warn("[WS] invalid message format",
				logger.ErrorField(err),
				logger.String("user", c.UserID))
			continue
		}

		// 处理心跳
		if msg.Type == MsgTypePing {
			c.Hub.Touch(c.UserID)
			_ = c.Send(&Message{Type: MsgTypePong})
			continue
		}

		handler(ctx, c, &msg)
	}
}

// WritePump 写入消息循环
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// 合并发送队列中的消息
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
