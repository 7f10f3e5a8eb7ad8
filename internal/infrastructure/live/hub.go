package live

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"merodocs-http-service/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// Event 推送给门岗实时面板的消息
type Event struct {
	Type        string      `json:"type"`
	ApartmentID uint        `json:"apartment_id"`
	Data        interface{} `json:"data"`
	At          time.Time   `json:"at"`
}

// Broadcaster 按小区广播
type Broadcaster interface {
	Broadcast(apartmentID uint, eventType string, data interface{})
}

type client struct {
	conn        *websocket.Conn
	apartmentID uint
	send        chan []byte
}

type envelope struct {
	apartmentID uint
	message     []byte
}

// Hub 管理门岗的 WebSocket 连接，按小区分组
type Hub struct {
	clients    map[uint]map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan envelope
	counts     chan countQuery
	done       chan struct{}
}

type countQuery struct {
	apartmentID uint
	reply       chan int
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint]map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan envelope, 256),
		counts:     make(chan countQuery),
		done:       make(chan struct{}),
	}
}

// Start 运行事件循环，ctx 结束时关闭所有连接
func (h *Hub) Start(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, group := range h.clients {
				for c := range group {
					close(c.send)
				}
			}
			h.clients = make(map[uint]map[*client]struct{})
			return

		case c := <-h.register:
			group, ok := h.clients[c.apartmentID]
			if !ok {
				group = make(map[*client]struct{})
				h.clients[c.apartmentID] = group
			}
			group[c] = struct{}{}
			logger.Debug("live client connected, apartment=%d total=%d", c.apartmentID, len(group))

		case c := <-h.unregister:
			h.remove(c)

		case env := <-h.broadcast:
			for c := range h.clients[env.apartmentID] {
				select {
				case c.send <- env.message:
				default:
					// 客户端过慢，断开
					h.remove(c)
				}
			}

		case q := <-h.counts:
			q.reply <- len(h.clients[q.apartmentID])
		}
	}
}

func (h *Hub) remove(c *client) {
	group := h.clients[c.apartmentID]
	if _, ok := group[c]; !ok {
		return
	}
	delete(group, c)
	close(c.send)
	if len(group) == 0 {
		delete(h.clients, c.apartmentID)
	}
}

// Broadcast 非阻塞发送；队列满时丢弃
func (h *Hub) Broadcast(apartmentID uint, eventType string, data interface{}) {
	message, err := json.Marshal(Event{Type: eventType, ApartmentID: apartmentID, Data: data, At: time.Now()})
	if err != nil {
		logger.Error("marshal live event: %v", err)
		return
	}

	select {
	case h.broadcast <- envelope{apartmentID: apartmentID, message: message}:
	default:
		logger.Warning("live broadcast channel is full, dropping %s", eventType)
	}
}

// Count 当前小区在线连接数
func (h *Hub) Count(apartmentID uint) int {
	reply := make(chan int, 1)
	select {
	case h.counts <- countQuery{apartmentID: apartmentID, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Serve 接管已升级的连接，直到对端断开
func (h *Hub) Serve(conn *websocket.Conn, apartmentID uint) {
	c := &client{conn: conn, apartmentID: apartmentID, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	c.readPump()
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// readPump 只用于检测断开
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warning("websocket error: %v", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
