package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"merodocs-http-service/pkg/logger"
)

// Publisher 领域事件发布
type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

// Event subjects
const (
	VisitCreated    = "gate.visit.created"
	VisitCheckedIn  = "gate.visit.checkedin"
	VisitCheckedOut = "gate.visit.checkedout"
	VisitDeleted    = "gate.visit.deleted"
	VisitsExpired   = "gate.visit.expired"
	TicketApproved  = "gate.ticket.approved"
	TicketRejected  = "gate.ticket.rejected"
	TicketConfirmed = "gate.ticket.confirmed"
	ParcelCollected = "gate.parcel.collected"
	ParcelConfirmed = "gate.parcel.confirmed"
)

// VisitEvent 访客事件
type VisitEvent struct {
	VisitID     uint      `json:"visit_id"`
	ApartmentID uint      `json:"apartment_id"`
	Kind        string    `json:"kind"`
	Origin      string    `json:"origin"`
	FlatIDs     []uint    `json:"flat_ids"`
	GateEventID uint      `json:"gate_event_id,omitempty"`
	At          time.Time `json:"at"`
}

// TicketEvent 审批单事件
type TicketEvent struct {
	TicketID    uint      `json:"ticket_id"`
	ApartmentID uint      `json:"apartment_id"`
	FlatID      uint      `json:"flat_id"`
	Status      string    `json:"status"`
	ActorID     uint      `json:"actor_id"`
	ActorRole   string    `json:"actor_role"`
	At          time.Time `json:"at"`
}

// NATSEventBus 基于 NATS 的事件发布
type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name("merodocs-http-service"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warning("[NATS] 连接断开: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("[NATS] 已重连到 %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.WithFields(logger.Fields{"subject": subject}).Debug("publishing event")

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}

// NoopPublisher 未配置 NATS 时使用
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, interface{}) error { return nil }
func (NoopPublisher) Close() error                                      { return nil }

// Published 一条已发布的事件
type Published struct {
	Subject string
	Data    interface{}
}

// MemoryPublisher 记录事件，测试使用
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Published
}

func (m *MemoryPublisher) Publish(_ context.Context, subject string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Published{Subject: subject, Data: data})
	return nil
}

func (m *MemoryPublisher) Close() error { return nil }

// Subjects 已发布事件的主题列表
func (m *MemoryPublisher) Subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Subject)
	}
	return out
}

// PublishLogged 发布失败只记录日志
func PublishLogged(ctx context.Context, p Publisher, subject string, data interface{}) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, subject, data); err != nil {
		logger.WithFields(logger.Fields{"subject": subject}).WithError(err).Warn("publish event failed")
	}
}
