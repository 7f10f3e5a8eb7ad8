package push

import (
	"context"
	"fmt"

	"merodocs-http-service/internal/infrastructure/config"
)

// Message 推送消息体
type Message struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Path     string `json:"path,omitempty"`
	GroupKey string `json:"group_key,omitempty"`
	FlatID   uint   `json:"flat_id,omitempty"`
	Live     bool   `json:"live"`
	Sound    bool   `json:"sound"`
}

// Provider 向单个设备端点推送
type Provider interface {
	Name() string
	Send(ctx context.Context, endpoint string, msg Message) error
}

// New 按配置创建推送通道
func New(cfg *config.Config) (Provider, error) {
	switch cfg.PushProvider {
	case "mqtt":
		return NewMQTTProvider(cfg)
	case "log", "":
		return NewLogProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported push provider: %s", cfg.PushProvider)
	}
}
