package push

import (
	"context"

	"merodocs-http-service/pkg/logger"
)

// LogProvider 开发环境使用，只记录日志不真正推送
type LogProvider struct{}

func NewLogProvider() *LogProvider {
	return &LogProvider{}
}

func (p *LogProvider) Name() string { return "log" }

func (p *LogProvider) Send(_ context.Context, endpoint string, msg Message) error {
	logger.WithFields(logger.Fields{
		"endpoint": endpoint,
		"type":     msg.Type,
		"title":    msg.Title,
		"flat_id":  msg.FlatID,
	}).Info("push")
	return nil
}
