package push

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"merodocs-http-service/internal/infrastructure/config"
	"merodocs-http-service/pkg/logger"
)

const publishTimeout = 5 * time.Second

// ErrInvalidEndpoint 端点包含 MQTT 通配符
var ErrInvalidEndpoint = errors.New("invalid push endpoint")

// MQTTProvider 每个设备订阅 <prefix>/<token>，服务端按设备发布
type MQTTProvider struct {
	client      mqtt.Client
	topicPrefix string
	qos         byte
	retained    bool
}

// NewMQTTProvider 连接 MQTT 服务器
func NewMQTTProvider(cfg *config.Config) (*MQTTProvider, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBrokerURL)
	// 使用唯一的客户端ID，避免同一服务多实例冲突
	opts.SetClientID(fmt.Sprintf("%s-%s", cfg.MQTTClientID, uuid.New().String()[:8]))
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Second * 30)
	opts.SetKeepAlive(time.Second * 60)
	opts.SetPingTimeout(time.Second * 10)
	opts.SetCleanSession(true)

	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}

	if strings.HasPrefix(cfg.MQTTBrokerURL, "ssl://") || strings.HasPrefix(cfg.MQTTBrokerURL, "tls://") || cfg.MQTTSSLEnabled {
		tlsConfig, err := newTLSConfig(cfg.MQTTCACertPath)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warning("[MQTT] 连接丢失: %v", err)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("[MQTT] 成功连接到 %s", cfg.MQTTBrokerURL)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.MQTTBrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	return NewMQTTProviderWithClient(client, cfg.PushTopicPrefix, byte(cfg.MQTTQoS), cfg.MQTTRetained), nil
}

// NewMQTTProviderWithClient 使用已有客户端
func NewMQTTProviderWithClient(client mqtt.Client, topicPrefix string, qos byte, retained bool) *MQTTProvider {
	return &MQTTProvider{
		client:      client,
		topicPrefix: strings.TrimRight(topicPrefix, "/"),
		qos:         qos,
		retained:    retained,
	}
}

func newTLSConfig(caPath string) (*tls.Config, error) {
	if caPath == "" {
		return &tls.Config{MinVersion: tls.VersionTLS12}, nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("read mqtt ca cert: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", caPath)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (p *MQTTProvider) Name() string { return "mqtt" }

// Topic 设备端点对应的主题
func (p *MQTTProvider) Topic(endpoint string) (string, error) {
	if endpoint == "" || strings.ContainsAny(endpoint, "+#/") {
		return "", ErrInvalidEndpoint
	}
	return p.topicPrefix + "/" + endpoint, nil
}

func (p *MQTTProvider) Send(ctx context.Context, endpoint string, msg Message) error {
	topic, err := p.Topic(endpoint)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}

// Close 断开连接
func (p *MQTTProvider) Close() {
	p.client.Disconnect(250)
}
