package push

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct {
	err  error
	done chan struct{}
}

func newDoneToken(err error) *doneToken {
	t := &doneToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return t.err }

type fakeClient struct {
	mqtt.Client
	topic   string
	payload []byte
	err     error
}

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.topic = topic
	c.payload = payload.([]byte)
	return newDoneToken(c.err)
}

func TestMQTTProviderPublishesPerDevice(t *testing.T) {
	client := &fakeClient{}
	p := NewMQTTProviderWithClient(client, "merodocs/push/", 1, false)

	err := p.Send(context.Background(), "device-token-1", Message{Type: "visit.guest", Title: "Guest at gate", FlatID: 3})
	require.NoError(t, err)

	assert.Equal(t, "merodocs/push/device-token-1", client.topic)
	var got Message
	require.NoError(t, json.Unmarshal(client.payload, &got))
	assert.Equal(t, uint(3), got.FlatID)
	assert.Equal(t, "Guest at gate", got.Title)
}

func TestMQTTProviderReturnsBrokerError(t *testing.T) {
	client := &fakeClient{err: errors.New("not authorized")}
	p := NewMQTTProviderWithClient(client, "merodocs/push", 1, false)

	err := p.Send(context.Background(), "tok", Message{})
	assert.EqualError(t, err, "not authorized")
}

func TestMQTTProviderRejectsWildcardEndpoint(t *testing.T) {
	p := NewMQTTProviderWithClient(&fakeClient{}, "merodocs/push", 1, false)

	for _, endpoint := range []string{"", "a/b", "a+", "#"} {
		err := p.Send(context.Background(), endpoint, Message{})
		assert.ErrorIs(t, err, ErrInvalidEndpoint, endpoint)
	}
}

func TestLogProviderNeverFails(t *testing.T) {
	assert.NoError(t, NewLogProvider().Send(context.Background(), "tok", Message{Title: "hi"}))
}
