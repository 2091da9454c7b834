package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// doneToken is an already completed token.
type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)

	return ch
}

// published is a message captured by fakeClient.
type published struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient records calls. Methods not overridden panic through the nil
// embedded interface.
type fakeClient struct {
	paho.Client

	opts       *paho.ClientOptions
	connectErr error

	mu           sync.Mutex
	subscribed   []string
	handler      paho.MessageHandler
	messages     []published
	disconnected bool
}

func (c *fakeClient) Connect() paho.Token {
	if c.connectErr == nil && c.opts != nil && c.opts.OnConnect != nil {
		c.opts.OnConnect(c)
	}

	return doneToken{err: c.connectErr}
}

func (c *fakeClient) Subscribe(topic string, _ byte, handler paho.MessageHandler) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subscribed = append(c.subscribed, topic)
	c.handler = handler

	return doneToken{}
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload any) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	body, _ := payload.([]byte)
	c.messages = append(c.messages, published{topic: topic, qos: qos, payload: body})

	return doneToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disconnected = true
}

func (c *fakeClient) deliver(topic string, payload []byte) {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()

	handler(c, &fakeMessage{topic: topic, payload: payload})
}

func (c *fakeClient) isDisconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.disconnected
}

// fakeMessage implements the parts of paho.Message the handler reads.
type fakeMessage struct {
	paho.Message

	topic   string
	payload []byte
}

func (m *fakeMessage) Topic() string   { return m.topic }
func (m *fakeMessage) Payload() []byte { return m.payload }

// factoryFor returns a ClientFactory producing c.
func factoryFor(c *fakeClient) ClientFactory {
	return func(opts *paho.ClientOptions) paho.Client {
		c.opts = opts

		return c
	}
}
