package integration

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// completedToken is a token that already finished.
type completedToken struct{}

func (completedToken) Wait() bool                     { return true }
func (completedToken) WaitTimeout(time.Duration) bool { return true }
func (completedToken) Error() error                   { return nil }

func (completedToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)

	return ch
}

// memoryBroker routes publishes from any client to every subscriber in process.
type memoryBroker struct {
	mu       sync.Mutex
	handlers []paho.MessageHandler
}

// factory returns a client factory bound to the broker.
func (b *memoryBroker) factory() func(opts *paho.ClientOptions) paho.Client {
	return func(opts *paho.ClientOptions) paho.Client {
		return &brokerClient{broker: b, opts: opts}
	}
}

func (b *memoryBroker) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.handlers)
}

func (b *memoryBroker) publish(c paho.Client, topic string, payload []byte) {
	b.mu.Lock()
	handlers := append([]paho.MessageHandler(nil), b.handlers...)
	b.mu.Unlock()

	for _, h := range handlers {
		h(c, &brokerMessage{topic: topic, payload: payload})
	}
}

// brokerClient implements the paho client calls used by the tracker.
type brokerClient struct {
	paho.Client

	broker *memoryBroker
	opts   *paho.ClientOptions
}

func (c *brokerClient) Connect() paho.Token {
	if c.opts.OnConnect != nil {
		c.opts.OnConnect(c)
	}

	return completedToken{}
}

func (c *brokerClient) Subscribe(_ string, _ byte, handler paho.MessageHandler) paho.Token {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()

	c.broker.handlers = append(c.broker.handlers, handler)

	return completedToken{}
}

func (c *brokerClient) Publish(topic string, _ byte, _ bool, payload any) paho.Token {
	body, _ := payload.([]byte)
	c.broker.publish(c, topic, body)

	return completedToken{}
}

func (c *brokerClient) Disconnect(uint) {}

// brokerMessage carries topic and payload.
type brokerMessage struct {
	paho.Message

	topic   string
	payload []byte
}

func (m *brokerMessage) Topic() string   { return m.topic }
func (m *brokerMessage) Payload() []byte { return m.payload }
