package mqtt

import (
	"errors"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (d dummyToken) Error() error { return d.err }

type dummyMessage struct {
	topic   string
	payload []byte
}

func (m dummyMessage) Duplicate() bool   { return false }
func (m dummyMessage) Qos() byte         { return 0 }
func (m dummyMessage) Retained() bool    { return false }
func (m dummyMessage) Topic() string     { return m.topic }
func (m dummyMessage) MessageID() uint16 { return 0 }
func (m dummyMessage) Payload() []byte   { return m.payload }
func (m dummyMessage) Ack()              {}

// mockClient implements paho.Client. The first failConnects calls to
// Connect and the first failSubscribes calls to Subscribe fail.
type mockClient struct {
	opts *paho.ClientOptions

	mu             sync.Mutex
	failConnects   int
	failSubscribes int
	connects       int
	connected      bool
	disconnects    int
	subscribed     []string
	handler        paho.MessageHandler
	published      []dummyMessage
}

func (m *mockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockClient) IsConnectionOpen() bool { return m.IsConnected() }

func (m *mockClient) Connect() paho.Token {
	m.mu.Lock()
	m.connects++
	if m.failConnects > 0 {
		m.failConnects--
		m.mu.Unlock()
		return dummyToken{err: errors.New("connection refused")}
	}
	m.connected = true
	m.mu.Unlock()
	if m.opts != nil && m.opts.OnConnect != nil {
		go m.opts.OnConnect(m)
	}
	return dummyToken{}
}

func (m *mockClient) Disconnect(uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	m.disconnects++
}

// drop simulates a broken connection.
func (m *mockClient) drop(err error) {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	m.opts.OnConnectionLost(m, err)
}

func (m *mockClient) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, _ := payload.([]byte)
	m.published = append(m.published, dummyMessage{topic: topic, payload: b})
	return dummyToken{}
}

func (m *mockClient) Subscribe(topic string, _ byte, cb paho.MessageHandler) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribed = append(m.subscribed, topic)
	if m.failSubscribes > 0 {
		m.failSubscribes--
		return dummyToken{err: errors.New("not authorized")}
	}
	m.handler = cb
	return dummyToken{}
}

func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return dummyToken{}
}

func (m *mockClient) Unsubscribe(...string) paho.Token        { return dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) counts() (connects, subscribes, disconnects int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connects, len(m.subscribed), m.disconnects
}

// useMock swaps the client constructor for the duration of the test.
func useMock(t interface{ Cleanup(func()) }, mc *mockClient) {
	prev := newMQTTClient
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = prev })
}
