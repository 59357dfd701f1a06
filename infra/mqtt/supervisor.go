package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/solarcharger/core/charger"
	"github.com/kilianp07/solarcharger/infra/logger"
	"github.com/kilianp07/solarcharger/internal/eventbus"
)

// RetryDelay is the fixed wait between connection attempts.
const RetryDelay = 15 * time.Second

// errSubscribe marks a session dropped because the topic could not be
// subscribed.
var errSubscribe = errors.New("subscribe failed")

// DefaultQueueSize bounds the inbound message queue.
const DefaultQueueSize = 64

// ConnectionState of the broker connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// StateChange is published on every connection state transition.
type StateChange struct {
	State ConnectionState
	Time  time.Time
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Supervisor owns the broker connection: it connects, subscribes the
// configured topic on every connect and retries forever every RetryDelay.
// Received messages are queued for a single consumer.
type Supervisor struct {
	cfg        Config
	cli        pahoClient
	log        logger.Logger
	events     *eventbus.TypedBus[StateChange]
	queue      chan charger.Message
	lost       chan error
	retryDelay time.Duration

	mu    sync.Mutex
	state ConnectionState
}

// NewSupervisor prepares the client. No connection is attempted before Run.
// events may be nil.
func NewSupervisor(cfg Config, events *eventbus.TypedBus[StateChange], queueSize int) (*Supervisor, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	s := &Supervisor{
		cfg:        cfg,
		log:        logger.New("mqtt_client"),
		events:     events,
		queue:      make(chan charger.Message, queueSize),
		lost:       make(chan error, 1),
		retryDelay: RetryDelay,
	}
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(s.onConnectionLost)
	s.cli = newMQTTClient(opts)
	return s, nil
}

// Messages returns the inbound queue.
func (s *Supervisor) Messages() <-chan charger.Message { return s.queue }

// State returns the current connection state.
func (s *Supervisor) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run keeps the connection alive until ctx is done. Transport errors never
// escape; Run only returns when ctx ends.
func (s *Supervisor) Run(ctx context.Context) error {
	defer func() {
		if s.cli.IsConnected() {
			s.cli.Disconnect(250)
		}
		s.setState(Disconnected)
	}()
	for {
		s.setState(Connecting)
		s.log.Infof("Connecting to broker %s", s.cfg.Address())
		if err := s.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.setState(Disconnected)
			s.log.Errorf("Error in connecting to broker (%s): %v", s.cfg.Address(), err)
			s.log.Errorf("Retrying in %s", s.retryDelay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.retryDelay):
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case err := <-s.lost:
			s.log.Warnf("Got disconnected: %v", err)
			if errors.Is(err, errSubscribe) {
				s.log.Errorf("Retrying in %s", s.retryDelay)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(s.retryDelay):
				}
			}
			s.log.Warnf("Trying to reconnect to broker %s", s.cfg.Address())
		}
	}
}

func (s *Supervisor) connect(ctx context.Context) error {
	// drop a loss notification left over from the previous session
	select {
	case <-s.lost:
	default:
	}
	tok := s.cli.Connect()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return tok.Error()
}

// onConnect subscribes the topic. Connected is only reported once the
// subscription holds; a failed subscribe ends the session so Run starts over.
func (s *Supervisor) onConnect(c paho.Client) {
	s.log.Infof("Connected to MQTT broker!")
	if tok := c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.onMessage); tok.Wait() && tok.Error() != nil {
		s.log.Errorf("subscribe %s: %v", s.cfg.Topic, tok.Error())
		c.Disconnect(250)
		s.dropSession(fmt.Errorf("%w: %s: %v", errSubscribe, s.cfg.Topic, tok.Error()))
		return
	}
	s.setState(Connected)
	s.log.Infof("Subscribed to topic %s", s.cfg.Topic)
}

func (s *Supervisor) onConnectionLost(_ paho.Client, err error) {
	if err == nil {
		err = errors.New("connection closed")
	}
	s.dropSession(err)
}

func (s *Supervisor) dropSession(err error) {
	s.setState(Disconnected)
	select {
	case s.lost <- err:
	default:
	}
}

func (s *Supervisor) onMessage(_ paho.Client, msg paho.Message) {
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())
	m := charger.Message{Topic: msg.Topic(), Payload: payload, Received: time.Now()}
	select {
	case s.queue <- m:
	default:
		s.log.Warnf("message queue full, dropping message on %s", msg.Topic())
	}
}

func (s *Supervisor) setState(st ConnectionState) {
	s.mu.Lock()
	changed := s.state != st
	s.state = st
	s.mu.Unlock()
	if changed && s.events != nil {
		s.events.Publish(StateChange{State: st, Time: time.Now()})
	}
}
