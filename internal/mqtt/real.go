package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/pir-presets/internal/motion"
)

// DefaultBufferSize is the number of messages kept while disconnected.
const DefaultBufferSize = 100

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Topics     Topics
	BufferSize int
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics

	mu        sync.Mutex
	outbox    *outbox
	connected bool
	replaying bool // live publishes queue behind the outbox until replay ends
	connects  int
	onEnable  func(bool)
}

// NewRealPublisher creates a publisher for the given broker. Connection is
// established in the background and retried until it succeeds.
func NewRealPublisher(opts Options) *RealPublisher {
	if opts.ClientID == "" {
		opts.ClientID = "pir-presets"
	}
	p := newPublisher(opts)

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(opts.Topics.System, will, 1, true).
		SetOnConnectHandler(p.handleConnect).
		SetConnectionLostHandler(p.handleConnectionLost)

	p.client = paho.NewClient(co)
	p.client.Connect()
	return p
}

// newPublisher creates a disconnected publisher without a client.
func newPublisher(opts Options) *RealPublisher {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	return &RealPublisher{
		topics: opts.Topics,
		outbox: newOutbox(opts.BufferSize),
	}
}

// OnEnable registers fn to be called for every motion sensing command
// received on the set topic. Must be called before the first connection
// completes to catch retained commands.
func (p *RealPublisher) OnEnable(fn func(bool)) {
	p.mu.Lock()
	p.onEnable = fn
	connected := p.connected
	p.mu.Unlock()

	if connected {
		p.subscribe()
	}
}

func (p *RealPublisher) subscribe() {
	p.mu.Lock()
	fn := p.onEnable
	p.mu.Unlock()
	if fn == nil {
		return
	}

	token := p.client.Subscribe(p.topics.Set, 1, func(_ paho.Client, msg paho.Message) {
		on, err := ParseEnable(msg.Payload())
		if err != nil {
			log.Warn().Err(err).Str("topic", msg.Topic()).Msg("mqtt: ignoring command")
			return
		}
		log.Info().Bool("enabled", on).Msg("mqtt: motion sensing command")
		fn(on)
	})
	if !token.WaitTimeout(5 * time.Second) {
		log.Error().Str("topic", p.topics.Set).Msg("mqtt: subscribe timeout")
		return
	}
	if err := token.Error(); err != nil {
		log.Error().Err(err).Str("topic", p.topics.Set).Msg("mqtt: subscribe failed")
	}
}

func (p *RealPublisher) handleConnect(_ paho.Client) {
	p.mu.Lock()
	p.connected = true
	p.replaying = true
	p.connects++
	reconnect := p.connects > 1
	p.mu.Unlock()

	sent, dropped := p.replay()
	log.Info().
		Bool("reconnect", reconnect).
		Int("replayed", sent).
		Int("dropped", dropped).
		Msg("mqtt: connected")

	p.subscribe()

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		m := bufferedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: true, latestOnly: true}
		if err := p.publish(m); err != nil {
			log.Error().Err(err).Msg("mqtt: publish reconnected event failed")
		}
	}
}

// replay sends the outbox oldest first, including anything queued while the
// replay runs, then lets live publishes through. If the connection drops
// mid-replay the unsent messages go back to the front of the outbox.
func (p *RealPublisher) replay() (sent, dropped int) {
	for {
		p.mu.Lock()
		pending, d := p.outbox.drain()
		dropped += d
		if len(pending) == 0 || !p.connected {
			p.outbox.requeue(pending)
			p.replaying = false
			p.mu.Unlock()
			return sent, dropped
		}
		p.mu.Unlock()

		for i, m := range pending {
			if !p.IsConnected() {
				p.mu.Lock()
				p.outbox.requeue(pending[i:])
				p.replaying = false
				p.mu.Unlock()
				return sent, dropped
			}
			if err := p.send(m); err != nil {
				log.Error().Err(err).Str("topic", m.topic).Msg("mqtt: replay failed")
				continue
			}
			sent++
		}
	}
}

func (p *RealPublisher) handleConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	log.Warn().Err(err).Msg("mqtt: connection lost")
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// publish sends m now, or buffers it while disconnected or replaying.
func (p *RealPublisher) publish(m bufferedMsg) error {
	p.mu.Lock()
	if !p.connected || p.replaying {
		p.outbox.push(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.send(m)
}

func (p *RealPublisher) send(m bufferedMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	return nil
}

// Publish sends a preset transition to the MQTT broker.
func (p *RealPublisher) Publish(tr motion.Transition) error {
	payload, err := FormatPayload(tr)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: p.topics.Events, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	return p.publish(bufferedMsg{
		topic:      p.topics.System,
		payload:    payload,
		qos:        1,
		retained:   event.Retained,
		latestOnly: event.Retained,
	})
}

// PublishCommand sends a preset command to the WLED device API topic.
// Does nothing when no WLED topic is configured.
func (p *RealPublisher) PublishCommand(preset motion.Preset) error {
	if p.topics.WLEDAPI == "" {
		return nil
	}
	// Only the newest preset matters after an outage.
	return p.publish(bufferedMsg{topic: p.topics.WLEDAPI, payload: FormatCommand(preset), latestOnly: true})
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
