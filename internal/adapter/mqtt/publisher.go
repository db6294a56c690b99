// Package mqtt publishes entity states to Home Assistant through MQTT discovery.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/i474232898/easy-homey/internal/config"
	"github.com/i474232898/easy-homey/internal/entity"
)

const (
	payloadOnline  = "online"
	payloadOffline = "offline"

	// published for a missing value; HASS renders it as unknown
	payloadNone = "None"

	publishTimeout = 5 * time.Second
)

// publisher is the part of the paho client used to send messages.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

type subscriber interface {
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

type connector interface {
	IsConnected() bool
	Connect() paho.Token
}

// Publisher announces entities via discovery config topics and publishes
// their state, attributes and availability.
type Publisher struct {
	client   paho.Client
	pub      publisher
	clientID string
	prefix   string
	logger   *slog.Logger

	mu        sync.Mutex
	announced map[string]bool
}

// NewPublisher creates a publisher connected through a new paho client.
// Call Start to connect.
func NewPublisher(cfg config.MQTTConfig, logger *slog.Logger) *Publisher {
	p := newPublisher(nil, cfg.ClientID, cfg.DiscoveryPrefix, logger)

	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	// a clean session drops subscriptions, so every (re)connect subscribes again
	opts.SetOnConnectHandler(func(c paho.Client) { p.subscribeStatus(c) })

	client := paho.NewClient(opts)
	p.client = client
	p.pub = client
	return p
}

func newPublisher(pub publisher, clientID, prefix string, logger *slog.Logger) *Publisher {
	if prefix == "" {
		prefix = "homeassistant"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		pub:       pub,
		clientID:  clientID,
		prefix:    prefix,
		logger:    logger.With("component", "mqtt"),
		announced: make(map[string]bool),
	}
}

func (p *Publisher) Name() string { return "mqtt" }

// Start connects in the background, retrying until ctx is done. When Home
// Assistant comes back online every entity is announced again.
func (p *Publisher) Start(ctx context.Context) {
	if p.client == nil {
		return
	}
	go p.connect(ctx, p.client, 5*time.Second)
}

func (p *Publisher) connect(ctx context.Context, c connector, backoff time.Duration) {
	for !c.IsConnected() {
		tok := c.Connect()
		if !tok.WaitTimeout(time.Second) {
			p.logger.Warn("timeout connecting to MQTT broker, retrying")
		} else if err := tok.Error(); err != nil {
			p.logger.Warn("error connecting to MQTT broker", "error", err)
		} else {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func (p *Publisher) subscribeStatus(c subscriber) {
	tok := c.Subscribe(p.prefix+"/status", 0, func(_ paho.Client, m paho.Message) {
		p.logger.Info("home assistant status changed", "status", string(m.Payload()))
		if string(m.Payload()) == payloadOnline {
			p.mu.Lock()
			p.announced = make(map[string]bool)
			p.mu.Unlock()
		}
	})
	go func() {
		if tok.WaitTimeout(publishTimeout) && tok.Error() != nil {
			p.logger.Warn("subscribe to home assistant status failed", "error", tok.Error())
		}
	}()
}

// Publish sends states, announcing entities not seen before.
func (p *Publisher) Publish(_ context.Context, device entity.Device, states []entity.State) error {
	for _, st := range states {
		if err := p.announce(device, st); err != nil {
			return err
		}
		if err := p.send(p.topic(st.UniqueID, "availability"), false, availability(st.Available)); err != nil {
			return err
		}
		if err := p.send(p.topic(st.UniqueID, "state"), false, statePayload(st)); err != nil {
			return err
		}
		attrs, err := json.Marshal(st.Attributes)
		if err != nil {
			return fmt.Errorf("encode attributes of %s: %w", st.UniqueID, err)
		}
		if err := p.send(p.topic(st.UniqueID, "attributes"), false, attrs); err != nil {
			return err
		}
	}
	return nil
}

// Close marks all announced entities offline and disconnects.
func (p *Publisher) Close() error {
	p.mu.Lock()
	ids := make([]string, 0, len(p.announced))
	for id := range p.announced {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		if err := p.send(p.topic(id, "availability"), false, payloadOffline); err != nil {
			p.logger.Warn("failed to mark entity offline", "unique_id", id, "error", err)
		}
	}
	if p.client != nil {
		p.client.Disconnect(250)
	}
	return nil
}

func (p *Publisher) announce(device entity.Device, st entity.State) error {
	p.mu.Lock()
	done := p.announced[st.UniqueID]
	p.mu.Unlock()
	if done {
		return nil
	}

	data, err := json.Marshal(p.model(device, st))
	if err != nil {
		return fmt.Errorf("encode discovery config of %s: %w", st.UniqueID, err)
	}
	if err := p.send(p.configTopic(st), true, data); err != nil {
		return err
	}

	p.mu.Lock()
	p.announced[st.UniqueID] = true
	p.mu.Unlock()
	return nil
}

func (p *Publisher) model(device entity.Device, st entity.State) SensorModel {
	return SensorModel{
		EntityModel: EntityModel{
			Availability: []AvailabilityModel{{
				PayloadAvailable:    payloadOnline,
				PayloadNotAvailable: payloadOffline,
				Topic:               p.topic(st.UniqueID, "availability"),
			}},
			Device: &DeviceModel{
				Identifiers:  device.Identifiers,
				Manufacturer: device.Manufacturer,
				Model:        device.Model,
				Name:         device.Name,
			},
			DeviceClass:         st.DeviceClass,
			Icon:                st.Icon,
			JSONAttributesTopic: p.topic(st.UniqueID, "attributes"),
			Name:                st.Name,
			StateTopic:          p.topic(st.UniqueID, "state"),
			UniqueID:            st.UniqueID,
		},
		StateClass:        st.StateClass,
		UnitOfMeasurement: st.Unit,
	}
}

func (p *Publisher) configTopic(st entity.State) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", p.prefix, st.Platform, p.clientID, st.UniqueID)
}

func (p *Publisher) topic(uniqueID, kind string) string {
	return fmt.Sprintf("%s/%s/%s/%s", p.prefix, p.clientID, uniqueID, kind)
}

func (p *Publisher) send(topic string, retained bool, payload interface{}) error {
	tok := p.pub.Publish(topic, 1, retained, payload)
	if !tok.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func availability(ok bool) string {
	if ok {
		return payloadOnline
	}
	return payloadOffline
}

// statePayload renders the state the way the MQTT sensor platforms expect it.
func statePayload(st entity.State) string {
	switch v := st.Value.(type) {
	case nil:
		return payloadNone
	case bool:
		if v {
			return "ON"
		}
		return "OFF"
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprint(v)
	}
}
