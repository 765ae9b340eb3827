package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/gridshift/carbonsched/core/catalog"
	"github.com/gridshift/carbonsched/infra/logger"
)

// Announcer publishes flexibility slot lifecycle events to an MQTT
// broker so external aggregators can discover and book slots.
type Announcer struct {
	cli     pahoClient
	prefix  string
	qos     byte
	retries int
	backoff time.Duration
	log     logger.Logger
}

// NewAnnouncer connects to the MQTT broker. It returns an error when
// the broker is unreachable; callers typically fall back to the no-op
// announcer.
func NewAnnouncer(cfg Config) (*Announcer, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("slot-announcer")
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected to %s", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("MQTT connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &Announcer{
		cli:     cli,
		prefix:  cfg.TopicPrefix,
		qos:     cfg.QoS,
		retries: cfg.MaxRetries,
		backoff: time.Duration(cfg.BackoffMS) * time.Millisecond,
		log:     log,
	}, nil
}

// Announce publishes the event as JSON on <prefix>/<region>/<type>.
// Transient publish failures are retried with exponential backoff.
func (a *Announcer) Announce(ctx context.Context, e catalog.SlotEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode slot event: %w", err)
	}
	topic := fmt.Sprintf("%s/%s/%s", a.prefix, e.Slot.Region, e.Type)

	var publishErr error
	for attempt := 0; attempt <= a.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(a.backoff * time.Duration(1<<(attempt-1))):
			}
		}
		token := a.cli.Publish(topic, a.qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			a.log.Debugf("announced %s for slot %s on %s", e.Type, e.Slot.ID, topic)
			return nil
		}
		a.log.Warnf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
	}
	return fmt.Errorf("announce %s: %w", topic, publishErr)
}

// Close gracefully disconnects from the broker.
func (a *Announcer) Close() {
	if a.cli != nil && a.cli.IsConnected() {
		a.cli.Disconnect(250)
	}
}
