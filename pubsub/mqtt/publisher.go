package mqtt

import (
	"log/slog"
	"time"

	"github.com/barnybug/gobeacon/pubsub"
)

const publishTimeout = 5 * time.Second

// Publisher for mqtt
type Publisher struct {
	broker *Broker
}

func (pub *Publisher) ID() string {
	return pub.broker.ID()
}

// Emit publishes the event at QoS 1 and waits for the broker to accept it.
func (pub *Publisher) Emit(ev *pubsub.Event) {
	topic := pub.broker.prefix + ev.Topic
	token := pub.broker.client.Publish(topic, 1, ev.Retained, ev.Bytes())
	if !token.WaitTimeout(publishTimeout) {
		slog.Error("mqtt publish timed out", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		slog.Error("mqtt publish failed", "topic", topic, "error", err)
	}
}
