package mqtt

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/barnybug/gobeacon/pubsub"
	MQTT "github.com/eclipse/paho.mqtt.golang"
)

type eventChannel struct {
	C      chan *pubsub.Event
	topics []pubsub.Topic
}

// Subscriber fans mqtt messages out to channels by topic. Each mqtt
// subscription is reference counted across channels.
type Subscriber struct {
	broker         *Broker
	channels       []eventChannel
	channelsLock   sync.Mutex
	topicCount     map[string]int
	topicCountLock sync.RWMutex
}

func NewSubscriber(broker *Broker) *Subscriber {
	return &Subscriber{broker: broker, topicCount: map[string]int{}}
}

func (self *Subscriber) ID() string {
	return self.broker.ID()
}

func (self *Subscriber) publishHandler(client MQTT.Client, msg MQTT.Message) {
	topic := strings.TrimPrefix(msg.Topic(), self.broker.prefix)
	event := pubsub.Parse(string(msg.Payload()), topic)
	if event == nil {
		slog.Debug("unparseable message", "topic", msg.Topic())
		return
	}
	event.SetRetained(msg.Retained())
	self.channelsLock.Lock()
	for _, ch := range self.channels {
		if pubsub.MatchAny(ch.topics, topic) {
			ch.C <- event
		}
	}
	self.channelsLock.Unlock()
}

func (self *Subscriber) connectHandler(client MQTT.Client) {
	// (re)subscribe when (re)connected
	subs := map[string]byte{}
	self.topicCountLock.RLock()
	for topic := range self.topicCount {
		subs[topic] = 1 // QOS
	}
	self.topicCountLock.RUnlock()

	if len(subs) > 0 {
		slog.Info("connected, subscribing", "topics", len(subs))
		// nil = all messages go to the default handler
		if token := client.SubscribeMultiple(subs, nil); token.Wait() && token.Error() != nil {
			slog.Error("error subscribing", "error", token.Error())
		}
	}
}

func (self *Subscriber) topicToMqtt(topic pubsub.Topic) string {
	prefix := self.broker.prefix
	switch topic := topic.(type) {
	case *pubsub.AllTopic:
		return prefix + "#"
	case *pubsub.ExactTopic:
		return prefix + topic.Exact
	case *pubsub.PrefixTopic:
		return prefix + topic.Prefix + "/#"
	}
	slog.Warn("unsupported topic type, subscribing to all", "topic", topic)
	return prefix + "#"
}

func (self *Subscriber) addChannel(topics []pubsub.Topic) eventChannel {
	// subscribe topics not yet subscribed to
	subs := map[string]byte{}
	self.topicCountLock.Lock()
	for _, topic := range topics {
		t := self.topicToMqtt(topic)
		if _, exists := self.topicCount[t]; !exists {
			subs[t] = 1 // QOS
		}
		self.topicCount[t] += 1
	}
	self.topicCountLock.Unlock()

	ch := eventChannel{
		C:      make(chan *pubsub.Event, 16),
		topics: topics,
	}
	self.channelsLock.Lock()
	self.channels = append(self.channels, ch)
	self.channelsLock.Unlock()

	if len(subs) > 0 {
		if token := self.broker.client.SubscribeMultiple(subs, nil); token.Wait() && token.Error() != nil {
			slog.Error("error subscribing", "error", token.Error())
		}
	}
	return ch
}

func (self *Subscriber) Subscribe(topics ...pubsub.Topic) <-chan *pubsub.Event {
	return self.addChannel(topics).C
}

func (self *Subscriber) Close(channel <-chan *pubsub.Event) {
	var channels []eventChannel
	self.channelsLock.Lock()
	for _, ch := range self.channels {
		if channel != (<-chan *pubsub.Event)(ch.C) {
			channels = append(channels, ch)
			continue
		}
		for _, topic := range ch.topics {
			t := self.topicToMqtt(topic)
			self.topicCountLock.Lock()
			self.topicCount[t] -= 1
			current := self.topicCount[t]
			if current == 0 {
				delete(self.topicCount, t)
			}
			self.topicCountLock.Unlock()
			if current == 0 {
				if token := self.broker.client.Unsubscribe(t); token.Wait() && token.Error() != nil {
					slog.Error("error unsubscribing", "error", token.Error())
				}
			}
		}
		close(ch.C)
	}
	self.channels = channels
	self.channelsLock.Unlock()
}
