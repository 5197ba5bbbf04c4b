package mqtt

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
)

// DefaultPrefix is prepended to every event topic on the wire.
const DefaultPrefix = "beacons/"

const connectTimeout = 10 * time.Second

type Broker struct {
	broker     string
	prefix     string
	client     MQTT.Client
	subscriber *Subscriber
}

func clientID(name string) string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("gobeacon/%s-%s-%d-%d", name, hostname, os.Getpid(), rand.Int())
}

// NewBroker connects to the mqtt server at url, eg tcp://127.0.0.1:1883.
func NewBroker(url, name string) (*Broker, error) {
	self := &Broker{broker: url, prefix: DefaultPrefix}
	self.subscriber = NewSubscriber(self)

	opts := MQTT.NewClientOptions()
	opts.AddBroker(url)
	opts.SetClientID(clientID(name))
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetDefaultPublishHandler(self.subscriber.publishHandler)
	opts.SetOnConnectHandler(self.subscriber.connectHandler)
	opts.SetConnectionLostHandler(func(_ MQTT.Client, err error) {
		slog.Warn("mqtt connection lost", "broker", url, "error", err)
	})

	self.client = MQTT.NewClient(opts)
	token := self.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errors.Errorf("mqtt connect to %s timed out", url)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "mqtt connect to %s", url)
	}
	slog.Info("mqtt connected", "broker", url)
	return self, nil
}

func (self *Broker) ID() string {
	return "mqtt: " + self.broker
}

func (self *Broker) Subscriber() *Subscriber {
	return self.subscriber
}

func (self *Broker) Publisher() *Publisher {
	return &Publisher{broker: self}
}

func (self *Broker) Close() {
	self.client.Disconnect(250)
}
