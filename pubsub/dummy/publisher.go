package dummy

import (
	"sync"

	"github.com/barnybug/gobeacon/pubsub"
)

// Publisher records emitted events, for testing.
type Publisher struct {
	mu     sync.Mutex
	Events []*pubsub.Event
}

func (pub *Publisher) ID() string {
	return "dummy"
}

func (pub *Publisher) Emit(ev *pubsub.Event) {
	pub.mu.Lock()
	pub.Events = append(pub.Events, ev)
	pub.mu.Unlock()
}

// Topics lists the topics emitted so far, in order.
func (pub *Publisher) Topics() []string {
	pub.mu.Lock()
	defer pub.mu.Unlock()
	var ret []string
	for _, ev := range pub.Events {
		ret = append(ret, ev.Topic)
	}
	return ret
}
