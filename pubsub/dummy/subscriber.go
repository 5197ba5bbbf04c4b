package dummy

import "github.com/barnybug/gobeacon/pubsub"

// Subscriber replays Events to each subscription, for testing.
type Subscriber struct {
	subscriptions []pubsub.Topic
	Events        []*pubsub.Event
}

func (sub *Subscriber) ID() string {
	return "dummy"
}

func (sub *Subscriber) replayEvents() <-chan *pubsub.Event {
	ch := make(chan *pubsub.Event)
	go func() {
		for _, ev := range sub.Events {
			if pubsub.MatchAny(sub.subscriptions, ev.Topic) {
				ch <- ev
			}
		}
		close(ch)
	}()
	return ch
}

func (sub *Subscriber) Subscribe(topics ...pubsub.Topic) <-chan *pubsub.Event {
	sub.subscriptions = append(sub.subscriptions, topics...)
	return sub.replayEvents()
}

func (sub *Subscriber) Close(<-chan *pubsub.Event) {
}
