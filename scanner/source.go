package scanner

import (
	"context"

	"github.com/barnybug/gobeacon/beacon"
	"github.com/barnybug/gobeacon/pubsub"
)

// Source hands over the advertisements heard by the radio. Collect blocks
// for at most one scan window and returns what was heard during it. When
// ctx ends the batch gathered so far is returned together with ctx's error.
type Source interface {
	Collect(ctx context.Context) ([]*beacon.Advertisement, error)
}

// SourceFunc adapts a function to a Source.
type SourceFunc func(ctx context.Context) ([]*beacon.Advertisement, error)

func (f SourceFunc) Collect(ctx context.Context) ([]*beacon.Advertisement, error) {
	return f(ctx)
}

// Sink receives published batches. pubsub.Publisher satisfies it.
type Sink interface {
	Emit(ev *pubsub.Event)
}
