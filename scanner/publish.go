package scanner

import (
	"fmt"
	"log/slog"

	"github.com/barnybug/gobeacon/beacon"
	"github.com/barnybug/gobeacon/pubsub"
)

// nonSaverBudget is the byte budget a registry may grow to before it is
// published mid scan when memory saver is off.
const nonSaverBudget = 5000

// jsonSize estimates the serialized size of one record of a kind.
func jsonSize(k beacon.Kind) int {
	switch k {
	case beacon.IBeacon:
		return 119
	case beacon.Kontakt:
		return 93
	case beacon.Eddystone:
		return 260
	}
	return 100
}

// ChunkSize is the number of records of a kind published per batch.
func ChunkSize(k beacon.Kind, chunkBytes int) int {
	n := chunkBytes / jsonSize(k)
	if n < 1 {
		n = 1
	}
	return n
}

// Topic of a kind's published batches.
func (s *Scanner) Topic(k beacon.Kind) string {
	return fmt.Sprintf("%s-%s", s.opts.Event, k)
}

// Publish drains the requested registries to sink, one chunk per event.
func (s *Scanner) Publish(sink Sink, kinds beacon.KindSet) {
	for _, k := range kinds.Kinds() {
		for s.registries[k].Len() > 0 {
			s.publishChunk(sink, k)
		}
	}
}

// publishFull publishes one chunk of each registry that outgrew its limit.
func (s *Scanner) publishFull(sink Sink) {
	for _, k := range s.opts.Kinds.Kinds() {
		limit := ChunkSize(k, s.opts.Chunk)
		if !s.opts.MemorySaver {
			limit = ChunkSize(k, nonSaverBudget)
		}
		if s.registries[k].Len() >= limit {
			recs := s.publishChunk(sink, k)
			s.mu.Lock()
			if s.published[k] == nil {
				s.published[k] = map[beacon.Address]bool{}
			}
			for _, rec := range recs {
				s.published[k][rec.Address] = true
			}
			s.mu.Unlock()
		}
	}
}

func (s *Scanner) publishChunk(sink Sink, k beacon.Kind) []beacon.Record {
	recs := s.registries[k].Drain(ChunkSize(k, s.opts.Chunk))
	fields := pubsub.Fields{}
	for i := range recs {
		if !s.accept(&recs[i]) {
			continue
		}
		fields[recs[i].Address.String()] = recs[i].Fields()
	}
	if len(fields) > 0 {
		sink.Emit(pubsub.NewEvent(s.Topic(k), fields))
	}
	return recs
}

func (s *Scanner) accept(rec *beacon.Record) bool {
	if s.filter == nil {
		return true
	}
	result, err := s.filter.Evaluate(rec.Map())
	if err != nil {
		slog.Debug("Filter failed", "addr", rec.Address, "kind", rec.Kind, "error", err)
		return false
	}
	ok, _ := result.(bool)
	return ok
}
