package beacon

import (
	"reflect"
	"sync"
	"time"
)

type EventType int

const (
	// Entered is raised once for each newly tracked beacon.
	Entered EventType = iota + 1
	// Left is raised when a beacon is aged out.
	Left
	// Device carries a format level notice, eg a sensor alarm.
	Device
)

func (t EventType) String() string {
	switch t {
	case Entered:
		return "entered"
	case Left:
		return "left"
	case Device:
		return "event"
	}
	return "unknown"
}

// Event is delivered to registry observers. Record is a snapshot taken
// when the event was raised.
type Event struct {
	Type   EventType
	Record Record
	Detail string
}

// Observer receives registry events. Observers are called after the
// registry lock is released and may call back into the registry.
type Observer func(Event)

// Registry tracks the beacons of one format by address. All operations are
// atomic with respect to each other.
type Registry struct {
	kind      Kind
	mu        sync.Mutex
	records   []*Record
	observers []Observer
	now       func() time.Time
	// scan numbers the current scan period; see NextScan.
	scan uint64
}

func NewRegistry(kind Kind) *Registry {
	return &Registry{kind: kind, now: time.Now}
}

func (r *Registry) Kind() Kind {
	return r.kind
}

// Observe subscribes to entered, left and device events.
func (r *Registry) Observe(o Observer) {
	r.mu.Lock()
	r.observers = append(r.observers, o)
	r.mu.Unlock()
}

// NextScan starts a new scan period. A record sighted again within the
// period it was inserted in keeps its newly flag, so a beacon heard several
// times before the next NotifyNew still raises Entered.
func (r *Registry) NextScan() {
	r.mu.Lock()
	r.scan++
	r.mu.Unlock()
}

func (r *Registry) dispatch(observers []Observer, events []Event) {
	for _, ev := range events {
		for _, o := range observers {
			o(ev)
		}
	}
}

// unlock releases the lock then delivers events.
func (r *Registry) unlock(events []Event) {
	observers := r.observers
	r.mu.Unlock()
	r.dispatch(observers, events)
}

func (r *Registry) find(addr Address) int {
	for i, rec := range r.records {
		if rec.Address == addr {
			return i
		}
	}
	return -1
}

// AddOrUpdate decodes adv on top of the existing record for its address,
// or inserts a new record. The decode error is returned for logging; when
// it is a discard error the registry is left untouched.
func (r *Registry) AddOrUpdate(adv *Advertisement, decode DecodeFunc) (created bool, err error) {
	r.mu.Lock()
	var events []Event
	defer func() { r.unlock(events) }()

	i := r.find(adv.Address)
	var prev Payload
	if i >= 0 {
		prev = r.records[i].Payload
	}
	payload, err := decode(adv, prev)
	if IsDiscard(err) || payload == nil {
		return false, err
	}
	if i < 0 && err != nil && decodedNothing(payload) {
		return false, err
	}

	var rec *Record
	if i < 0 {
		rec = &Record{Address: adv.Address, Kind: r.kind, Newly: true, scan: r.scan}
		r.records = append(r.records, rec)
		created = true
	} else {
		rec = r.records[i]
		if rec.scan != r.scan {
			rec.Newly = false
		}
		rec.scan = r.scan
	}
	rec.Payload = payload
	rec.Missed = 0
	rec.Seen = r.now()
	rec.addRSSI(adv.RSSI)

	if d, ok := payload.(deviceEventer); ok {
		for _, detail := range d.deviceEvents(prev) {
			events = append(events, Event{Type: Device, Record: *rec, Detail: detail})
		}
	}
	return created, err
}

// NotifyNew raises Entered for each record inserted since the last call
// and clears its flag. Run it before AgeAndPrune in each cycle.
func (r *Registry) NotifyNew() []Event {
	r.mu.Lock()
	var events []Event
	for _, rec := range r.records {
		if rec.Newly {
			rec.Newly = false
			events = append(events, Event{Type: Entered, Record: *rec})
		}
	}
	r.unlock(events)
	return events
}

// AgeAndPrune counts a missed scan against every record. Records that had
// already missed threshold scans raise Left and are removed.
func (r *Registry) AgeAndPrune(threshold int) []Event {
	if threshold < 1 {
		threshold = 1
	}
	r.mu.Lock()
	var events []Event
	for _, rec := range r.records {
		if rec.Missed == missedRemoved {
			continue
		}
		if rec.Missed >= threshold {
			rec.Missed = missedRemoved
			events = append(events, Event{Type: Left, Record: *rec})
		} else {
			rec.Missed++
		}
	}
	kept := r.records[:0]
	for _, rec := range r.records {
		if rec.Missed != missedRemoved {
			kept = append(kept, rec)
		}
	}
	for i := len(kept); i < len(r.records); i++ {
		r.records[i] = nil
	}
	r.records = kept
	r.unlock(events)
	return events
}

// Drain removes and returns up to max of the oldest records; max <= 0
// drains everything.
func (r *Registry) Drain(max int) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.records)
	if max > 0 && max < n {
		n = max
	}
	ret := make([]Record, n)
	for i := 0; i < n; i++ {
		ret[i] = *r.records[i]
	}
	rest := copy(r.records, r.records[n:])
	for i := rest; i < len(r.records); i++ {
		r.records[i] = nil
	}
	r.records = r.records[:rest]
	return ret
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Snapshot copies every record in insertion order.
func (r *Registry) Snapshot() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]Record, len(r.records))
	for i, rec := range r.records {
		ret[i] = *rec
	}
	return ret
}

func (r *Registry) Get(addr Address) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.find(addr); i >= 0 {
		return *r.records[i], true
	}
	return Record{}, false
}

func (r *Registry) Contains(addr Address) bool {
	_, ok := r.Get(addr)
	return ok
}

func (r *Registry) Clear() {
	r.mu.Lock()
	r.records = nil
	r.mu.Unlock()
}

// decodedNothing reports whether p serializes no more than an empty payload
// of the same format, ie only the rssi.
func decodedNothing(p Payload) bool {
	empty := reflect.New(reflect.TypeOf(p).Elem()).Interface().(Payload)
	return len(p.Fields(0)) <= len(empty.Fields(0))
}
