package beacon

import "time"

// rssiWindow is the number of samples averaged before the running sum is
// folded back into a single sample.
const rssiWindow = 5

// missedRemoved marks a record for removal during an aging pass.
const missedRemoved = -1

// Payload is the decoded, format specific part of a record. Exactly one
// implementation exists per Kind.
type Payload interface {
	Kind() Kind
	// Fields serializes the decoded values together with the record's
	// averaged rssi, skipping anything not decoded.
	Fields(rssi int) Fields
	isPayload()
}

// deviceEventer is implemented by payloads that raise their own
// notifications when updated (eg a sensor's event log advancing).
type deviceEventer interface {
	deviceEvents(prev Payload) []string
}

// Record is the registry entry for one beacon address.
type Record struct {
	Address Address
	Kind    Kind
	Payload Payload
	// Newly is set on insertion and cleared once the entered event has
	// been raised, or when the beacon is scanned again in a later scan
	// period.
	Newly bool
	// Missed counts consecutive aging passes without a sighting; -1 means
	// marked for removal.
	Missed int
	Seen   time.Time

	rssiSum   int
	rssiCount int
	// scan period of the latest sighting
	scan uint64
}

// RSSI returns the rolling average signal strength.
func (r *Record) RSSI() int {
	if r.rssiCount == 0 {
		return 0
	}
	return r.rssiSum / r.rssiCount
}

func (r *Record) addRSSI(rssi int) {
	r.rssiSum += rssi
	r.rssiCount++
	if r.rssiCount >= rssiWindow {
		r.rssiSum = r.rssiSum / r.rssiCount
		r.rssiCount = 1
	}
}

// Fields serializes the record.
func (r *Record) Fields() Fields {
	if r.Payload == nil {
		return Fields{}.Add("rssi", r.RSSI())
	}
	return r.Payload.Fields(r.RSSI())
}

// Map flattens the record for expression evaluation and event fields.
func (r *Record) Map() map[string]interface{} {
	m := r.Fields().Flatten()
	m["address"] = r.Address.String()
	m["kind"] = r.Kind.String()
	m["missed"] = float64(r.Missed)
	return m
}

// copyOf starts a decode from the previous state of the same format, so
// fields absent from this advertisement keep their earlier values.
func copyOf[T any](prev Payload) *T {
	p := new(T)
	if q, ok := any(prev).(*T); ok && q != nil {
		*p = *q
	}
	return p
}
