package beacon

// Eddystone frame types, at offset 2 of the service data.
const (
	eddystoneUID = 0x00
	eddystoneURL = 0x10
	eddystoneTLM = 0x20
	eddystoneEID = 0x30
)

const (
	eddystoneUIDLen = 20
	eddystoneURLMin = 6
	eddystoneTLMLen = 16
	eddystoneEIDLen = 12
)

type EddystoneUID struct {
	Found     bool
	Power     int8
	Namespace string
	Instance  string
}

type EddystoneURL struct {
	Found bool
	Power int8
	URL   string
}

// EddystoneTLM is the unencrypted telemetry frame.
type EddystoneTLM struct {
	Found bool
	// Battery in mV, nil when the beacon reports 0 (not supported).
	Battery *uint16
	// Temperature in C, nil when the beacon reports 0x8000.
	Temperature *float64
	AdvCount    uint32
	// Uptime in 0.1s units since boot.
	Uptime uint32
}

type EddystoneEID struct {
	Found bool
	Power int8
	EID   string
}

// EddystonePayload holds the latest of each frame type seen from a beacon.
// Frames arrive in separate advertisements and accumulate.
type EddystonePayload struct {
	UID EddystoneUID
	URL EddystoneURL
	TLM EddystoneTLM
	EID EddystoneEID
}

func (p *EddystonePayload) Kind() Kind { return Eddystone }
func (p *EddystonePayload) isPayload() {}

func (p *EddystonePayload) Fields(rssi int) Fields {
	var f Fields
	if p.UID.Found {
		f = f.Add("uid", Fields{}.
			Add("power", p.UID.Power).
			Add("namespace", p.UID.Namespace).
			Add("instance", p.UID.Instance).
			Add("rssi", rssi))
	}
	if p.URL.Found {
		f = f.Add("url", Fields{}.
			Add("power", p.URL.Power).
			Add("url", p.URL.URL).
			Add("rssi", rssi))
	}
	if p.TLM.Found {
		tlm := opt(Fields{}, "vbatt", p.TLM.Battery)
		tlm = opt(tlm, "temp", p.TLM.Temperature)
		f = f.Add("tlm", tlm.
			Add("adv_cnt", p.TLM.AdvCount).
			Add("sec_cnt", p.TLM.Uptime))
	}
	if p.EID.Found {
		f = f.Add("eid", Fields{}.
			Add("power", p.EID.Power).
			Add("eid", p.EID.EID).
			Add("rssi", rssi))
	}
	if f == nil {
		f = Fields{}
	}
	return f
}

func isEddystone(adv *Advertisement) bool {
	return len(adv.ServiceDataWithPrefix(0xAA, 0xFE)) > 3
}

func decodeEddystone(adv *Advertisement, prev Payload) (Payload, error) {
	p := copyOf[EddystonePayload](prev)
	b := adv.ServiceDataWithPrefix(0xAA, 0xFE)
	frame, ok := uint8At(b, 2)
	if !ok {
		return p, truncated("eddystone: %d bytes", len(b))
	}
	switch frame {
	case eddystoneUID:
		if len(b) < eddystoneUIDLen {
			return p, truncated("eddystone uid: %d bytes", len(b))
		}
		p.UID = EddystoneUID{
			Found:     true,
			Power:     int8(b[3]),
			Namespace: hexUpper(b[4:14]),
			Instance:  hexUpper(b[14:20]),
		}
	case eddystoneURL:
		if len(b) < eddystoneURLMin {
			return p, truncated("eddystone url: %d bytes", len(b))
		}
		url, err := expandURL(b[4], b[5:])
		if err != nil {
			return p, err
		}
		p.URL = EddystoneURL{Found: true, Power: int8(b[3]), URL: url}
	case eddystoneTLM:
		if len(b) != eddystoneTLMLen {
			return p, truncated("eddystone tlm: %d bytes", len(b))
		}
		if b[3] != 0x00 {
			return p, unknownSubtype("eddystone tlm version 0x%02X", b[3])
		}
		tlm := EddystoneTLM{Found: true}
		if v, _ := uint16BE(b, 4); v != 0 {
			tlm.Battery = ptr(v)
		}
		if t, _ := int16BE(b, 6); uint16(t) != 0x8000 {
			tlm.Temperature = ptr(float64(t) / 256)
		}
		tlm.AdvCount, _ = uint32BE(b, 8)
		tlm.Uptime, _ = uint32BE(b, 12)
		p.TLM = tlm
	case eddystoneEID:
		if len(b) < eddystoneEIDLen {
			return p, truncated("eddystone eid: %d bytes", len(b))
		}
		p.EID = EddystoneEID{Found: true, Power: int8(b[3]), EID: hexUpper(b[4:12])}
	default:
		return p, unknownSubtype("eddystone frame 0x%02X", frame)
	}
	return p, nil
}
