package beacon

const (
	sgwName = "SGW8130"
	sgwLen  = 8
)

// SGWirelessPayload is an SG Wireless SGW8130 temperature/humidity tag.
type SGWirelessPayload struct {
	// Temperature in C.
	Temperature *float64
	// Humidity in %.
	Humidity *float64
	Battery  *uint8
}

func (p *SGWirelessPayload) Kind() Kind { return SGWireless }
func (p *SGWirelessPayload) isPayload() {}

// Fields uses the tag's compact names: s rssi, b battery, t temp, h humidity.
func (p *SGWirelessPayload) Fields(rssi int) Fields {
	f := Fields{}.Add("s", rssi)
	f = opt(f, "b", p.Battery)
	f = opt(f, "t", p.Temperature)
	f = opt(f, "h", p.Humidity)
	return f
}

func isSGWireless(adv *Advertisement) bool {
	return adv.LocalName == sgwName && adv.HasManufacturerPrefix(0x59, 0x00)
}

func decodeSGWireless(adv *Advertisement, prev Payload) (Payload, error) {
	p := copyOf[SGWirelessPayload](prev)
	b := adv.ManufacturerData
	if len(b) != sgwLen {
		return p, truncated("sgwireless: %d bytes", len(b))
	}
	p.Temperature, p.Humidity, p.Battery = nil, nil, nil
	if t, _ := uint16LE(b, 2); t != 0xFFFF {
		p.Temperature = ptr(float64(int16(t)) / 100)
	}
	if h, _ := uint16LE(b, 4); h != 0xFFFF {
		p.Humidity = ptr(float64(h) / 100)
	}
	if b[6] != 0xFF {
		p.Battery = ptr(b[6])
	}
	return p, nil
}
