package beacon

// Ruuvi data format 5 (RAWv2)
// https://docs.ruuvi.com/communication/bluetooth-advertisements/data-format-5-rawv2

const (
	ruuviFormat5 = 0x05
	ruuviLen     = 26
)

// RuuviPayload is a RuuviTag environmental reading. Values the tag marks as
// not available stay nil.
type RuuviPayload struct {
	// Temperature in C.
	Temperature *float64
	// Humidity in %.
	Humidity *float64
	// Pressure in Pa.
	Pressure *uint32
	// Acceleration in g.
	AccelX *float64
	AccelY *float64
	AccelZ *float64
	// Battery in V.
	Battery *float64
	// TxPower in dBm.
	TxPower  *int
	Movement *uint8
	Sequence *uint16
	MAC      string
}

func (p *RuuviPayload) Kind() Kind { return Ruuvi }
func (p *RuuviPayload) isPayload() {}

func (p *RuuviPayload) Fields(rssi int) Fields {
	var f Fields
	f = opt(f, "temperature", p.Temperature)
	f = opt(f, "humidity", p.Humidity)
	f = opt(f, "pressure", p.Pressure)
	f = opt(f, "acceleration_x", p.AccelX)
	f = opt(f, "acceleration_y", p.AccelY)
	f = opt(f, "acceleration_z", p.AccelZ)
	f = opt(f, "battery", p.Battery)
	f = opt(f, "tx_power", p.TxPower)
	f = opt(f, "movement", p.Movement)
	f = opt(f, "sequence", p.Sequence)
	if p.MAC != "" {
		f = f.Add("mac", p.MAC)
	}
	return f.Add("rssi", rssi)
}

func isRuuvi(adv *Advertisement) bool {
	return len(adv.ManufacturerData) > 3 && adv.HasManufacturerPrefix(0x99, 0x04)
}

func decodeRuuvi(adv *Advertisement, prev Payload) (Payload, error) {
	p := copyOf[RuuviPayload](prev)
	b := adv.ManufacturerData
	if format, ok := uint8At(b, 2); ok && format != ruuviFormat5 {
		return p, unknownSubtype("ruuvi data format %d", format)
	}
	if len(b) < ruuviLen {
		return p, truncated("ruuvi: %d bytes", len(b))
	}

	p.Temperature, p.Humidity, p.Pressure = nil, nil, nil
	if t, _ := int16BE(b, 3); uint16(t) != 0x8000 {
		p.Temperature = ptr(float64(t) * 0.005)
	}
	if h, _ := uint16BE(b, 5); h != 0xFFFF {
		p.Humidity = ptr(float64(h) * 0.0025)
	}
	if pa, _ := uint16BE(b, 7); pa != 0xFFFF {
		p.Pressure = ptr(uint32(pa) + 50000)
	}
	p.AccelX = ruuviAccel(b, 9)
	p.AccelY = ruuviAccel(b, 11)
	p.AccelZ = ruuviAccel(b, 13)

	power, _ := uint16BE(b, 15)
	p.Battery, p.TxPower = nil, nil
	if mv := power >> 5; mv != 0x7FF {
		p.Battery = ptr(float64(mv+1600) / 1000)
	}
	if tx := int(power & 0x1F); tx != 0x1F {
		p.TxPower = ptr(tx*2 - 40)
	}
	p.Movement = nil
	if m := b[17]; m != 0xFF {
		p.Movement = ptr(m)
	}
	p.Sequence = nil
	if seq, _ := uint16BE(b, 18); seq != 0xFFFF {
		p.Sequence = ptr(seq)
	}
	p.MAC = formatMAC(b[20:26])
	return p, nil
}

func ruuviAccel(b []byte, off int) *float64 {
	a, _ := int16BE(b, off)
	if uint16(a) == 0x8000 {
		return nil
	}
	return ptr(float64(a) / 1000)
}
