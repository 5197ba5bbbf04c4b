package beacon

// BTHome v2 https://bthome.io/format/

const (
	bthomeMin       = 9
	bthomeEncrypted = 0x01
)

// BTHomeReading holds the measurements carried by a BTHome v2 service data
// section. Values are scaled to their natural units.
type BTHomeReading struct {
	PacketID    *uint8
	Battery     *uint8
	Temperature *float64
	Humidity    *float64
	Illuminance *float64
	Voltage     *float64
	Power       *bool
	Window      *uint8
	Button      *uint8
	Rotation    *float64
}

// object id -> value size
var bthomeSizes = map[byte]int{
	0x00: 1, 0x01: 1, 0x02: 2, 0x03: 2, 0x05: 3, 0x0C: 2,
	0x10: 1, 0x2D: 1, 0x2E: 1, 0x3A: 1, 0x3F: 2, 0x45: 2,
}

func (r *BTHomeReading) fields(f Fields) Fields {
	f = opt(f, "packet_id", r.PacketID)
	f = opt(f, "battery", r.Battery)
	f = opt(f, "temp", r.Temperature)
	f = opt(f, "humidity", r.Humidity)
	f = opt(f, "illuminance", r.Illuminance)
	f = opt(f, "voltage", r.Voltage)
	f = opt(f, "power", r.Power)
	f = opt(f, "window", r.Window)
	f = opt(f, "button", r.Button)
	f = opt(f, "rotation", r.Rotation)
	return f
}

// decode walks the object list following the device info byte. Objects
// carry no length so an unknown id ends the walk.
func (r *BTHomeReading) decode(data []byte) error {
	if len(data) < bthomeMin {
		return truncated("bthome: %d bytes", len(data))
	}
	info := data[2]
	if info&bthomeEncrypted != 0 {
		return unknownSubtype("bthome: encrypted payload")
	}
	offset := data[3:]
	for len(offset) > 0 {
		datatype := offset[0]
		length, ok := bthomeSizes[datatype]
		if !ok {
			return unknownSubtype("bthome object id 0x%02X", datatype)
		}
		v, ok := window(offset, 1, length)
		if !ok {
			return malformed("bthome object 0x%02X needs %d bytes, %d remain", datatype, length, len(offset)-1)
		}
		switch datatype {
		case 0x00: // packet id
			r.PacketID = ptr(v[0])
		case 0x01: // battery %
			r.Battery = ptr(v[0])
		case 0x02: // temp
			t, _ := int16LE(v, 0)
			r.Temperature = ptr(float64(t) / 100)
		case 0x03: // humidity
			h, _ := uint16LE(v, 0)
			r.Humidity = ptr(float64(h) / 100)
		case 0x05: // illuminance
			lx, _ := uint24LE(v, 0)
			r.Illuminance = ptr(float64(lx) / 100)
		case 0x0C: // voltage
			mv, _ := uint16LE(v, 0)
			r.Voltage = ptr(float64(mv) / 1000)
		case 0x10: // power
			r.Power = ptr(v[0] != 0)
		case 0x2D: // window
			r.Window = ptr(v[0])
		case 0x2E: // humidity, 1%
			r.Humidity = ptr(float64(v[0]))
		case 0x3A: // button event
			r.Button = ptr(v[0])
		case 0x3F: // rotation
			d, _ := int16LE(v, 0)
			r.Rotation = ptr(float64(d) / 10)
		case 0x45: // temp, 0.1C
			t, _ := int16LE(v, 0)
			r.Temperature = ptr(float64(t) / 10)
		}
		offset = offset[length+1:]
	}
	return nil
}

// BTHomePayload is a generic BTHome v2 sensor.
type BTHomePayload struct {
	BTHomeReading
}

func (p *BTHomePayload) Kind() Kind { return BTHome }
func (p *BTHomePayload) isPayload() {}

func (p *BTHomePayload) Fields(rssi int) Fields {
	return p.fields(Fields{}).Add("rssi", rssi)
}

func isBTHome(adv *Advertisement) bool {
	return len(adv.ServiceDataWithPrefix(0xD2, 0xFC)) > 3
}

func decodeBTHome(adv *Advertisement, prev Payload) (Payload, error) {
	p := copyOf[BTHomePayload](prev)
	err := p.decode(adv.ServiceDataWithPrefix(0xD2, 0xFC))
	return p, err
}
