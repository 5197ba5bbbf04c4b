package beacon

// Kontakt.io telemetry tags.
const (
	kontaktTelemetry = 0x03

	kontaktHealth = 0x01
	kontaktAccel  = 0x02
	kontaktLight  = 0x05
	kontaktButton = 0x0D
)

// KontaktPayload is a Kontakt.io telemetry frame. Each record may carry any
// subset of tags, so every value is optional.
type KontaktPayload struct {
	Battery     *uint8
	Temperature *int8
	Light       *uint8
	// Button is seconds since the last press.
	Button *uint16

	Sensitivity *uint8
	X, Y, Z     *int8
	// DoubleTap and Movement are seconds since the last event.
	DoubleTap *uint16
	Movement  *uint16
}

func (p *KontaktPayload) Kind() Kind { return Kontakt }
func (p *KontaktPayload) isPayload() {}

func (p *KontaktPayload) Fields(rssi int) Fields {
	var f Fields
	f = opt(f, "batt", p.Battery)
	f = opt(f, "temp", p.Temperature)
	f = opt(f, "light", p.Light)
	f = opt(f, "button", p.Button)
	f = opt(f, "x_axis", p.X)
	f = opt(f, "y_axis", p.Y)
	f = opt(f, "z_axis", p.Z)
	f = opt(f, "sensitivity", p.Sensitivity)
	f = opt(f, "double_tap", p.DoubleTap)
	f = opt(f, "movement", p.Movement)
	return f.Add("rssi", rssi)
}

func isKontakt(adv *Advertisement) bool {
	return len(adv.ServiceDataWithPrefix(0x6A, 0xFE)) > 3
}

// decodeKontakt walks (size, tag, value) records; size counts the tag
// byte and the value. Unknown tags are skipped by size.
func decodeKontakt(adv *Advertisement, prev Payload) (Payload, error) {
	p := copyOf[KontaktPayload](prev)
	b := adv.ServiceDataWithPrefix(0x6A, 0xFE)
	frame, ok := uint8At(b, 2)
	if !ok {
		return p, truncated("kontakt: %d bytes", len(b))
	}
	if frame != kontaktTelemetry {
		return p, unknownSubtype("kontakt frame 0x%02X", frame)
	}
	for i := 3; i < len(b); {
		size := int(b[i])
		if size == 0 || i+1+size > len(b) {
			return p, malformed("kontakt record at %d size %d, %d remain", i, size, len(b)-i-1)
		}
		tag := b[i+1]
		v := b[i+2 : i+1+size]
		i += 1 + size
		switch tag {
		case kontaktHealth:
			batt, ok := uint8At(v, 4)
			if !ok {
				return p, malformed("kontakt health %d bytes", len(v))
			}
			p.Battery = ptr(batt)
		case kontaktAccel:
			if len(v) < 8 {
				return p, malformed("kontakt accelerometer %d bytes", len(v))
			}
			p.Sensitivity = ptr(v[0])
			p.X = ptr(int8(v[1]))
			p.Y = ptr(int8(v[2]))
			p.Z = ptr(int8(v[3]))
			dt, _ := uint16LE(v, 4)
			mv, _ := uint16LE(v, 6)
			p.DoubleTap = ptr(dt)
			p.Movement = ptr(mv)
		case kontaktLight:
			if len(v) < 2 {
				return p, malformed("kontakt light %d bytes", len(v))
			}
			p.Light = ptr(v[0])
			p.Temperature = ptr(int8(v[1]))
		case kontaktButton:
			s, ok := uint16LE(v, 0)
			if !ok {
				return p, malformed("kontakt button %d bytes", len(v))
			}
			p.Button = ptr(s)
		}
	}
	return p, nil
}
