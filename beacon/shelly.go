package beacon

// Shelly BLU manufacturer block tags, following the Allterco company id.
const (
	shellyFlags = 0x01
	shellyMAC   = 0x0A
	shellyModel = 0x0B
)

// ShellyPayload is a Shelly BLU device: BTHome measurements plus the
// device identity from the manufacturer block.
type ShellyPayload struct {
	BTHomeReading
	Flags *uint16
	MAC   *string
	Model *uint16
}

func (p *ShellyPayload) Kind() Kind { return Shelly }
func (p *ShellyPayload) isPayload() {}

func (p *ShellyPayload) Fields(rssi int) Fields {
	var f Fields
	f = opt(f, "model", p.Model)
	f = opt(f, "mac", p.MAC)
	f = opt(f, "flags", p.Flags)
	return p.fields(f).Add("rssi", rssi)
}

func isShelly(adv *Advertisement) bool {
	return isBTHome(adv) && adv.HasManufacturerPrefix(0xA9, 0x0B)
}

func decodeShelly(adv *Advertisement, prev Payload) (Payload, error) {
	p := copyOf[ShellyPayload](prev)
	err := p.decode(adv.ServiceDataWithPrefix(0xD2, 0xFC))
	if IsDiscard(err) {
		return p, err
	}
	if merr := p.decodeManufacturer(adv.ManufacturerData); err == nil {
		err = merr
	}
	return p, err
}

func (p *ShellyPayload) decodeManufacturer(b []byte) error {
	for i := 2; i < len(b); {
		tag := b[i]
		switch tag {
		case shellyFlags:
			v, ok := uint16LE(b, i+1)
			if !ok {
				return malformed("shelly flags at %d", i)
			}
			p.Flags = ptr(v)
			i += 3
		case shellyMAC:
			v, ok := window(b, i+1, 6)
			if !ok {
				return malformed("shelly mac at %d", i)
			}
			p.MAC = ptr(formatMAC(v))
			i += 7
		case shellyModel:
			v, ok := uint16LE(b, i+1)
			if !ok {
				return malformed("shelly model at %d", i)
			}
			p.Model = ptr(v)
			i += 3
		default:
			return unknownSubtype("shelly tag 0x%02X", tag)
		}
	}
	return nil
}
