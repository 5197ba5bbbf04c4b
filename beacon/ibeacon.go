package beacon

const iBeaconLen = 25

// IBeaconPayload is an Apple iBeacon proximity advertisement.
type IBeaconPayload struct {
	UUID  string
	Major uint16
	Minor uint16
	// Power is the calibrated rssi at 1m.
	Power int8
}

func (p *IBeaconPayload) Kind() Kind { return IBeacon }
func (p *IBeaconPayload) isPayload() {}

func (p *IBeaconPayload) Fields(rssi int) Fields {
	return Fields{}.
		Add("uuid", p.UUID).
		Add("major", p.Major).
		Add("minor", p.Minor).
		Add("power", p.Power).
		Add("rssi", rssi)
}

func isIBeacon(adv *Advertisement) bool {
	return len(adv.ManufacturerData) == iBeaconLen && adv.HasManufacturerPrefix(0x4C, 0x00, 0x02, 0x15)
}

func decodeIBeacon(adv *Advertisement, prev Payload) (Payload, error) {
	p := copyOf[IBeaconPayload](prev)
	b := adv.ManufacturerData
	uuid, ok := window(b, 4, 16)
	if !ok || len(b) != iBeaconLen {
		return p, truncated("ibeacon: %d bytes", len(b))
	}
	p.UUID = formatUUID(uuid)
	p.Major, _ = uint16BE(b, 20)
	p.Minor, _ = uint16BE(b, 22)
	p.Power, _ = int8At(b, 24)
	return p, nil
}
