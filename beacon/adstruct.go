package beacon

// AD structure types we care about.
const (
	adShortName        = 0x08
	adCompleteName     = 0x09
	adServiceData16    = 0x16
	adManufacturerData = 0xFF
)

// ParseAdvertisingData builds an Advertisement from a raw advertising (or
// scan response) payload made of length/type/data structures.
//
// A zero length structure ends the payload. A structure that claims more
// bytes than remain stops the walk and returns what was decoded so far
// together with ErrTruncated.
func ParseAdvertisingData(addr Address, rssi int, raw []byte) (*Advertisement, error) {
	adv := &Advertisement{Address: addr, RSSI: rssi}
	for i := 0; i < len(raw); {
		l := int(raw[i])
		if l == 0 {
			break
		}
		if i+1+l > len(raw) {
			return adv, truncated("ad structure at %d claims %d bytes, %d remain", i, l, len(raw)-i-1)
		}
		typ := raw[i+1]
		data := raw[i+2 : i+1+l]
		switch typ {
		case adShortName, adCompleteName:
			if adv.LocalName == "" || typ == adCompleteName {
				adv.LocalName = string(data)
			}
		case adServiceData16:
			adv.ServiceData = append(adv.ServiceData, append([]byte(nil), data...))
		case adManufacturerData:
			adv.ManufacturerData = append([]byte(nil), data...)
		}
		i += 1 + l
	}
	return adv, nil
}
