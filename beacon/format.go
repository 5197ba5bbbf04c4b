package beacon

// MatchFunc decides whether an advertisement belongs to a format. It must
// not panic on short or malformed input.
type MatchFunc func(adv *Advertisement) bool

// DecodeFunc decodes an advertisement on top of the previous payload for
// the same address (nil on first sighting). It always returns a payload;
// when the error satisfies IsDiscard the payload must be ignored.
type DecodeFunc func(adv *Advertisement, prev Payload) (Payload, error)

// Format binds a kind to its matcher and decoder.
type Format struct {
	Kind   Kind
	Match  MatchFunc
	Decode DecodeFunc
}

// formats in priority order: the first match wins.
var formats = []Format{
	{IBeacon, isIBeacon, decodeIBeacon},
	{Kontakt, isKontakt, decodeKontakt},
	{Eddystone, isEddystone, decodeEddystone},
	{LairdBT510, isLaird, decodeLaird},
	{Shelly, isShelly, decodeShelly},
	{BTHome, isBTHome, decodeBTHome},
	{Ruuvi, isRuuvi, decodeRuuvi},
	{SGWireless, isSGWireless, decodeSGWireless},
}

// Formats returns the format table in priority order.
func Formats() []Format {
	return append([]Format(nil), formats...)
}

// FormatOf returns the format for a kind.
func FormatOf(k Kind) (Format, bool) {
	for _, f := range formats {
		if f.Kind == k {
			return f, true
		}
	}
	return Format{}, false
}

// Match returns the first enabled format claiming the advertisement.
func Match(adv *Advertisement, enabled KindSet) (Format, bool) {
	if adv == nil {
		return Format{}, false
	}
	for _, f := range formats {
		if enabled.Has(f.Kind) && f.Match(adv) {
			return f, true
		}
	}
	return Format{}, false
}

// Decode matches and decodes a single advertisement with no prior state.
func Decode(adv *Advertisement, enabled KindSet) (Kind, Payload, error) {
	f, ok := Match(adv, enabled)
	if !ok {
		return 0, nil, ErrNoMatch
	}
	p, err := f.Decode(adv, nil)
	return f.Kind, p, err
}
