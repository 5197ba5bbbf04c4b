package beacon

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddr = Address("C0:FF:EE:00:00:01")

func mfgAdv(hex string) *Advertisement {
	return &Advertisement{Address: testAddr, RSSI: -60, ManufacturerData: mustHex(hex)}
}

func svcAdv(hex string) *Advertisement {
	return &Advertisement{Address: testAddr, RSSI: -60, ServiceData: [][]byte{mustHex(hex)}}
}

var (
	ibeaconMfg  = "4C 00 02 15 E2C56DB5DFFB48D2B060D0F5A71096E0 0001 0002 C5"
	uidSvc      = "AA FE 00 E7 00112233445566778899 AABBCCDDEEFF"
	tlmSvc      = "AA FE 20 00 0BB8 1780 00000064 000003E8"
	kontaktSvc  = "6A FE 03 06 01 0000000064 03 05 3217 03 0D 0A00"
	lairdMfg    = "77 00 01 00 0000 0000 112233445566 01 0500 00000000 3408 000000"
	bthomeSvc   = "D2 FC 44 00 2A 01 64 3A 01"
	shellyMfg   = "A9 0B 01 0400 0B 0100 0A 3C2EF5C12B11"
	ruuviMfg    = "99040516142d8fc4c7fc9401c8fffc8ed6f6cba8fc4c2295c482"
	sgwirelessM = "59 00 2909 8813 5A 00"
)

func sampleAdvertisements() map[Kind]*Advertisement {
	shelly := svcAdv(bthomeSvc)
	shelly.ManufacturerData = mustHex(shellyMfg)
	sgw := mfgAdv(sgwirelessM)
	sgw.LocalName = "SGW8130"
	return map[Kind]*Advertisement{
		IBeacon:    mfgAdv(ibeaconMfg),
		Eddystone:  svcAdv(uidSvc),
		Kontakt:    svcAdv(kontaktSvc),
		LairdBT510: mfgAdv(lairdMfg),
		BTHome:     svcAdv(bthomeSvc),
		Shelly:     shelly,
		Ruuvi:      mfgAdv(ruuviMfg),
		SGWireless: sgw,
	}
}

func TestMatchPriority(t *testing.T) {
	for kind, adv := range sampleAdvertisements() {
		f, ok := Match(adv, AllKinds)
		require.True(t, ok, kind.String())
		assert.Equal(t, kind, f.Kind)
	}
}

func TestMatchersExclusive(t *testing.T) {
	for kind, adv := range sampleAdvertisements() {
		for _, f := range Formats() {
			if f.Kind == kind {
				assert.True(t, f.Match(adv), kind.String())
				continue
			}
			// a Shelly BLU device is also a valid BTHome device
			if kind == Shelly && f.Kind == BTHome {
				assert.True(t, f.Match(adv))
				continue
			}
			assert.False(t, f.Match(adv), "%s matched %s", f.Kind, kind)
		}
	}
}

func TestMatchDisabled(t *testing.T) {
	adv := sampleAdvertisements()[Shelly]
	f, ok := Match(adv, AllKinds&^SetOf(Shelly))
	assert.True(t, ok)
	assert.Equal(t, BTHome, f.Kind)

	_, ok = Match(adv, SetOf(Ruuvi))
	assert.False(t, ok)
	_, _, err := Decode(adv, SetOf(Ruuvi))
	assert.Equal(t, ErrNoMatch, err)
}

func TestMatchShortInput(t *testing.T) {
	advs := []*Advertisement{
		{},
		mfgAdv("4C"),
		mfgAdv("4C 00 02 15"),
		mfgAdv("77 00 01"),
		mfgAdv("99 04"),
		svcAdv("AA FE"),
		svcAdv("AA FE 00"),
		svcAdv("6A"),
		svcAdv("D2 FC 40"),
		{LocalName: "SGW8130"},
	}
	for _, adv := range advs {
		_, ok := Match(adv, AllKinds)
		assert.False(t, ok, adv.String())
	}
	_, ok := Match(nil, AllKinds)
	assert.False(t, ok)
}

func TestDecodeIBeacon(t *testing.T) {
	kind, p, err := Decode(mfgAdv(ibeaconMfg), AllKinds)
	require.NoError(t, err)
	assert.Equal(t, IBeacon, kind)
	ib := p.(*IBeaconPayload)
	assert.Equal(t, "E2C56DB5-DFFB-48D2-B060-D0F5A71096E0", ib.UUID)
	assert.Equal(t, uint16(1), ib.Major)
	assert.Equal(t, uint16(2), ib.Minor)
	assert.Equal(t, int8(-59), ib.Power)
}

func TestDecodeEddystoneUID(t *testing.T) {
	p, err := decodeEddystone(svcAdv(uidSvc), nil)
	require.NoError(t, err)
	e := p.(*EddystonePayload)
	assert.True(t, e.UID.Found)
	assert.Equal(t, int8(-25), e.UID.Power)
	assert.Equal(t, "00112233445566778899", e.UID.Namespace)
	assert.Equal(t, "AABBCCDDEEFF", e.UID.Instance)
	assert.False(t, e.URL.Found)
	assert.False(t, e.TLM.Found)
	assert.False(t, e.EID.Found)
}

func TestDecodeEddystoneTLM(t *testing.T) {
	p, err := decodeEddystone(svcAdv(tlmSvc), nil)
	require.NoError(t, err)
	e := p.(*EddystonePayload)
	assert.True(t, e.TLM.Found)
	require.NotNil(t, e.TLM.Battery)
	assert.Equal(t, uint16(3000), *e.TLM.Battery)
	require.NotNil(t, e.TLM.Temperature)
	assert.Equal(t, 23.5, *e.TLM.Temperature)
	assert.Equal(t, uint32(100), e.TLM.AdvCount)
	assert.Equal(t, uint32(1000), e.TLM.Uptime)
	assert.False(t, e.UID.Found)
}

func TestDecodeEddystoneTLMUnsupportedTemp(t *testing.T) {
	p, err := decodeEddystone(svcAdv("AA FE 20 00 0BB8 8000 00000064 000003E8"), nil)
	require.NoError(t, err)
	assert.Nil(t, p.(*EddystonePayload).TLM.Temperature)
}

func TestDecodeEddystoneTLMUnsupportedBattery(t *testing.T) {
	p, err := decodeEddystone(svcAdv("AA FE 20 00 0000 1780 00000064 000003E8"), nil)
	require.NoError(t, err)
	e := p.(*EddystonePayload)
	assert.Nil(t, e.TLM.Battery)
	assert.Equal(t, []string{"temp", "adv_cnt", "sec_cnt"}, tlmFieldNames(e))
}

func tlmFieldNames(e *EddystonePayload) []string {
	v, _ := e.Fields(-60).Get("tlm")
	return v.(Fields).Names()
}

func TestDecodeEddystoneLengthMismatch(t *testing.T) {
	cases := []string{
		"AA FE 20 00 0BB8 1780 00000064 0000",
		"AA FE 20 00 0BB8 1780 00000064 000003E8 00",
		"AA FE 00 E7 00112233445566778899 AABBCC",
		"AA FE 10 EB 00",
		"AA FE 30 E7 0102",
	}
	for _, c := range cases {
		p, err := decodeEddystone(svcAdv(c), nil)
		assert.True(t, IsDiscard(err), c)
		e := p.(*EddystonePayload)
		assert.False(t, e.UID.Found || e.URL.Found || e.TLM.Found || e.EID.Found, c)
	}
}

func TestDecodeEddystoneSubtypes(t *testing.T) {
	_, err := decodeEddystone(svcAdv("AA FE 20 01 0BB8 1780 00000064 000003E8"), nil)
	assert.Equal(t, ErrUnknownSubtype, errors.Cause(err))
	_, err = decodeEddystone(svcAdv("AA FE 40 00 00"), nil)
	assert.Equal(t, ErrUnknownSubtype, errors.Cause(err))
}

func TestDecodeEddystoneURLAndEID(t *testing.T) {
	p, err := decodeEddystone(svcAdv("AA FE 10 EB 00 676F6F676C65 07"), nil)
	require.NoError(t, err)
	e := p.(*EddystonePayload)
	assert.Equal(t, "http://www.google.com", e.URL.URL)
	assert.Equal(t, int8(-21), e.URL.Power)

	p, err = decodeEddystone(svcAdv("AA FE 30 E7 0102030405060708"), p)
	require.NoError(t, err)
	e = p.(*EddystonePayload)
	assert.Equal(t, "0102030405060708", e.EID.EID)
	assert.True(t, e.URL.Found)
}

func TestDecodeEddystoneMergesFrames(t *testing.T) {
	p, err := decodeEddystone(svcAdv(uidSvc), nil)
	require.NoError(t, err)
	p, err = decodeEddystone(svcAdv(tlmSvc), p)
	require.NoError(t, err)
	e := p.(*EddystonePayload)
	assert.True(t, e.UID.Found)
	assert.True(t, e.TLM.Found)
}

func TestEddystoneEndToEnd(t *testing.T) {
	raw := mustHex("02 01 06 03 03 AA FE 15 16 " + uidSvc)
	adv, err := ParseAdvertisingData(testAddr, -70, raw)
	require.NoError(t, err)
	for _, f := range Formats() {
		assert.Equal(t, f.Kind == Eddystone, f.Match(adv), f.Kind.String())
	}
	kind, p, err := Decode(adv, AllKinds)
	require.NoError(t, err)
	assert.Equal(t, Eddystone, kind)
	assert.Equal(t, "00112233445566778899", p.(*EddystonePayload).UID.Namespace)
}

func TestDecodeKontakt(t *testing.T) {
	p, err := decodeKontakt(svcAdv(kontaktSvc), nil)
	require.NoError(t, err)
	k := p.(*KontaktPayload)
	assert.Equal(t, uint8(100), *k.Battery)
	assert.Equal(t, uint8(50), *k.Light)
	assert.Equal(t, int8(23), *k.Temperature)
	assert.Equal(t, uint16(10), *k.Button)
	assert.Nil(t, k.X)
}

func TestDecodeKontaktAccelerometer(t *testing.T) {
	p, err := decodeKontakt(svcAdv("6A FE 03 09 02 01 FF 02 40 0500 0A00"), nil)
	require.NoError(t, err)
	k := p.(*KontaktPayload)
	assert.Equal(t, uint8(1), *k.Sensitivity)
	assert.Equal(t, int8(-1), *k.X)
	assert.Equal(t, int8(2), *k.Y)
	assert.Equal(t, int8(64), *k.Z)
	assert.Equal(t, uint16(5), *k.DoubleTap)
	assert.Equal(t, uint16(10), *k.Movement)
}

func TestDecodeKontaktSkipsUnknownTag(t *testing.T) {
	p, err := decodeKontakt(svcAdv("6A FE 03 04 22 AABBCC 03 0D 0A00"), nil)
	require.NoError(t, err)
	assert.Equal(t, uint16(10), *p.(*KontaktPayload).Button)
}

func TestDecodeKontaktMalformed(t *testing.T) {
	// button record claims more bytes than remain
	p, err := decodeKontakt(svcAdv("6A FE 03 03 05 3217 05 0D 0A"), nil)
	assert.Equal(t, ErrMalformedField, errors.Cause(err))
	k := p.(*KontaktPayload)
	assert.Equal(t, int8(23), *k.Temperature)
	assert.Nil(t, k.Button)

	// known tag with too short a value
	_, err = decodeKontakt(svcAdv("6A FE 03 02 0D 0A"), nil)
	assert.Equal(t, ErrMalformedField, errors.Cause(err))
}

func TestDecodeKontaktOtherFrame(t *testing.T) {
	_, err := decodeKontakt(svcAdv("6A FE 01 00 00"), nil)
	assert.Equal(t, ErrUnknownSubtype, errors.Cause(err))
}

func TestDecodeLaird(t *testing.T) {
	p, err := decodeLaird(mfgAdv(lairdMfg), nil)
	require.NoError(t, err)
	l := p.(*LairdPayload)
	assert.True(t, l.MagnetNear())
	assert.Equal(t, uint16(5), l.Record)
	assert.Equal(t, LairdTemperature, *l.Event)
	assert.Equal(t, 21.0, *l.Temperature)
	assert.Nil(t, l.Battery)
	assert.Empty(t, l.Alarms())
}

func TestDecodeLairdBatteryAndFlags(t *testing.T) {
	p, err := decodeLaird(mfgAdv("77 00 01 00 0000 8081 112233445566 0C 0600 00000000 B80B 000000"), nil)
	require.NoError(t, err)
	l := p.(*LairdPayload)
	assert.False(t, l.MagnetNear())
	assert.Equal(t, uint16(3000), *l.Battery)
	assert.Equal(t, []string{"battery_bad", "high_temp_1"}, l.Alarms())
}

func TestDecodeLairdCodedPHY(t *testing.T) {
	// extended advertisement: flags and record only
	p, err := decodeLaird(mfgAdv("77 00 02 00 0000 0000 112233445566 01 0700 00000000 3408 000000 0000"), nil)
	require.NoError(t, err)
	l := p.(*LairdPayload)
	assert.Equal(t, uint16(7), l.Record)
	assert.Nil(t, l.Event)
	assert.Nil(t, l.Temperature)
}

func TestDecodeLairdTruncated(t *testing.T) {
	_, err := decodeLaird(mfgAdv("77 00 01 00 0000 0000"), nil)
	assert.True(t, IsDiscard(err))
}

func TestDecodeBTHome(t *testing.T) {
	p, err := decodeBTHome(svcAdv(bthomeSvc), nil)
	require.NoError(t, err)
	b := p.(*BTHomePayload)
	assert.Equal(t, uint8(0x2A), *b.PacketID)
	assert.Equal(t, uint8(100), *b.Battery)
	assert.Equal(t, uint8(1), *b.Button)
	assert.Nil(t, b.Temperature)
}

func TestDecodeBTHomeMeasurements(t *testing.T) {
	p, err := decodeBTHome(svcAdv("D2 FC 40 02 2909 03 8813 0C B80B 05 102700 45 EB00"), nil)
	require.NoError(t, err)
	b := p.(*BTHomePayload)
	assert.Equal(t, 23.5, *b.Temperature)
	assert.Equal(t, 50.0, *b.Humidity)
	assert.Equal(t, 3.0, *b.Voltage)
	assert.Equal(t, 100.0, *b.Illuminance)
}

func TestDecodeBTHomeTruncatedObject(t *testing.T) {
	prev, err := decodeBTHome(svcAdv("D2 FC 40 02 2909 03 8813 00 01"), nil)
	require.NoError(t, err)

	// temperature object claims two bytes, one remains
	p, err := decodeBTHome(svcAdv("D2 FC 40 00 02 01 64 02 C4"), prev)
	assert.Equal(t, ErrMalformedField, errors.Cause(err))
	b := p.(*BTHomePayload)
	assert.Equal(t, uint8(2), *b.PacketID)
	assert.Equal(t, uint8(100), *b.Battery)
	assert.Equal(t, 23.45, *b.Temperature)
	assert.Equal(t, 50.0, *b.Humidity)

	// the previous payload is untouched
	assert.Equal(t, uint8(1), *prev.(*BTHomePayload).PacketID)
}

func TestDecodeBTHomeUnknownObject(t *testing.T) {
	p, err := decodeBTHome(svcAdv("D2 FC 40 00 01 FF 00 01 64"), nil)
	assert.Equal(t, ErrUnknownSubtype, errors.Cause(err))
	b := p.(*BTHomePayload)
	assert.Equal(t, uint8(1), *b.PacketID)
	assert.Nil(t, b.Battery)
}

func TestDecodeBTHomeShortAndEncrypted(t *testing.T) {
	_, err := decodeBTHome(svcAdv("D2 FC 40 00 01 01 64"), nil)
	assert.True(t, IsDiscard(err))
	_, err = decodeBTHome(svcAdv("D2 FC 41 00 01 01 64 3A 01"), nil)
	assert.Equal(t, ErrUnknownSubtype, errors.Cause(err))
}

func TestDecodeShelly(t *testing.T) {
	p, err := decodeShelly(sampleAdvertisements()[Shelly], nil)
	require.NoError(t, err)
	s := p.(*ShellyPayload)
	assert.Equal(t, uint16(4), *s.Flags)
	assert.Equal(t, uint16(1), *s.Model)
	assert.Equal(t, "3c:2e:f5:c1:2b:11", *s.MAC)
	assert.Equal(t, uint8(1), *s.Button)
	assert.Equal(t, uint8(100), *s.Battery)
}

func TestDecodeShellyUnknownTag(t *testing.T) {
	adv := svcAdv(bthomeSvc)
	adv.ManufacturerData = mustHex("A9 0B 0B 0100 7F 00")
	p, err := decodeShelly(adv, nil)
	assert.Equal(t, ErrUnknownSubtype, errors.Cause(err))
	s := p.(*ShellyPayload)
	assert.Equal(t, uint16(1), *s.Model)
	assert.Equal(t, uint8(1), *s.Button)
}

func TestDecodeRuuvi(t *testing.T) {
	p, err := decodeRuuvi(mfgAdv(ruuviMfg), nil)
	require.NoError(t, err)
	r := p.(*RuuviPayload)
	assert.InDelta(t, 28.26, *r.Temperature, 1e-9)
	assert.InDelta(t, 29.1575, *r.Humidity, 1e-9)
	assert.Equal(t, uint32(100375), *r.Pressure)
	assert.InDelta(t, -0.876, *r.AccelX, 1e-9)
	assert.InDelta(t, 0.456, *r.AccelY, 1e-9)
	assert.InDelta(t, -0.004, *r.AccelZ, 1e-9)
	assert.InDelta(t, 2.742, *r.Battery, 1e-9)
	assert.Equal(t, 4, *r.TxPower)
	assert.Equal(t, uint8(246), *r.Movement)
	assert.Equal(t, uint16(52136), *r.Sequence)
	assert.Equal(t, "fc:4c:22:95:c4:82", r.MAC)
}

func ruuviFrame(temp int16, hum, press uint16, ax, ay, az int16, power uint16, move uint8, seq uint16) *Advertisement {
	b := []byte{0x99, 0x04, 0x05}
	be := func(v uint16) { b = append(b, byte(v>>8), byte(v)) }
	be(uint16(temp))
	be(hum)
	be(press)
	be(uint16(ax))
	be(uint16(ay))
	be(uint16(az))
	be(power)
	b = append(b, move)
	be(seq)
	b = append(b, 0xC0, 0xFF, 0xEE, 0x00, 0x00, 0x01)
	return &Advertisement{Address: testAddr, ManufacturerData: b}
}

func TestRuuviRoundTrip(t *testing.T) {
	cases := []struct {
		temp          int16
		hum, press    uint16
		ax, ay, az    int16
		volt          uint16
		tx            uint16
		move          uint8
		seq           uint16
		wantTx        int
		wantBattVolts float64
	}{
		{5652, 11663, 50375, -876, 456, -4, 1142, 22, 246, 52136, 4, 2.742},
		{-32767, 0, 0, 32767, -32767, 0, 0, 0, 0, 0, -40, 1.6},
		{0, 40000, 65534, 1000, -1000, 1, 2046, 30, 254, 65534, 20, 3.646},
	}
	for _, c := range cases {
		adv := ruuviFrame(c.temp, c.hum, c.press, c.ax, c.ay, c.az, c.volt<<5|c.tx, c.move, c.seq)
		p, err := decodeRuuvi(adv, nil)
		require.NoError(t, err)
		r := p.(*RuuviPayload)
		assert.Equal(t, float64(c.temp)*0.005, *r.Temperature)
		assert.Equal(t, float64(c.hum)*0.0025, *r.Humidity)
		assert.Equal(t, uint32(c.press)+50000, *r.Pressure)
		assert.Equal(t, float64(c.ax)/1000, *r.AccelX)
		assert.Equal(t, float64(c.ay)/1000, *r.AccelY)
		assert.Equal(t, float64(c.az)/1000, *r.AccelZ)
		assert.InDelta(t, c.wantBattVolts, *r.Battery, 1e-9)
		assert.Equal(t, c.wantTx, *r.TxPower)
		assert.Equal(t, c.move, *r.Movement)
		assert.Equal(t, c.seq, *r.Sequence)
		assert.Equal(t, "c0:ff:ee:00:00:01", r.MAC)
	}
}

func TestRuuviNotAvailable(t *testing.T) {
	adv := ruuviFrame(-32768, 0xFFFF, 0xFFFF, -32768, -32768, -32768, 0xFFFF, 0xFF, 0xFFFF)
	p, err := decodeRuuvi(adv, nil)
	require.NoError(t, err)
	r := p.(*RuuviPayload)
	assert.Nil(t, r.Temperature)
	assert.Nil(t, r.Humidity)
	assert.Nil(t, r.Pressure)
	assert.Nil(t, r.AccelX)
	assert.Nil(t, r.AccelY)
	assert.Nil(t, r.AccelZ)
	assert.Nil(t, r.Battery)
	assert.Nil(t, r.TxPower)
	assert.Nil(t, r.Movement)
	assert.Nil(t, r.Sequence)
	assert.Equal(t, Fields{{"mac", "c0:ff:ee:00:00:01"}, {"rssi", -70}}, r.Fields(-70))
}

func TestRuuviFormats(t *testing.T) {
	_, err := decodeRuuvi(mfgAdv("99 04 03 0102"), nil)
	assert.Equal(t, ErrUnknownSubtype, errors.Cause(err))
	_, err = decodeRuuvi(mfgAdv("99 04 05 0102"), nil)
	assert.True(t, IsDiscard(err))
}

func TestDecodeSGWireless(t *testing.T) {
	adv := sampleAdvertisements()[SGWireless]
	p, err := decodeSGWireless(adv, nil)
	require.NoError(t, err)
	s := p.(*SGWirelessPayload)
	assert.Equal(t, 23.45, *s.Temperature)
	assert.Equal(t, 50.0, *s.Humidity)
	assert.Equal(t, uint8(90), *s.Battery)

	adv.ManufacturerData = mustHex("59 00 2909 8813 5A")
	_, err = decodeSGWireless(adv, nil)
	assert.True(t, IsDiscard(err))

	adv.ManufacturerData = mustHex("59 00 FFFF FFFF FF 00")
	p, err = decodeSGWireless(adv, nil)
	require.NoError(t, err)
	assert.Equal(t, Fields{{"s", -60}}, p.Fields(-60))
}
