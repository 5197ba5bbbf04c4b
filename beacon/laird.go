package beacon

import "sort"

const lairdMin = 26

// Laird BT510 advertisement flags.
const (
	lairdLowBattery  = 0x0080
	lairdHighTemp0   = 0x0100
	lairdHighTemp1   = 0x0200
	lairdLowTemp0    = 0x0400
	lairdLowTemp1    = 0x0800
	lairdDeltaTemp   = 0x1000
	lairdMovement    = 0x4000
	lairdMagnetState = 0x8000
)

var lairdAlarms = map[uint16]string{
	lairdLowBattery: "battery_bad",
	lairdHighTemp0:  "high_temp_1",
	lairdHighTemp1:  "high_temp_2",
	lairdLowTemp0:   "low_temp_1",
	lairdLowTemp1:   "low_temp_2",
	lairdDeltaTemp:  "delta_temp",
	lairdMovement:   "movement",
}

// LairdEvent is the event type of the sensor's latest log record.
type LairdEvent uint8

const (
	LairdTemperature       LairdEvent = 1
	LairdMagnet            LairdEvent = 2
	LairdMovementEvent     LairdEvent = 3
	LairdHighTemp1         LairdEvent = 4
	LairdHighTemp2         LairdEvent = 5
	LairdHighTempClear     LairdEvent = 6
	LairdLowTemp1          LairdEvent = 7
	LairdLowTemp2          LairdEvent = 8
	LairdLowTempClear      LairdEvent = 9
	LairdDeltaTemp         LairdEvent = 10
	LairdBatteryGood       LairdEvent = 12
	LairdAdvertiseOnButton LairdEvent = 13
	LairdBatteryBad        LairdEvent = 16
	LairdReset             LairdEvent = 17
)

var lairdEventNames = map[LairdEvent]string{
	LairdTemperature:       "temperature",
	LairdMagnet:            "magnet_proximity",
	LairdMovementEvent:     "movement",
	LairdHighTemp1:         "high_temp_1",
	LairdHighTemp2:         "high_temp_2",
	LairdHighTempClear:     "high_temp_clear",
	LairdLowTemp1:          "low_temp_1",
	LairdLowTemp2:          "low_temp_2",
	LairdLowTempClear:      "low_temp_clear",
	LairdDeltaTemp:         "delta_temp",
	LairdBatteryGood:       "battery_good",
	LairdAdvertiseOnButton: "advertise_on_button",
	LairdBatteryBad:        "battery_bad",
	LairdReset:             "reset",
}

func (e LairdEvent) String() string {
	if s, ok := lairdEventNames[e]; ok {
		return s
	}
	return "unknown"
}

// LairdPayload is a Laird Sentrius BT510 sensor advertisement.
type LairdPayload struct {
	Flags  uint16
	Record uint16
	Event  *LairdEvent
	Epoch  *uint32
	// Temperature in C.
	Temperature *float64
	// Battery in mV.
	Battery *uint16
	// MagnetEvent is the state reported by the last magnet event.
	MagnetEvent *bool
}

func (p *LairdPayload) Kind() Kind { return LairdBT510 }
func (p *LairdPayload) isPayload() {}

// MagnetNear reports the magnet state flag: clear means near.
func (p *LairdPayload) MagnetNear() bool {
	return p.Flags&lairdMagnetState == 0
}

// Alarms lists the alarm flags currently raised, sorted.
func (p *LairdPayload) Alarms() []string {
	return lairdAlarmNames(p.Flags)
}

func lairdAlarmNames(flags uint16) []string {
	var ret []string
	for bit, name := range lairdAlarms {
		if flags&bit != 0 {
			ret = append(ret, name)
		}
	}
	sort.Strings(ret)
	return ret
}

func (p *LairdPayload) Fields(rssi int) Fields {
	f := Fields{}.Add("magnet_near", p.MagnetNear())
	f = opt(f, "temp", p.Temperature)
	f = f.Add("record", p.Record)
	f = opt(f, "batt", p.Battery)
	if p.Event != nil {
		f = f.Add("event", p.Event.String())
	}
	f = opt(f, "epoch", p.Epoch)
	if alarms := p.Alarms(); len(alarms) > 0 {
		f = f.Add("alarms", alarms)
	}
	return f.Add("rssi", rssi)
}

func isLaird(adv *Advertisement) bool {
	b := adv.ManufacturerData
	return len(b) >= 4 && b[0] == 0x77 && b[1] == 0x00 && (b[2] == 0x01 || b[2] == 0x02) && b[3] == 0x00
}

func decodeLaird(adv *Advertisement, prev Payload) (Payload, error) {
	p := copyOf[LairdPayload](prev)
	b := adv.ManufacturerData
	if len(b) < lairdMin {
		return p, truncated("laird bt510: %d bytes", len(b))
	}
	p.Flags, _ = uint16LE(b, 6)
	p.Record, _ = uint16LE(b, 15)
	// the event log entry is only carried in the 1M PHY advertisement
	if len(b) != lairdMin || b[2] != 0x01 {
		return p, nil
	}
	ev := LairdEvent(b[14])
	p.Event = &ev
	epoch, _ := uint32LE(b, 17)
	p.Epoch = &epoch
	switch ev {
	case LairdTemperature, LairdHighTemp1, LairdHighTemp2, LairdHighTempClear,
		LairdLowTemp1, LairdLowTemp2, LairdLowTempClear, LairdDeltaTemp:
		t, _ := int16LE(b, 21)
		p.Temperature = ptr(float64(t) / 100)
	case LairdMagnet:
		p.MagnetEvent = ptr(b[21] == 0x01)
	case LairdBatteryGood, LairdAdvertiseOnButton, LairdBatteryBad:
		mv, _ := uint16LE(b, 21)
		p.Battery = &mv
	}
	return p, nil
}

// deviceEvents raises the event log entry when the record number moves on,
// each alarm flag when it becomes set and magnet state changes.
func (p *LairdPayload) deviceEvents(prev Payload) []string {
	var ret []string
	old, _ := prev.(*LairdPayload)
	if p.Event != nil && (old == nil || old.Record != p.Record) {
		ret = append(ret, "event:"+p.Event.String())
	}
	var was uint16
	if old != nil {
		was = old.Flags
	}
	for _, name := range lairdAlarmNames(p.Flags &^ was) {
		ret = append(ret, "alarm:"+name)
	}
	if old != nil && (old.Flags^p.Flags)&lairdMagnetState != 0 {
		ret = append(ret, "alarm:"+LairdMagnet.String())
	}
	return ret
}
