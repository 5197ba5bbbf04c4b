package beacon

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Address is a BLE device address in canonical AA:BB:CC:DD:EE:FF form.
type Address string

// NewAddress builds an Address from 6 bytes in display order.
func NewAddress(b []byte) Address {
	return Address(strings.ToUpper(formatMAC(b)))
}

// ParseAddress normalises a textual address. Both ':' and '-' separators
// are accepted.
func ParseAddress(s string) (Address, error) {
	s = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", ":"))
	ps := strings.Split(s, ":")
	if len(ps) != 6 {
		return "", errors.Errorf("invalid address %q", s)
	}
	for _, p := range ps {
		if len(p) != 2 || strings.Trim(p, "0123456789ABCDEF") != "" {
			return "", errors.Errorf("invalid address %q", s)
		}
	}
	return Address(s), nil
}

func (a Address) String() string {
	return string(a)
}

// Advertisement is one scan result handed over by the radio: the
// interesting advertisement sections plus origin address and signal.
//
// Each ServiceData entry starts with the 16-bit service UUID in little
// endian order, exactly as carried over the air in AD type 0x16.
// ManufacturerData starts with the little endian company identifier.
type Advertisement struct {
	Address          Address
	RSSI             int
	LocalName        string
	ServiceData      [][]byte
	ManufacturerData []byte
}

// ServiceDataWithPrefix returns the first service data section starting
// with prefix, or nil.
func (adv *Advertisement) ServiceDataWithPrefix(prefix ...byte) []byte {
	for _, sd := range adv.ServiceData {
		if bytes.HasPrefix(sd, prefix) {
			return sd
		}
	}
	return nil
}

// HasManufacturerPrefix reports whether the manufacturer data begins with
// prefix.
func (adv *Advertisement) HasManufacturerPrefix(prefix ...byte) bool {
	return bytes.HasPrefix(adv.ManufacturerData, prefix)
}

func (adv *Advertisement) String() string {
	var sds []string
	for _, sd := range adv.ServiceData {
		sds = append(sds, hexUpper(sd))
	}
	return fmt.Sprintf("%s rssi=%d name=%q sd=[%s] mfg=%s", adv.Address, adv.RSSI, adv.LocalName,
		strings.Join(sds, " "), hexUpper(adv.ManufacturerData))
}
