// Package ble collects advertisements from the local Bluetooth adapter,
// either straight off the HCI socket with go-ble or through BlueZ with
// tinygo bluetooth.
package ble

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	goble "github.com/go-ble/ble"
	"github.com/pkg/errors"
	"tinygo.org/x/bluetooth"

	"github.com/barnybug/gobeacon/beacon"
	"github.com/barnybug/gobeacon/scanner"
)

// DefaultBatch is how long one Collect listens before handing over.
const DefaultBatch = time.Second

// Source is a scanner.Source holding a radio open.
type Source interface {
	scanner.Source
	io.Closer
}

// deviceID maps an adapter name such as hci1 to its index.
func deviceID(adapter string) (int, error) {
	if adapter == "" {
		return 0, nil
	}
	id, err := strconv.Atoi(strings.TrimPrefix(adapter, "hci"))
	if err != nil || id < 0 {
		return 0, errors.Errorf("invalid adapter %q", adapter)
	}
	return id, nil
}

func serviceData(uuid16 uint16, data []byte) []byte {
	b := make([]byte, 2, 2+len(data))
	binary.LittleEndian.PutUint16(b, uuid16)
	return append(b, data...)
}

func manufacturerData(company uint16, data []byte) []byte {
	return serviceData(company, data)
}

// fromBLE converts a go-ble advertisement. ble.UUID is stored little
// endian, so 16-bit service uuids are already in over-the-air order.
func fromBLE(a goble.Advertisement) (*beacon.Advertisement, error) {
	addr, err := beacon.ParseAddress(a.Addr().String())
	if err != nil {
		return nil, err
	}
	adv := &beacon.Advertisement{
		Address:   addr,
		RSSI:      a.RSSI(),
		LocalName: a.LocalName(),
	}
	for _, sd := range a.ServiceData() {
		if len(sd.UUID) != 2 {
			continue
		}
		adv.ServiceData = append(adv.ServiceData, append(append([]byte{}, sd.UUID...), sd.Data...))
	}
	if md := a.ManufacturerData(); len(md) > 0 {
		adv.ManufacturerData = append([]byte{}, md...)
	}
	return adv, nil
}

// fromScanResult converts a tinygo bluetooth scan result. Only the first
// manufacturer section is kept.
func fromScanResult(r bluetooth.ScanResult) (*beacon.Advertisement, error) {
	addr, err := beacon.ParseAddress(r.Address.String())
	if err != nil {
		return nil, err
	}
	adv := &beacon.Advertisement{
		Address:   addr,
		RSSI:      int(r.RSSI),
		LocalName: r.LocalName(),
	}
	for _, sd := range r.ServiceData() {
		if !sd.UUID.Is16Bit() {
			continue
		}
		adv.ServiceData = append(adv.ServiceData, serviceData(sd.UUID.Get16Bit(), sd.Data))
	}
	if mds := r.ManufacturerData(); len(mds) > 0 {
		adv.ManufacturerData = manufacturerData(mds[0].CompanyID, mds[0].Data)
	}
	return adv, nil
}

// collector gathers one window's advertisements from the radio callback.
type collector struct {
	mu   sync.Mutex
	advs []*beacon.Advertisement
}

func (c *collector) add(adv *beacon.Advertisement, err error) {
	if err != nil {
		slog.Debug("Dropped advertisement", "error", err)
		return
	}
	c.mu.Lock()
	c.advs = append(c.advs, adv)
	c.mu.Unlock()
}

func (c *collector) batch() []*beacon.Advertisement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advs
}

// windowErr hides the expiry of a collect window; the caller's own
// cancellation or deadline is passed on.
func windowErr(ctx context.Context, err error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err == nil || errors.Cause(err) == context.DeadlineExceeded {
		return nil
	}
	return errors.Wrap(err, "ble scan")
}
