package ble

import (
	"context"
	"time"

	goble "github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/pkg/errors"

	"github.com/barnybug/gobeacon/beacon"
)

// HCISource scans with go-ble on a raw HCI socket. It needs root or
// CAP_NET_ADMIN.
type HCISource struct {
	device goble.Device
	batch  time.Duration
}

func NewHCISource(adapter string, batch time.Duration) (*HCISource, error) {
	id, err := deviceID(adapter)
	if err != nil {
		return nil, err
	}
	d, err := linux.NewDevice(goble.OptDeviceID(id))
	if err != nil {
		return nil, errors.Wrapf(err, "can't create device %s", adapter)
	}
	if batch <= 0 {
		batch = DefaultBatch
	}
	return &HCISource{device: d, batch: batch}, nil
}

func (s *HCISource) Collect(ctx context.Context) ([]*beacon.Advertisement, error) {
	wctx, cancel := context.WithTimeout(ctx, s.batch)
	defer cancel()
	c := &collector{}
	// Duplicates are kept: the controller filter is per address and would
	// drop later Eddystone frames and sensor updates within a window.
	err := s.device.Scan(wctx, true, func(a goble.Advertisement) {
		c.add(fromBLE(a))
	})
	return c.batch(), windowErr(ctx, err)
}

func (s *HCISource) Close() error {
	return s.device.Stop()
}
