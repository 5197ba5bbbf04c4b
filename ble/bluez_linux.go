package ble

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"tinygo.org/x/bluetooth"

	"github.com/barnybug/gobeacon/beacon"
)

// BluezSource scans through the BlueZ D-Bus API, which does not need
// raw socket privileges.
type BluezSource struct {
	adapter *bluetooth.Adapter
	name    string
	batch   time.Duration
}

func NewBluezSource(adapter string, batch time.Duration) (*BluezSource, error) {
	if adapter == "" {
		adapter = "hci0"
	}
	a := bluetooth.NewAdapter(adapter)
	if err := a.Enable(); err != nil {
		return nil, errors.Wrapf(err, "ble enable (%s)", adapter)
	}
	if batch <= 0 {
		batch = DefaultBatch
	}
	return &BluezSource{adapter: a, name: adapter, batch: batch}, nil
}

func (s *BluezSource) Collect(ctx context.Context) ([]*beacon.Advertisement, error) {
	wctx, cancel := context.WithTimeout(ctx, s.batch)
	defer cancel()
	go func() {
		<-wctx.Done()
		_ = s.adapter.StopScan()
	}()

	c := &collector{}
	// Scan blocks until StopScan
	err := s.adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
		c.add(fromScanResult(r))
	})
	if err == nil {
		err = wctx.Err()
	}
	return c.batch(), windowErr(ctx, err)
}

func (s *BluezSource) Close() error {
	return nil
}
