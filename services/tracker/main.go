// Service to track beacons coming into and going out of range.
//
// Scans continuously and emits beacon/entered, beacon/left and
// beacon/event (device notices, eg a sensor alarm) events.
package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/barnybug/gobeacon/beacon"
	"github.com/barnybug/gobeacon/pubsub"
	"github.com/barnybug/gobeacon/scanner"
	"github.com/barnybug/gobeacon/services"
)

// Service tracker
type Service struct {
	scanner *scanner.Scanner
	source  scanner.Source
	// interval between notify/age cycles
	interval time.Duration
}

func (self *Service) ID() string {
	return "tracker"
}

func (self *Service) Init() error {
	opts, err := services.ScannerOptions(services.Config)
	if err != nil {
		return err
	}
	self.scanner, err = scanner.New(opts)
	if err != nil {
		return err
	}
	if self.source == nil {
		self.source, err = services.OpenSource(services.Config)
		if err != nil {
			return err
		}
	}
	if self.interval == 0 {
		self.interval = time.Second
	}
	self.scanner.Observe(emit)
	self.scanner.OnUnmatched(func(adv *beacon.Advertisement) {
		slog.Debug("Unmatched", "adv", adv.String())
	})
	return nil
}

func eventFor(ev beacon.Event) *pubsub.Event {
	fields := pubsub.Fields{}
	for k, v := range ev.Record.Map() {
		fields[k] = v
	}
	fields["source"] = ev.Record.Address.String()
	if ev.Detail != "" {
		fields["detail"] = ev.Detail
	}
	pev := pubsub.NewEvent("beacon/"+ev.Type.String(), fields)
	services.Config.AddDeviceToEvent(pev)
	return pev
}

func emit(ev beacon.Event) {
	pev := eventFor(ev)
	slog.Info("Beacon "+ev.Type.String(), "addr", ev.Record.Address, "kind", ev.Record.Kind, "device", pev.Device(), "detail", ev.Detail)
	services.Publisher.Emit(pev)
}

func (self *Service) loop(ctx context.Context) {
	ticker := time.NewTicker(self.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			self.scanner.Loop()
		}
	}
}

func (self *Service) Run(ctx context.Context) error {
	go services.CloseSource(ctx, self.source)
	go self.loop(ctx)
	return self.scanner.Run(ctx, self.source)
}
