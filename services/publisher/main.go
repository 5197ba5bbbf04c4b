// Service to publish batches of beacon readings.
//
// Every publish interval the scanner collects for one window, then every
// record is published in chunks as <event>-<format> events. Numeric
// readings are also written to graphite when an endpoint is configured.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/barnybug/gobeacon/beacon"
	"github.com/barnybug/gobeacon/lib/graphite"
	"github.com/barnybug/gobeacon/pubsub"
	"github.com/barnybug/gobeacon/scanner"
	"github.com/barnybug/gobeacon/services"
	"github.com/barnybug/gobeacon/util"
)

// Service publisher
type Service struct {
	scanner  *scanner.Scanner
	source   scanner.Source
	graphite graphite.IGraphite
}

func (self *Service) ID() string {
	return "publisher"
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
	if addr := services.Config.Endpoints.Graphite; addr != "" && self.graphite == nil {
		self.graphite = graphite.New(addr)
	}
	return nil
}

// metricPath names a beacon's series: its configured device name, or
// beacon.<kind>.<address>.
func metricPath(kind, addr string) string {
	if dev, ok := services.Config.LookupDevice(beacon.Address(addr)); ok {
		return dev.Name
	}
	return fmt.Sprintf("beacon.%s.%s", kind, strings.ToLower(strings.ReplaceAll(addr, ":", "")))
}

// Emit forwards a batch to the bus and its numeric readings to graphite.
func (self *Service) Emit(ev *pubsub.Event) {
	services.Publisher.Emit(ev)
	if self.graphite == nil {
		return
	}
	kind := ev.Topic[strings.LastIndex(ev.Topic, "-")+1:]
	ts := ev.Timestamp.Unix()
	for addr, value := range ev.Fields {
		fields, ok := value.(beacon.Fields)
		if !ok {
			continue
		}
		if err := graphite.AddFields(self.graphite, metricPath(kind, addr), ts, fields.Flatten()); err != nil {
			slog.Warn("Graphite failed", "error", err)
		}
	}
}

func (self *Service) publish(ctx context.Context) error {
	started := time.Now()
	err := self.scanner.ScanAndPublish(ctx, self.source, services.Config.Scanner.Window.Duration, self)
	if err != nil {
		return err
	}
	slog.Info("Published", "took", util.ShortDuration(time.Since(started)))
	if self.graphite != nil {
		if err := self.graphite.Flush(); err != nil {
			slog.Warn("Graphite flush failed", "error", err)
		}
	}
	return nil
}

func (self *Service) Run(ctx context.Context) error {
	go services.CloseSource(ctx, self.source)
	sched := util.NewScheduler(0, services.Config.Publish.Interval.Duration)
	defer sched.Stop()
	for {
		if err := self.publish(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-sched.C:
		}
	}
}
