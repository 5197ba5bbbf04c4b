// Package services holds the service registry and the shared setup of
// logging, configuration and the mqtt broker.
package services

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/barnybug/gobeacon/config"
	"github.com/barnybug/gobeacon/pubsub"
	"github.com/barnybug/gobeacon/pubsub/mqtt"
	"github.com/barnybug/gobeacon/util"
)

// Service interface
type Service interface {
	ID() string
	Run(ctx context.Context) error
}

// ServiceInit interface
type ServiceInit interface {
	Service
	Init() error
}

type Flags interface {
	Flags()
}

var serviceMap = map[string]Service{}
var Config *config.Config

var Publisher pubsub.Publisher
var Subscriber pubsub.Subscriber
var broker *mqtt.Broker

// HeartbeatInterval between heartbeat events.
var HeartbeatInterval = time.Minute

// SetupLogging installs the default logger: coloured text for a terminal,
// JSON when GOBEACON_ENV=prod.
func SetupLogging(level slog.Level) {
	var h slog.Handler
	if os.Getenv("GOBEACON_ENV") == "prod" {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		h = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05.000",
		})
	}
	slog.SetDefault(slog.New(h).With("app", "gobeacon"))
}

// SetupConfig loads the configuration from filename, or the default
// location when empty.
func SetupConfig(filename string) error {
	var err error
	if filename == "" {
		Config, err = config.Open()
	} else {
		Config, err = config.OpenFile(util.ExpandUser(filename))
	}
	return errors.Wrap(err, "config")
}

// BrokerURL is GOBEACON_MQTT, falling back to the configured broker.
func BrokerURL() string {
	if url := os.Getenv("GOBEACON_MQTT"); url != "" {
		return url
	}
	if Config != nil {
		return Config.Endpoints.Mqtt.Broker
	}
	return ""
}

func SetupBroker(name string) error {
	url := BrokerURL()
	if url == "" {
		return errors.New("set GOBEACON_MQTT or endpoints.mqtt.broker to the mqtt server, eg: tcp://127.0.0.1:1883")
	}
	var err error
	broker, err = mqtt.NewBroker(url, name)
	if err != nil {
		return err
	}
	Publisher = broker.Publisher()
	Subscriber = broker.Subscriber()
	return nil
}

func Register(service Service) {
	if _, exists := serviceMap[service.ID()]; exists {
		panic(fmt.Sprintf("Duplicate service registered: %s", service.ID()))
	}
	serviceMap[service.ID()] = service
}

// Names of the registered services, sorted.
func Names() []string {
	var ret []string
	for name := range serviceMap {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// Lookup resolves service names.
func Lookup(names []string) ([]Service, error) {
	var ret []Service
	for _, name := range names {
		service, ok := serviceMap[name]
		if !ok {
			return nil, errors.Errorf("service %s does not exist (available: %s)", name, strings.Join(Names(), ", "))
		}
		ret = append(ret, service)
	}
	return ret, nil
}

// Launch initializes then runs the named services until ctx ends or one
// of them fails.
func Launch(ctx context.Context, names []string) error {
	enabled, err := Lookup(names)
	if err != nil {
		return err
	}
	for _, service := range enabled {
		if f, ok := service.(Flags); ok {
			f.Flags()
		}
	}
	flag.Parse()

	for _, service := range enabled {
		slog.Info("Starting", "service", service.ID())
		if s, ok := service.(ServiceInit); ok {
			if err := s.Init(); err != nil {
				return errors.Wrapf(err, "init service %s", service.ID())
			}
			slog.Info("Initialized", "service", service.ID())
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, service := range enabled {
		service := service
		g.Go(func() error {
			if Publisher != nil {
				go Heartbeat(ctx, service.ID())
			}
			return errors.Wrapf(service.Run(ctx), "service %s", service.ID())
		})
	}
	return g.Wait()
}

// Heartbeat publishes a retained liveness event every HeartbeatInterval.
func Heartbeat(ctx context.Context, id string) {
	started := time.Now()
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		uptime := time.Since(started)
		ev := pubsub.NewEvent("heartbeat", pubsub.Fields{
			"device":  fmt.Sprintf("heartbeat.%s", id),
			"pid":     os.Getpid(),
			"started": started.Format(time.RFC3339),
			"uptime":  int(uptime.Seconds()),
			"message": "up " + util.ShortDuration(uptime),
		})
		ev.SetRetained(true)
		Publisher.Emit(ev)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func Shutdown() {
	if broker != nil {
		broker.Close()
	}
}
