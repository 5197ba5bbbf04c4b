package config

import (
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/barnybug/gobeacon/beacon"
	"github.com/barnybug/gobeacon/pubsub"
	"github.com/barnybug/gobeacon/util"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	DefaultPeriod   = 10 * time.Second
	DefaultMissed   = 1
	DefaultChunk    = 1024
	DefaultEvent    = "scan"
	DefaultInterval = time.Minute
	DefaultAdapter  = "hci0"
)

// Scanner backends.
const (
	BackendHCI   = "hci"
	BackendBlueZ = "bluez"
)

type Duration struct {
	time.Duration
}

func (self *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	d, err := util.ParseDuration(s)
	if err != nil {
		return err
	}
	self.Duration = d
	return nil
}

func (self Duration) MarshalYAML() (interface{}, error) {
	return self.Duration.String(), nil
}

type ScannerConf struct {
	Backend string
	Adapter string
	// Period between aging passes in continuous mode.
	Period Duration
	// Missed scan periods before a beacon is dropped.
	Missed  int
	Formats []string
	// Window is the length of one scan in scan-and-publish mode.
	Window Duration
}

type PublishConf struct {
	Event       string
	Chunk       int
	MemorySaver bool `yaml:"memory_saver"`
	// Filter is an expression evaluated against each record, eg "rssi > -80".
	Filter   string
	Interval Duration
}

type EndpointsConf struct {
	Mqtt struct {
		Broker string
	}
	Graphite string
}

type DeviceConf struct {
	Address  beacon.Address `yaml:"-"`
	Name     string
	Location string
}

// Configuration structure
type Config struct {
	Scanner   ScannerConf
	Publish   PublishConf
	Endpoints EndpointsConf
	Devices   map[string]DeviceConf

	byAddress map[beacon.Address]DeviceConf
}

// Open the default configuration file.
func Open() (*Config, error) {
	return OpenFile(ConfigPath("gobeacon.yml"))
}

// Open configuration from disk.
func OpenFile(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return OpenReader(file)
}

// Open configuration from a reader.
func OpenReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return OpenRaw(data)
}

// Open configuration from []byte.
func OpenRaw(data []byte) (*Config, error) {
	self := &Config{}
	if err := yaml.Unmarshal(data, self); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	self.setDefaults()

	self.byAddress = map[beacon.Address]DeviceConf{}
	for id, device := range self.Devices {
		addr, err := beacon.ParseAddress(id)
		if err != nil {
			return nil, errors.Wrap(err, "devices")
		}
		device.Address = addr
		if device.Name == "" {
			device.Name = "beacon." + strings.ReplaceAll(strings.ToLower(addr.String()), ":", "")
		}
		self.Devices[id] = device
		self.byAddress[addr] = device
	}
	return self, self.Validate()
}

func (self *Config) setDefaults() {
	if self.Scanner.Backend == "" {
		self.Scanner.Backend = BackendHCI
	}
	if self.Scanner.Adapter == "" {
		self.Scanner.Adapter = DefaultAdapter
	}
	if self.Scanner.Period.Duration == 0 {
		self.Scanner.Period.Duration = DefaultPeriod
	}
	if self.Scanner.Missed == 0 {
		self.Scanner.Missed = DefaultMissed
	}
	if self.Scanner.Window.Duration == 0 {
		self.Scanner.Window.Duration = DefaultPeriod
	}
	if self.Publish.Event == "" {
		self.Publish.Event = DefaultEvent
	}
	if self.Publish.Chunk == 0 {
		self.Publish.Chunk = DefaultChunk
	}
	if self.Publish.Interval.Duration == 0 {
		self.Publish.Interval.Duration = DefaultInterval
	}
}

// Validate checks the tunables are in range.
func (self *Config) Validate() error {
	switch {
	case self.Scanner.Missed < 1:
		return errors.Errorf("scanner.missed must be at least 1, got %d", self.Scanner.Missed)
	case self.Scanner.Period.Duration <= 0:
		return errors.Errorf("scanner.period must be positive, got %s", self.Scanner.Period)
	case self.Scanner.Window.Duration <= 0:
		return errors.Errorf("scanner.window must be positive, got %s", self.Scanner.Window)
	case self.Publish.Chunk < 1:
		return errors.Errorf("publish.chunk must be positive, got %d", self.Publish.Chunk)
	case self.Scanner.Backend != BackendHCI && self.Scanner.Backend != BackendBlueZ:
		return errors.Errorf("unknown scanner.backend %q", self.Scanner.Backend)
	}
	if _, err := self.Kinds(); err != nil {
		return errors.Wrap(err, "scanner.formats")
	}
	return nil
}

// Kinds returns the enabled beacon formats.
func (self *Config) Kinds() (beacon.KindSet, error) {
	return beacon.ParseKindSet(self.Scanner.Formats)
}

// LookupDevice finds the configured device for an address.
func (self *Config) LookupDevice(addr beacon.Address) (DeviceConf, bool) {
	dev, ok := self.byAddress[addr]
	return dev, ok
}

// AddDeviceToEvent names the device an event's source address belongs to.
func (self *Config) AddDeviceToEvent(ev *pubsub.Event) {
	dev, ok := self.LookupDevice(beacon.Address(ev.Source()))
	if !ok {
		return
	}
	ev.SetField("device", dev.Name)
	if dev.Location != "" {
		ev.SetField("location", dev.Location)
	}
}

// helpers

// Resolve a configuration file under .config/gobeacon
func ConfigPath(p string) string {
	config := os.Getenv("XDG_CONFIG_HOME")
	if config == "" {
		config = path.Join(os.Getenv("HOME"), ".config")
	}
	return path.Join(config, "gobeacon", p)
}
