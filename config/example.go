package config

// ExampleYaml is a complete configuration, used by tests and printed by
// the cli as a starting point.
var ExampleYaml = `
scanner:
  backend: hci
  adapter: hci0
  period: 10s
  missed: 2
  formats: [ibeacon, eddystone, ruuvi, bthome, shelly]
  window: 5s
publish:
  event: scan
  chunk: 1024
  memory_saver: true
  filter: rssi > -90
  interval: 1m
endpoints:
  mqtt:
    broker: tcp://127.0.0.1:1883
  graphite: 127.0.0.1:2003
devices:
  "C0:FF:EE:00:00:01":
    name: tag.keys
    location: hall
  "d4-ca-6e-11-22-33":
    name: sensor.fridge
    location: kitchen
  "AA:BB:CC:DD:EE:FF": {}
`

var ExampleConfig *Config

func init() {
	var err error
	ExampleConfig, err = OpenRaw([]byte(ExampleYaml))
	if err != nil {
		panic(err)
	}
}
