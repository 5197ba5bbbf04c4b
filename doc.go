// The gobeacon bluetooth beacon scanner
//
// Features
//
// - Decodes iBeacon, Eddystone (UID, URL, TLM, EID), Kontakt.io,
// Laird BT510, BTHome v2, Shelly BLU, Ruuvi (RAWv2) and SGWireless
// advertisements
//
// - Tracks beacons by address, with rolling signal strength, and raises
// entered/left events as they come into and go out of range
//
// - Publishes batches of readings over mqtt, sized to a byte budget and
// filtered by expression (eg rssi > -80)
//
// - Writes numeric readings to graphite
//
// Services
//
// - tracker: continuous scanning with entered/left/event notifications
//
// - publisher: periodic scan and publish
//
// Bluetooth backends
//
// - hci: raw HCI socket via go-ble (needs root or CAP_NET_ADMIN)
//
// - bluez: BlueZ over D-Bus via tinygo bluetooth
package gobeacon
