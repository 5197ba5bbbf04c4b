package ble

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/barnybug/gobeacon/config"
)

// Open starts the configured backend on adapter.
func Open(backend, adapter string, batch time.Duration) (Source, error) {
	slog.Info("Opening bluetooth", "backend", backend, "adapter", adapter)
	switch backend {
	case config.BackendHCI, "":
		return NewHCISource(adapter, batch)
	case config.BackendBlueZ:
		return NewBluezSource(adapter, batch)
	}
	return nil, errors.Errorf("unknown backend %q", backend)
}
