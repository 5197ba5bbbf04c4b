//go:build !linux

package ble

import (
	"runtime"
	"time"

	"github.com/pkg/errors"
)

func Open(backend, adapter string, batch time.Duration) (Source, error) {
	return nil, errors.Errorf("bluetooth scanning is not supported on %s", runtime.GOOS)
}
