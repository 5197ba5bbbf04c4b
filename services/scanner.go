package services

import (
	"context"
	"io"
	"log/slog"

	"github.com/barnybug/gobeacon/ble"
	"github.com/barnybug/gobeacon/config"
	"github.com/barnybug/gobeacon/scanner"
)

// ScannerOptions maps the configuration onto scanner options.
func ScannerOptions(conf *config.Config) (scanner.Options, error) {
	kinds, err := conf.Kinds()
	if err != nil {
		return scanner.Options{}, err
	}
	return scanner.Options{
		Kinds:       kinds,
		Period:      conf.Scanner.Period.Duration,
		Missed:      conf.Scanner.Missed,
		Event:       conf.Publish.Event,
		Chunk:       conf.Publish.Chunk,
		MemorySaver: conf.Publish.MemorySaver,
		Filter:      conf.Publish.Filter,
	}, nil
}

// OpenSource opens the configured bluetooth backend.
func OpenSource(conf *config.Config) (scanner.Source, error) {
	return ble.Open(conf.Scanner.Backend, conf.Scanner.Adapter, ble.DefaultBatch)
}

// CloseSource releases a source once ctx ends.
func CloseSource(ctx context.Context, source scanner.Source) {
	c, ok := source.(io.Closer)
	if !ok {
		return
	}
	<-ctx.Done()
	if err := c.Close(); err != nil {
		slog.Warn("Closing bluetooth", "error", err)
	}
}
