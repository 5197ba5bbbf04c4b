// Package graphite writes metrics using the carbon plaintext protocol.
package graphite

import (
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

const BatchSize = 4096

const DefaultPort = "2003"

type IGraphite interface {
	Add(path string, timestamp int64, value float64) error
	Flush() error
}

type Graphite struct {
	address string
	mu      sync.Mutex
	buffer  strings.Builder
}

var dailer = func(network, address string) (io.ReadWriteCloser, error) {
	return net.Dial(network, address)
}

// New creates a client for host or host:port.
func New(address string) *Graphite {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, DefaultPort)
	}
	return &Graphite{address: address}
}

func (graphite *Graphite) Add(path string, timestamp int64, value float64) error {
	graphite.mu.Lock()
	fmt.Fprintf(&graphite.buffer, "%s %v %d\n", path, value, timestamp)
	full := graphite.buffer.Len() > BatchSize
	graphite.mu.Unlock()
	if full {
		return graphite.Flush()
	}
	return nil
}

func (graphite *Graphite) Flush() error {
	graphite.mu.Lock()
	defer graphite.mu.Unlock()
	if graphite.buffer.Len() == 0 {
		return nil
	}
	conn, err := dailer("tcp", graphite.address)
	if err != nil {
		return errors.Wrapf(err, "graphite %s", graphite.address)
	}
	defer conn.Close()
	if _, err := io.WriteString(conn, graphite.buffer.String()); err != nil {
		return errors.Wrapf(err, "graphite %s", graphite.address)
	}
	graphite.buffer.Reset()
	return nil
}

// AddFields adds every numeric field under prefix, in key order. Booleans
// are written as 0 or 1; other values are skipped.
func AddFields(g IGraphite, prefix string, timestamp int64, fields map[string]interface{}) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var value float64
		switch v := fields[k].(type) {
		case float64:
			value = v
		case int:
			value = float64(v)
		case bool:
			if v {
				value = 1
			}
		default:
			continue
		}
		if err := g.Add(prefix+"."+k, timestamp, value); err != nil {
			return err
		}
	}
	return nil
}
