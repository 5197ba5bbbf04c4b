// Package scanner runs the beacon registries: it routes scanned
// advertisements to the first matching format, drives the notify and
// aging cycle and drains the registries into published batches.
package scanner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Knetic/govaluate"
	"github.com/pkg/errors"

	"github.com/barnybug/gobeacon/beacon"
)

const (
	DefaultPeriod = 10 * time.Second
	DefaultMissed = 1
	DefaultChunk  = 1024
	DefaultEvent  = "scan"
)

var ErrRunning = errors.New("continuous scan running")

type Options struct {
	// Kinds enabled for matching. Zero enables all.
	Kinds beacon.KindSet
	// Period of one continuous scan cycle; records age once per period.
	Period time.Duration
	// Missed is the number of aging passes a record survives unseen.
	Missed int
	// Event prefixes the topic of published batches.
	Event string
	// Chunk is the byte budget of one published batch.
	Chunk int
	// MemorySaver publishes during a scan as soon as a registry holds a
	// full chunk.
	MemorySaver bool
	// Filter is an optional expression over a record's fields; records
	// it does not accept are not published.
	Filter string
}

func (o *Options) setDefaults() {
	if o.Kinds == 0 {
		o.Kinds = beacon.AllKinds
	}
	if o.Period <= 0 {
		o.Period = DefaultPeriod
	}
	if o.Missed < 1 {
		o.Missed = DefaultMissed
	}
	if o.Event == "" {
		o.Event = DefaultEvent
	}
	if o.Chunk <= 0 {
		o.Chunk = DefaultChunk
	}
}

// Unmatched receives advertisements no enabled format claimed.
type Unmatched func(adv *beacon.Advertisement)

type Scanner struct {
	opts       Options
	registries map[beacon.Kind]*beacon.Registry
	filter     *govaluate.EvaluableExpression

	mu        sync.Mutex
	published map[beacon.Kind]map[beacon.Address]bool
	scanDone  bool
	cancel    context.CancelFunc
	unmatched []Unmatched
}

func New(opts Options) (*Scanner, error) {
	opts.setDefaults()
	s := &Scanner{
		opts:       opts,
		registries: map[beacon.Kind]*beacon.Registry{},
		published:  map[beacon.Kind]map[beacon.Address]bool{},
	}
	for _, k := range beacon.Kinds() {
		s.registries[k] = beacon.NewRegistry(k)
	}
	if opts.Filter != "" {
		expr, err := govaluate.NewEvaluableExpression(opts.Filter)
		if err != nil {
			return nil, errors.Wrapf(err, "filter %q", opts.Filter)
		}
		s.filter = expr
	}
	return s, nil
}

func (s *Scanner) Options() Options {
	return s.opts
}

func (s *Scanner) Registry(k beacon.Kind) *beacon.Registry {
	return s.registries[k]
}

// Observe subscribes to the events of every registry.
func (s *Scanner) Observe(o beacon.Observer) {
	for _, k := range beacon.Kinds() {
		s.registries[k].Observe(o)
	}
}

// OnUnmatched registers a fallback for advertisements of unknown formats.
func (s *Scanner) OnUnmatched(f Unmatched) {
	s.mu.Lock()
	s.unmatched = append(s.unmatched, f)
	s.mu.Unlock()
}

func (s *Scanner) isPublished(k beacon.Kind, addr beacon.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published[k][addr]
}

// Process routes a batch of advertisements. Each goes to the first enabled
// format that claims it; addresses already published during the current
// scan are skipped. Repeated sightings within one scan period update the
// record without suppressing its entered event.
func (s *Scanner) Process(batch []*beacon.Advertisement) {
	for _, adv := range batch {
		if adv == nil {
			continue
		}
		f, ok := beacon.Match(adv, s.opts.Kinds)
		if !ok {
			s.mu.Lock()
			unmatched := s.unmatched
			s.mu.Unlock()
			for _, u := range unmatched {
				u(adv)
			}
			continue
		}
		if s.isPublished(f.Kind, adv.Address) {
			continue
		}
		_, err := s.registries[f.Kind].AddOrUpdate(adv, f.Decode)
		if err != nil {
			slog.Debug("Decode failed", "addr", adv.Address, "kind", f.Kind, "error", err)
		}
	}
}

// Loop raises entered events and, once a scan period has completed, ages
// every registry. Call it regularly while a continuous scan is running.
func (s *Scanner) Loop() {
	for _, k := range beacon.Kinds() {
		s.registries[k].NotifyNew()
	}
	s.mu.Lock()
	done := s.scanDone
	s.scanDone = false
	s.mu.Unlock()
	if !done {
		return
	}
	for _, k := range beacon.Kinds() {
		s.registries[k].AgeAndPrune(s.opts.Missed)
	}
}

// Run scans continuously until ctx ends or Stop is called. The period flag
// consumed by Loop is raised every Options.Period.
func (s *Scanner) Run(ctx context.Context, source Source) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()

	started := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		batch, err := source.Collect(ctx)
		s.Process(batch)
		if err != nil && !isWindowEnd(err) {
			return errors.Wrap(err, "scan")
		}
		if time.Since(started) >= s.opts.Period {
			for _, k := range beacon.Kinds() {
				s.registries[k].NextScan()
			}
			s.mu.Lock()
			s.scanDone = true
			s.mu.Unlock()
			started = time.Now()
		}
	}
}

// Stop ends a running continuous scan.
func (s *Scanner) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
}

func (s *Scanner) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func isWindowEnd(err error) bool {
	cause := errors.Cause(err)
	return cause == context.DeadlineExceeded || cause == context.Canceled
}

func (s *Scanner) reset() {
	s.mu.Lock()
	s.published = map[beacon.Kind]map[beacon.Address]bool{}
	s.mu.Unlock()
	for _, k := range beacon.Kinds() {
		s.registries[k].Clear()
	}
}

// Scan clears the registries then collects advertisements for d.
func (s *Scanner) Scan(ctx context.Context, source Source, d time.Duration) error {
	return s.scan(ctx, source, d, nil)
}

// ScanAndPublish scans for d, publishing full chunks while scanning, then
// drains every enabled registry to sink.
func (s *Scanner) ScanAndPublish(ctx context.Context, source Source, d time.Duration, sink Sink) error {
	if err := s.scan(ctx, source, d, sink); err != nil {
		return err
	}
	s.Publish(sink, s.opts.Kinds)
	return nil
}

func (s *Scanner) scan(ctx context.Context, source Source, d time.Duration, sink Sink) error {
	if s.running() {
		return ErrRunning
	}
	s.reset()
	scanCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	for scanCtx.Err() == nil {
		batch, err := source.Collect(scanCtx)
		s.Process(batch)
		if sink != nil {
			s.publishFull(sink)
		}
		if err != nil && !isWindowEnd(err) {
			return errors.Wrap(err, "scan")
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}
