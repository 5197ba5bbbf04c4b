package scanner

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barnybug/gobeacon/beacon"
	"github.com/barnybug/gobeacon/pubsub/dummy"
)

func mustHex(s string) []byte {
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		panic(err)
	}
	return b
}

func addr(i int) beacon.Address {
	return beacon.Address(fmt.Sprintf("AA:00:00:00:00:%02X", i))
}

func bthome(i int, rssi int) *beacon.Advertisement {
	return &beacon.Advertisement{Address: addr(i), RSSI: rssi,
		ServiceData: [][]byte{mustHex("D2 FC 44 00 2A 01 64 3A 01")}}
}

func ibeacon(i int) *beacon.Advertisement {
	return &beacon.Advertisement{Address: addr(i), RSSI: -60,
		ManufacturerData: mustHex("4C 00 02 15 E2C56DB5DFFB48D2B060D0F5A71096E0 0001 0002 C5")}
}

// stubSource replays batches, then blocks until the window ends.
type stubSource struct {
	mu      sync.Mutex
	batches [][]*beacon.Advertisement
	calls   int
}

func (s *stubSource) Collect(ctx context.Context) ([]*beacon.Advertisement, error) {
	s.mu.Lock()
	s.calls++
	if len(s.batches) > 0 {
		b := s.batches[0]
		s.batches = s.batches[1:]
		s.mu.Unlock()
		return b, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func newScanner(t *testing.T, opts Options) *Scanner {
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func TestNewDefaults(t *testing.T) {
	s := newScanner(t, Options{})
	o := s.Options()
	assert.Equal(t, beacon.AllKinds, o.Kinds)
	assert.Equal(t, DefaultPeriod, o.Period)
	assert.Equal(t, 1, o.Missed)
	assert.Equal(t, "scan", o.Event)
	assert.Equal(t, 1024, o.Chunk)
	assert.Equal(t, "scan-lairdbt510", s.Topic(beacon.LairdBT510))

	_, err := New(Options{Filter: "rssi >"})
	assert.Error(t, err)
}

func TestProcessRoutes(t *testing.T) {
	s := newScanner(t, Options{})
	var unmatched []beacon.Address
	s.OnUnmatched(func(adv *beacon.Advertisement) { unmatched = append(unmatched, adv.Address) })

	other := &beacon.Advertisement{Address: addr(3), ManufacturerData: mustHex("FF FF 01")}
	s.Process([]*beacon.Advertisement{ibeacon(1), bthome(2, -60), other, nil})
	assert.Equal(t, 1, s.Registry(beacon.IBeacon).Len())
	assert.Equal(t, 1, s.Registry(beacon.BTHome).Len())
	assert.Equal(t, []beacon.Address{addr(3)}, unmatched)
}

func TestProcessDisabledFormat(t *testing.T) {
	s := newScanner(t, Options{Kinds: beacon.SetOf(beacon.BTHome)})
	var unmatched int
	s.OnUnmatched(func(*beacon.Advertisement) { unmatched++ })
	s.Process([]*beacon.Advertisement{ibeacon(1), bthome(2, -60)})
	assert.Equal(t, 0, s.Registry(beacon.IBeacon).Len())
	assert.Equal(t, 1, s.Registry(beacon.BTHome).Len())
	assert.Equal(t, 1, unmatched)
}

func TestProcessDropsDiscarded(t *testing.T) {
	s := newScanner(t, Options{})
	truncated := &beacon.Advertisement{Address: addr(1), ServiceData: [][]byte{mustHex("D2 FC 44 00")}}
	s.Process([]*beacon.Advertisement{truncated})
	assert.Equal(t, 0, s.Registry(beacon.BTHome).Len())
}

func TestLoop(t *testing.T) {
	s := newScanner(t, Options{Missed: 1})
	var events []string
	s.Observe(func(ev beacon.Event) {
		events = append(events, ev.Type.String()+" "+ev.Record.Address.String())
	})
	s.Process([]*beacon.Advertisement{bthome(1, -60)})

	s.Loop()
	assert.Equal(t, []string{"entered AA:00:00:00:00:01"}, events)
	// no completed period, no aging
	s.Loop()
	rec, ok := s.Registry(beacon.BTHome).Get(addr(1))
	require.True(t, ok)
	assert.Equal(t, 0, rec.Missed)

	s.scanDone = true
	s.Loop()
	rec, _ = s.Registry(beacon.BTHome).Get(addr(1))
	assert.Equal(t, 1, rec.Missed)
	assert.False(t, s.scanDone)

	s.scanDone = true
	s.Loop()
	assert.Equal(t, []string{"entered AA:00:00:00:00:01", "left AA:00:00:00:00:01"}, events)
	assert.Equal(t, 0, s.Registry(beacon.BTHome).Len())
}

func TestLoopRepeatedInFirstBatch(t *testing.T) {
	s := newScanner(t, Options{})
	var entered []beacon.Address
	s.Observe(func(ev beacon.Event) {
		if ev.Type == beacon.Entered {
			entered = append(entered, ev.Record.Address)
		}
	})
	uid := &beacon.Advertisement{Address: addr(2), RSSI: -60,
		ServiceData: [][]byte{mustHex("AA FE 00 E7 00112233445566778899 AABBCCDDEEFF")}}
	tlm := &beacon.Advertisement{Address: addr(2), RSSI: -60,
		ServiceData: [][]byte{mustHex("AA FE 20 00 0BB8 1780 00000064 000003E8")}}
	s.Process([]*beacon.Advertisement{ibeacon(1), ibeacon(1), uid, tlm, ibeacon(1)})
	s.Loop()
	assert.Equal(t, []beacon.Address{addr(1), addr(2)}, entered)

	rec, ok := s.Registry(beacon.Eddystone).Get(addr(2))
	require.True(t, ok)
	p := rec.Payload.(*beacon.EddystonePayload)
	assert.True(t, p.UID.Found)
	assert.True(t, p.TLM.Found)

	s.Process([]*beacon.Advertisement{ibeacon(1)})
	s.Loop()
	assert.Len(t, entered, 2)
}

func TestRunRepeatedSightings(t *testing.T) {
	s := newScanner(t, Options{})
	src := &stubSource{batches: [][]*beacon.Advertisement{
		{ibeacon(1), ibeacon(1)},
		{ibeacon(1)},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx, src)
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.calls > 2
	}, time.Second, time.Millisecond)

	events := s.Registry(beacon.IBeacon).NotifyNew()
	require.Len(t, events, 1)
	assert.Equal(t, addr(1), events[0].Record.Address)
}

func TestChunkSize(t *testing.T) {
	assert.Equal(t, 8, ChunkSize(beacon.IBeacon, 1024))
	assert.Equal(t, 11, ChunkSize(beacon.Kontakt, 1024))
	assert.Equal(t, 3, ChunkSize(beacon.Eddystone, 1024))
	assert.Equal(t, 10, ChunkSize(beacon.Ruuvi, 1024))
	assert.Equal(t, 42, ChunkSize(beacon.IBeacon, nonSaverBudget))
	assert.Equal(t, 1, ChunkSize(beacon.Eddystone, 100))
}

func TestPublishChunks(t *testing.T) {
	s := newScanner(t, Options{})
	var batch []*beacon.Advertisement
	for i := 1; i <= 25; i++ {
		batch = append(batch, bthome(i, -60))
	}
	s.Process(batch)

	pub := &dummy.Publisher{}
	s.Publish(pub, beacon.AllKinds)
	require.Len(t, pub.Events, 3)
	assert.Equal(t, []string{"scan-bthome", "scan-bthome", "scan-bthome"}, pub.Topics())
	assert.Len(t, pub.Events[0].Fields, 10)
	assert.Len(t, pub.Events[1].Fields, 10)
	assert.Len(t, pub.Events[2].Fields, 5)
	assert.Contains(t, pub.Events[0].Fields, "AA:00:00:00:00:01")
	assert.Contains(t, pub.Events[2].Fields, "AA:00:00:00:00:19")
	assert.Equal(t, 0, s.Registry(beacon.BTHome).Len())
}

func TestPublishOnlyRequested(t *testing.T) {
	s := newScanner(t, Options{Event: "beacons"})
	s.Process([]*beacon.Advertisement{ibeacon(1), bthome(2, -60)})
	pub := &dummy.Publisher{}
	s.Publish(pub, beacon.SetOf(beacon.IBeacon))
	assert.Equal(t, []string{"beacons-ibeacon"}, pub.Topics())
	assert.Equal(t, 1, s.Registry(beacon.BTHome).Len())
}

func TestPublishFilter(t *testing.T) {
	s := newScanner(t, Options{Filter: "rssi > -65 && battery >= 50"})
	s.Process([]*beacon.Advertisement{bthome(1, -60), bthome(2, -70), ibeacon(3)})
	pub := &dummy.Publisher{}
	s.Publish(pub, beacon.AllKinds)
	// the ibeacon record has no battery field and is dropped
	require.Len(t, pub.Events, 1)
	assert.Equal(t, []string{"AA:00:00:00:00:01"}, keys(pub.Events[0].Fields))
	assert.Equal(t, 0, s.Registry(beacon.IBeacon).Len())
}

func keys(m map[string]interface{}) []string {
	var ret []string
	for k := range m {
		ret = append(ret, k)
	}
	return ret
}

func TestScanAndPublishMemorySaver(t *testing.T) {
	s := newScanner(t, Options{MemorySaver: true, Chunk: 200})
	src := &stubSource{batches: [][]*beacon.Advertisement{
		{bthome(1, -60), bthome(2, -60), bthome(3, -60)},
		{bthome(1, -60), bthome(4, -60)},
	}}
	pub := &dummy.Publisher{}
	err := s.ScanAndPublish(context.Background(), src, 50*time.Millisecond, pub)
	require.NoError(t, err)

	require.Len(t, pub.Events, 2)
	assert.ElementsMatch(t, []string{"AA:00:00:00:00:01", "AA:00:00:00:00:02"}, keys(pub.Events[0].Fields))
	// 01 was already published during this scan and is not collected again
	assert.ElementsMatch(t, []string{"AA:00:00:00:00:03", "AA:00:00:00:00:04"}, keys(pub.Events[1].Fields))
	assert.Equal(t, 0, s.Registry(beacon.BTHome).Len())
}

func TestScanAndPublishDrainsAtEnd(t *testing.T) {
	s := newScanner(t, Options{})
	src := &stubSource{batches: [][]*beacon.Advertisement{{bthome(1, -60), ibeacon(2)}}}
	pub := &dummy.Publisher{}
	require.NoError(t, s.ScanAndPublish(context.Background(), src, 20*time.Millisecond, pub))
	assert.Equal(t, []string{"scan-ibeacon", "scan-bthome"}, pub.Topics())
}

func TestScanClears(t *testing.T) {
	s := newScanner(t, Options{})
	s.Process([]*beacon.Advertisement{bthome(1, -60)})
	src := &stubSource{batches: [][]*beacon.Advertisement{{bthome(2, -60)}}}
	require.NoError(t, s.Scan(context.Background(), src, 20*time.Millisecond))
	assert.False(t, s.Registry(beacon.BTHome).Contains(addr(1)))
	assert.True(t, s.Registry(beacon.BTHome).Contains(addr(2)))
}

func TestScanSourceError(t *testing.T) {
	s := newScanner(t, Options{})
	failure := errors.New("adapter down")
	src := SourceFunc(func(ctx context.Context) ([]*beacon.Advertisement, error) {
		return nil, failure
	})
	err := s.Scan(context.Background(), src, time.Second)
	assert.Equal(t, failure, errors.Cause(err))
}

func TestScanCancelled(t *testing.T) {
	s := newScanner(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Scan(ctx, &stubSource{}, time.Second)
	assert.Equal(t, context.Canceled, err)
}

func TestRun(t *testing.T) {
	s := newScanner(t, Options{Period: time.Nanosecond})
	src := &stubSource{batches: [][]*beacon.Advertisement{{bthome(1, -60)}}}
	done := make(chan error)
	go func() { done <- s.Run(context.Background(), src) }()

	require.Eventually(t, func() bool { return s.Registry(beacon.BTHome).Len() == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, s.running, time.Second, time.Millisecond)
	assert.Equal(t, ErrRunning, s.Run(context.Background(), src))
	assert.Equal(t, ErrRunning, s.Scan(context.Background(), src, time.Millisecond))

	s.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scan loop did not stop")
	}
	assert.False(t, s.running())
}

func TestRunFlagsPeriod(t *testing.T) {
	s := newScanner(t, Options{Period: time.Nanosecond})
	ctx, cancel := context.WithCancel(context.Background())
	src := SourceFunc(func(ctx context.Context) ([]*beacon.Advertisement, error) {
		defer cancel()
		time.Sleep(time.Millisecond)
		return []*beacon.Advertisement{bthome(1, -60)}, nil
	})
	require.NoError(t, s.Run(ctx, src))
	// entered, then aged once
	s.Loop()
	rec, _ := s.Registry(beacon.BTHome).Get(addr(1))
	assert.Equal(t, 1, rec.Missed)
}
