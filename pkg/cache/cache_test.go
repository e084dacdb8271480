package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dd0wney/gac/pkg/topology"
)

func sampleNetwork(t *testing.T) *topology.Network {
	t.Helper()
	b := topology.NewBuilder(100)
	bus1 := b.AddBus("1", topology.Bus{VMin: 0.9, VMax: 1.1})
	bus2 := b.AddBus("2", topology.Bus{VMin: 0.9, VMax: 1.1})
	b.AddBranch("l1", topology.Branch{From: bus1, To: bus2, X: 0.1, Tap: 1, Status: true})
	b.AddGen("g1", topology.Gen{Bus: bus1, Status: true, PMax: 100})
	b.AddLoad("d1", topology.Load{Bus: bus2, PMW: 50})
	net, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return net
}

func TestGetPut_RoundTrip(t *testing.T) {
	c := New(1 << 20)
	fp := Fingerprint{1, 2, 3}
	e := Compress([]byte("hello world"))

	if _, ok := c.Get(fp); ok {
		t.Fatal("expected miss before Put")
	}
	c.Put(fp, e)
	got, ok := c.Get(fp)
	if !ok {
		t.Fatal("expected hit after Put")
	}
	payload, err := Decompress(got)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if string(payload) != "hello world" {
		t.Errorf("payload = %q", payload)
	}
}

func TestPut_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(30) // small budget forces eviction
	a := Fingerprint{0xA}
	b := Fingerprint{0xB}
	cc := Fingerprint{0xC}

	c.Put(a, Entry{Payload: []byte("x"), UncompressedN: 15})
	c.Put(b, Entry{Payload: []byte("y"), UncompressedN: 15})
	// a and b now fill the 30-byte budget; touch a to make b the LRU victim.
	c.Get(a)
	c.Put(cc, Entry{Payload: []byte("z"), UncompressedN: 15})

	if _, ok := c.Get(b); ok {
		t.Error("expected b to be evicted as least recently used")
	}
	if _, ok := c.Get(a); !ok {
		t.Error("expected a to survive eviction (recently touched)")
	}
	if _, ok := c.Get(cc); !ok {
		t.Error("expected newly inserted c to be present")
	}
}

func TestPut_ExistingKeyIsImmutableNoOp(t *testing.T) {
	c := New(1 << 20)
	fp := Fingerprint{9}
	c.Put(fp, Entry{Payload: []byte("first"), UncompressedN: 5})
	c.Put(fp, Entry{Payload: []byte("second"), UncompressedN: 6})

	got, _ := c.Get(fp)
	if string(got.Payload) != "first" {
		t.Errorf("expected immutable first insert to survive, got %q", got.Payload)
	}
}

func TestGetOrCompute_JoinsConcurrentCallers(t *testing.T) {
	c := New(1 << 20)
	fp := Fingerprint{7}

	var calls int64
	compute := func() (Entry, error) {
		atomic.AddInt64(&calls, 1)
		return Entry{Payload: []byte("v"), UncompressedN: 1}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetOrCompute(fp, compute); err != nil {
				t.Errorf("GetOrCompute failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("compute called %d times, want exactly 1", got)
	}
}

func TestGetOrCompute_PropagatesError(t *testing.T) {
	c := New(1 << 20)
	fp := Fingerprint{8}
	wantErr := errors.New("solve failed")

	_, err := c.GetOrCompute(fp, func() (Entry, error) { return Entry{}, wantErr })
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
	if c.Len() != 0 {
		t.Error("expected a failed compute not to populate the cache")
	}
}

func TestComputeFingerprint_DeterministicAndDiscriminantSensitive(t *testing.T) {
	net := sampleNetwork(t)

	fp1 := ComputeFingerprint(net, "dcpf", nil)
	fp2 := ComputeFingerprint(net, "dcpf", nil)
	if fp1 != fp2 {
		t.Error("expected identical fingerprints for identical inputs")
	}

	fp3 := ComputeFingerprint(net, "acpf", nil)
	if fp1 == fp3 {
		t.Error("expected different discriminants to produce different fingerprints")
	}

	fp4 := ComputeFingerprint(net, "dcpf", []byte("opt=1"))
	if fp1 == fp4 {
		t.Error("expected different options payloads to produce different fingerprints")
	}
}

func dispatchNetwork(t *testing.T, genPMW float64, vset *float64) *topology.Network {
	t.Helper()
	b := topology.NewBuilder(100)
	bus1 := b.AddBus("1", topology.Bus{VMin: 0.9, VMax: 1.1})
	bus2 := b.AddBus("2", topology.Bus{VMin: 0.9, VMax: 1.1})
	b.AddBranch("l1", topology.Branch{From: bus1, To: bus2, X: 0.1, Tap: 1, Status: true})
	b.AddGen("g1", topology.Gen{Bus: bus1, Status: true, PMW: genPMW, PMax: 100, VSetpoint: vset})
	b.AddLoad("d1", topology.Load{Bus: bus2, PMW: 50})
	net, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return net
}

func TestComputeFingerprint_SensitiveToGeneratorDispatch(t *testing.T) {
	base := ComputeFingerprint(dispatchNetwork(t, 40, nil), "dcpf", nil)

	if redispatched := ComputeFingerprint(dispatchNetwork(t, 60, nil), "dcpf", nil); base == redispatched {
		t.Error("networks differing only in Gen.PMW must not share a fingerprint")
	}

	vset := 1.02
	if withSetpoint := ComputeFingerprint(dispatchNetwork(t, 40, &vset), "dcpf", nil); base == withSetpoint {
		t.Error("adding a generator voltage setpoint must change the fingerprint")
	}

	zero := 0.0
	if zeroSetpoint := ComputeFingerprint(dispatchNetwork(t, 40, &zero), "dcpf", nil); base == zeroSetpoint {
		t.Error("a present-but-zero setpoint must hash differently from no setpoint")
	}
}
