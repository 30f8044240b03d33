package deviceagent

import (
	"context"
	"strings"
	"sync"
	"testing"
)

func TestRunParallelVisitsEveryDevice(t *testing.T) {
	devices := make([]*Device, 3)
	for i := range devices {
		fake := newFakeAdb(nil)
		fake.serial = "SER" + string(rune('A'+i))
		devices[i] = NewDevice(fake, WithDefaultRetries(0))
	}

	var mu sync.Mutex
	seen := make(map[string]bool)
	err := RunParallel(context.Background(), devices, func(ctx context.Context, d *Device) error {
		mu.Lock()
		seen[d.Serial()] = true
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 3 {
		t.Fatalf("seen = %v, want all three devices", seen)
	}
}

func TestRunParallelRecoversPanic(t *testing.T) {
	devices := []*Device{NewDevice(newFakeAdb(nil), WithDefaultRetries(0))}
	err := RunParallel(context.Background(), devices, func(ctx context.Context, d *Device) error {
		panic("worker exploded")
	})
	if err == nil {
		t.Fatal("want the panic surfaced as an error")
	}
	if !strings.Contains(err.Error(), "worker exploded") {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), fakeSerial) {
		t.Fatalf("err = %v, want the device serial named", err)
	}
}
