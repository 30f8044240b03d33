package deviceagent

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"os"
	"testing"
	"time"

	"github.com/httprunner/DeviceAgent/internal/storage"
)

const fakeSerial = "FAKE0001"

// fakeAdb scripts the transport for session tests. Shell dispatch goes
// through handle; pushes land in memory and pulls are served from pullData.
type fakeAdb struct {
	serial string
	state  string
	handle func(cmd string) (string, error)

	shellCalls  []string
	pushes      []fakePush
	pullData    map[string]string
	pullDefault string
	pulled      []string
	lsEntries   map[string][]FileEntry
	reboots     int
	rebootStuck bool
	roots       int
	rootErr     error
}

type fakePush struct {
	hostPath   string
	devicePath string
	contents   string
}

func newFakeAdb(handle func(cmd string) (string, error)) *fakeAdb {
	return &fakeAdb{
		serial:    fakeSerial,
		state:     StateOnline,
		handle:    handle,
		pullData:  make(map[string]string),
		lsEntries: make(map[string][]FileEntry),
	}
}

func (f *fakeAdb) Serial() string { return f.serial }

func (f *fakeAdb) Shell(cmd string) (string, error) {
	f.shellCalls = append(f.shellCalls, cmd)
	if f.handle == nil {
		return "", nil
	}
	return f.handle(cmd)
}

func (f *fakeAdb) Push(hostPath, devicePath string) error {
	data, err := os.ReadFile(hostPath)
	if err != nil {
		return err
	}
	f.pushes = append(f.pushes, fakePush{hostPath: hostPath, devicePath: devicePath, contents: string(data)})
	return nil
}

func (f *fakeAdb) Pull(devicePath, hostPath string) error {
	f.pulled = append(f.pulled, devicePath)
	contents, ok := f.pullData[devicePath]
	if !ok {
		if f.pullDefault == "" {
			return &CommandFailedError{Serial: f.serial, Msg: "remote object does not exist: " + devicePath}
		}
		contents = f.pullDefault
	}
	return os.WriteFile(hostPath, []byte(contents), 0o644)
}

func (f *fakeAdb) Ls(devicePath string) ([]FileEntry, error) {
	return f.lsEntries[devicePath], nil
}

func (f *fakeAdb) State() (string, error) { return f.state, nil }

func (f *fakeAdb) Reboot() error {
	f.reboots++
	if !f.rebootStuck {
		f.state = StateOffline
	}
	return nil
}

func (f *fakeAdb) Root() error {
	f.roots++
	return f.rootErr
}

func (f *fakeAdb) WaitForDevice(ctx context.Context) error { return ctx.Err() }

func newFakeDevice(handle func(cmd string) (string, error)) (*Device, *fakeAdb) {
	fake := newFakeAdb(handle)
	device := NewDevice(fake, WithDefaultRetries(0), WithDefaultTimeout(5*time.Second))
	return device, fake
}

// noSU pre-answers the su probe so AsRoot commands run unwrapped.
func noSU(d *Device) {
	needed := false
	d.cache.needsSU = &needed
}

// withSU pre-answers the su probe so AsRoot commands wrap through su.
func withSU(d *Device) {
	needed := true
	d.cache.needsSU = &needed
}

func cmdFailed(lines ...string) error {
	return &CommandFailedError{
		Serial: fakeSerial,
		Msg:    "command exited with status 1",
		Output: lines,
	}
}

func md5Of(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// disableHashCache keeps hashing tests off the real per-user database.
func disableHashCache(t *testing.T) {
	t.Helper()
	t.Setenv("DEVICEAGENT_DISABLE_HASH_CACHE", "true")
	resetHashCache(t)
}

// resetHashCache reopens the hash cache singleton around a test, so a
// DEVICEAGENT_SQLITE_PATH override set through t.Setenv takes effect.
func resetHashCache(t *testing.T) {
	t.Helper()
	storage.ResetHashCacheForTest()
	t.Cleanup(storage.ResetHashCacheForTest)
}
