package deviceagent

import (
	"context"
	"os"
	"time"
)

// Device states as reported by the transport.
const (
	StateOnline  = "device"
	StateOffline = "offline"
)

// FileEntry describes one directory entry on the device.
type FileEntry struct {
	Name    string
	Mode    os.FileMode
	Size    int64
	ModTime time.Time
}

// Adb is the narrow transport contract a Device session is built on. The
// production implementation lives in providers/adb; tests supply a scripted
// fake.
//
// Shell runs one command line through the device shell and returns its raw
// combined output. A nonzero exit must surface as a *CommandFailedError
// carrying the partial output; transport-level loss of the device must
// surface as a *DeviceUnreachableError.
type Adb interface {
	Serial() string
	Shell(cmd string) (string, error)
	Push(hostPath, devicePath string) error
	Pull(devicePath, hostPath string) error
	Ls(devicePath string) ([]FileEntry, error)
	State() (string, error)
	Reboot() error
	Root() error
	WaitForDevice(ctx context.Context) error
}
