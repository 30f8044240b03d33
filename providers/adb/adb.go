// Package adb adapts the gadb wire client to the deviceagent transport
// contract. Shell exit codes are recovered through an echoed trailer since
// the shell stream itself does not carry them.
package adb

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	deviceagent "github.com/httprunner/DeviceAgent"
	gadb "github.com/httprunner/httprunner/v5/pkg/gadb"
	"github.com/pkg/errors"
)

const exitMarker = ":DA_RET="

// Transport implements deviceagent.Adb over one gadb device.
type Transport struct {
	client gadb.Client
	dev    *gadb.Device
	serial string
}

// Connect resolves serial to a Transport. An empty serial is accepted when
// exactly one device is attached. This is also the conversion point for
// legacy identifiers: anything that knows its serial can be handed here.
func Connect(serial string) (*Transport, error) {
	client, err := gadb.NewClient()
	if err != nil {
		return nil, errors.Wrap(err, "init adb client")
	}
	return connectWith(client, serial)
}

// ConnectAll returns a Transport per attached device.
func ConnectAll() ([]*Transport, error) {
	client, err := gadb.NewClient()
	if err != nil {
		return nil, errors.Wrap(err, "init adb client")
	}
	devs, err := client.DeviceList()
	if err != nil {
		return nil, errors.Wrap(err, "list adb devices")
	}
	transports := make([]*Transport, 0, len(devs))
	for _, dev := range devs {
		if dev == nil {
			continue
		}
		transports = append(transports, &Transport{
			client: client,
			dev:    dev,
			serial: strings.TrimSpace(dev.Serial()),
		})
	}
	return transports, nil
}

func connectWith(client gadb.Client, serial string) (*Transport, error) {
	devs, err := client.DeviceList()
	if err != nil {
		return nil, errors.Wrap(err, "list adb devices")
	}
	target := strings.TrimSpace(serial)
	if target == "" {
		if len(devs) != 1 {
			return nil, errors.Errorf("need an explicit serial with %d devices attached", len(devs))
		}
		return &Transport{client: client, dev: devs[0], serial: strings.TrimSpace(devs[0].Serial())}, nil
	}
	for _, dev := range devs {
		if dev != nil && strings.TrimSpace(dev.Serial()) == target {
			return &Transport{client: client, dev: dev, serial: target}, nil
		}
	}
	return nil, errors.Errorf("device %s not found", serial)
}

// Serial returns the device serial this transport is bound to.
func (t *Transport) Serial() string { return t.serial }

// Shell runs cmd through the device shell. A nonzero exit surfaces as a
// CommandFailedError carrying the partial output.
func (t *Transport) Shell(cmd string) (string, error) {
	raw, err := t.dev.RunShellCommand(cmd + "; echo " + exitMarker + "$?")
	if err != nil {
		return "", t.classify(err, "shell")
	}
	idx := strings.LastIndex(raw, exitMarker)
	if idx < 0 {
		return raw, nil
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(raw[idx+len(exitMarker):]))
	output := strings.TrimSuffix(raw[:idx], "\n")
	if convErr != nil {
		return output, nil
	}
	if code != 0 {
		return output, &deviceagent.CommandFailedError{
			Serial: t.serial,
			Msg:    fmt.Sprintf("command exited with status %d", code),
			Output: outputLines(output),
		}
	}
	return output, nil
}

// Push copies a host file, or a host directory tree, to the device.
func (t *Transport) Push(hostPath, devicePath string) error {
	info, err := os.Stat(hostPath)
	if err != nil {
		return errors.Wrapf(err, "stat %s", hostPath)
	}
	if !info.IsDir() {
		return t.pushFile(hostPath, devicePath, info.ModTime())
	}
	return filepath.WalkDir(hostPath, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(hostPath, p)
		if err != nil {
			return err
		}
		fi, err := entry.Info()
		if err != nil {
			return err
		}
		target := strings.TrimSuffix(devicePath, "/") + "/" + filepath.ToSlash(rel)
		return t.pushFile(p, target, fi.ModTime())
	})
}

func (t *Transport) pushFile(hostPath, devicePath string, modTime time.Time) error {
	src, err := os.Open(hostPath)
	if err != nil {
		return errors.Wrapf(err, "open %s", hostPath)
	}
	defer src.Close()
	if err := t.dev.Push(src, devicePath, modTime); err != nil {
		return t.classify(err, "push")
	}
	return nil
}

// Pull copies one device file to the host.
func (t *Transport) Pull(devicePath, hostPath string) error {
	dst, err := os.OpenFile(hostPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "create %s", hostPath)
	}
	defer dst.Close()
	if err := t.dev.Pull(devicePath, dst); err != nil {
		return t.classify(err, "pull")
	}
	return nil
}

// Ls lists a device directory.
func (t *Transport) Ls(devicePath string) ([]deviceagent.FileEntry, error) {
	infos, err := t.dev.List(devicePath)
	if err != nil {
		return nil, t.classify(err, "list")
	}
	entries := make([]deviceagent.FileEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, deviceagent.FileEntry{
			Name:    info.Name,
			Mode:    info.Mode,
			Size:    int64(info.Size),
			ModTime: info.LastModified,
		})
	}
	return entries, nil
}

// State returns the raw transport state name for the device.
func (t *Transport) State() (string, error) {
	state, err := t.dev.State()
	if err != nil {
		return "", errors.Wrap(err, "get device state")
	}
	return string(state), nil
}

// Reboot asks the device to reboot via the adb binary; the transport
// protocol has no reboot service exposed through gadb.
func (t *Transport) Reboot() error {
	return t.execAdb("reboot")
}

// Root restarts the device-side daemon with root privileges.
func (t *Transport) Root() error {
	return t.execAdb("root")
}

// WaitForDevice polls until the device reports online or ctx is done.
func (t *Transport) WaitForDevice(ctx context.Context) error {
	for {
		if state, err := t.State(); err == nil && state == deviceagent.StateOnline {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
}

// classify turns a transport-level failure into DeviceUnreachableError when
// the device has actually dropped, so callers can tell "command failed on a
// live device" from "device disappeared".
func (t *Transport) classify(err error, op string) error {
	state, stateErr := t.dev.State()
	return classifyFailure(t.serial, op, err, string(state), stateErr)
}

// classifyFailure decides, from the post-failure device state, whether err
// means the device is gone or the operation failed on a live device.
func classifyFailure(serial, op string, err error, state string, stateErr error) error {
	if stateErr != nil {
		return &deviceagent.DeviceUnreachableError{Serial: serial}
	}
	if state != deviceagent.StateOnline {
		return &deviceagent.DeviceUnreachableError{Serial: serial, State: state}
	}
	return errors.Wrapf(err, "adb %s on %s", op, serial)
}

func outputLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.TrimSuffix(raw, "\n")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "\n")
}
