package deviceagent

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// FileExists reports whether devicePath exists.
func (d *Device) FileExists(devicePath string) (bool, error) {
	_, err := d.RunShellCommand(Argv("test", "-e", devicePath), ShellOptions{CheckReturn: true})
	if err != nil {
		if IsCommandFailed(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Ls lists the entries of a device directory.
func (d *Device) Ls(devicePath string) ([]FileEntry, error) {
	return d.adb.Ls(devicePath)
}

// Stat returns the attributes of one file or directory on the device.
func (d *Device) Stat(devicePath string) (FileEntry, error) {
	dir, target := path.Split(devicePath)
	entries, err := d.adb.Ls(path.Clean(dir))
	if err != nil {
		return FileEntry{}, err
	}
	for _, entry := range entries {
		if entry.Name == target {
			return entry, nil
		}
	}
	return FileEntry{}, &CommandFailedError{
		Serial: d.serial,
		Msg:    fmt.Sprintf("cannot find file or directory %q", devicePath),
	}
}

// PullFile copies a device file to the host, creating the host parent
// directory when missing.
func (d *Device) PullFile(devicePath, hostPath string) error {
	if dir := filepath.Dir(hostPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create host destination dir")
		}
	}
	return d.adb.Pull(devicePath, hostPath)
}

// TakeScreenshot captures the screen to hostPath and returns the path. An
// empty hostPath generates a timestamped name in the working directory.
func (d *Device) TakeScreenshot(hostPath string) (string, error) {
	if hostPath == "" {
		abs, err := filepath.Abs(fmt.Sprintf("screenshot-%s.png", time.Now().Format("20060102T150405")))
		if err != nil {
			return "", errors.Wrap(err, "resolve screenshot path")
		}
		hostPath = abs
	}
	tmp := d.newTempFile(".png")
	defer tmp.Delete()
	if _, err := d.RunShellCommand(
		Argv("/system/bin/screencap", "-p", tmp.path), ShellOptions{CheckReturn: true}); err != nil {
		return "", err
	}
	if err := d.PullFile(tmp.path, hostPath); err != nil {
		return "", err
	}
	return hostPath, nil
}
