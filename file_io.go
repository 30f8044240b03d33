package deviceagent

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var lsLineRe = regexp.MustCompile(
	`(?P<perms>\S+) +(?P<owner>\S+) +(?P<group>\S+) +(?:(?P<size>\d+) +)?` +
		`(?P<date>\S+) +(?P<time>\S+) +(?P<name>.+)$`)

// ReadFile returns the contents of a device file. Small files are read
// through the shell with universal newlines (every line terminated,
// including the last); files above the shell output limit, or of unknown
// size, are pulled instead. A root-only path is first copied to a
// device-owned temp file, since the transport cannot pull it directly.
func (d *Device) ReadFile(devicePath string, asRoot bool) (string, error) {
	size := d.fileSizeViaLs(devicePath, asRoot)

	if size < 0 || size <= maxShellOutputLength {
		lines, err := d.RunShellCommand(Argv("cat", devicePath), ShellOptions{CheckReturn: true, AsRoot: asRoot})
		if err != nil {
			return "", err
		}
		return joinLines(lines), nil
	}

	if asRoot {
		needsSU, err := d.NeedsSU()
		if err != nil {
			return "", err
		}
		if needsSU {
			tmp := d.newTempFile("")
			defer tmp.Delete()
			if _, err := d.RunShellCommand(
				Argv("cp", devicePath, tmp.path), ShellOptions{CheckReturn: true, AsRoot: true}); err != nil {
				return "", err
			}
			return d.readFileWithPull(tmp.path)
		}
	}
	return d.readFileWithPull(devicePath)
}

// fileSizeViaLs parses `ls -l` output for the file size; -1 when it cannot
// be determined. Stat cannot be used here because it has no root path.
func (d *Device) fileSizeViaLs(devicePath string, asRoot bool) int64 {
	lines, err := d.RunShellCommand(Argv("ls", "-l", devicePath), ShellOptions{CheckReturn: true, AsRoot: asRoot})
	if err != nil {
		return -1
	}
	base := path.Base(devicePath)
	for _, line := range lines {
		m := lsLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := m[lsLineRe.SubexpIndex("name")]
		rawSize := m[lsLineRe.SubexpIndex("size")]
		if name != base || rawSize == "" {
			continue
		}
		if size, convErr := strconv.ParseInt(rawSize, 10, 64); convErr == nil {
			return size
		}
	}
	log.Warn().Str("serial", d.serial).Str("path", devicePath).
		Msg("could not determine device file size")
	return -1
}

func (d *Device) readFileWithPull(devicePath string) (string, error) {
	hostDir, err := os.MkdirTemp("", "deviceagent-pull-")
	if err != nil {
		return "", errors.Wrap(err, "create host temp dir for pull")
	}
	defer os.RemoveAll(hostDir)

	hostPath := filepath.Join(hostDir, "pulled")
	if err := d.adb.Pull(devicePath, hostPath); err != nil {
		return "", err
	}
	data, err := os.ReadFile(hostPath)
	if err != nil {
		return "", errors.Wrap(err, "read pulled file")
	}
	return string(data), nil
}

// WriteFile writes contents to a device path. Short contents go through a
// single echo command; longer contents (or forcePush) are pushed via a host
// temp file. When root is required, the push lands on a device temp file
// first and is then copied (not moved, the temp and destination may sit on
// different filesystems) into place with elevated privilege.
func (d *Device) WriteFile(devicePath, contents string, asRoot, forcePush bool) error {
	if !forcePush && len(contents) < maxCommandLength {
		line := "echo -n " + singleQuote(contents) + " > " + singleQuote(devicePath)
		_, err := d.RunShellCommand(ShellLine(line), ShellOptions{CheckReturn: true, AsRoot: asRoot})
		return err
	}

	if asRoot {
		needsSU, err := d.NeedsSU()
		if err != nil {
			return err
		}
		if needsSU {
			tmp := d.newTempFile("")
			defer tmp.Delete()
			if err := d.writeFileWithPush(tmp.path, contents); err != nil {
				return err
			}
			_, err = d.RunShellCommand(
				Argv("cp", tmp.path, devicePath), ShellOptions{CheckReturn: true, AsRoot: true})
			return err
		}
	}
	return d.writeFileWithPush(devicePath, contents)
}

func (d *Device) writeFileWithPush(devicePath, contents string) error {
	hostFile, err := os.CreateTemp("", "deviceagent-push-")
	if err != nil {
		return errors.Wrap(err, "create host temp file for push")
	}
	defer os.Remove(hostFile.Name())

	if _, err := hostFile.WriteString(contents); err != nil {
		hostFile.Close()
		return errors.Wrap(err, "write host temp file")
	}
	if err := hostFile.Close(); err != nil {
		return errors.Wrap(err, "close host temp file")
	}
	return d.adb.Push(hostFile.Name(), devicePath)
}
