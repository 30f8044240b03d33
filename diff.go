package deviceagent

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// TransferUnit is one (host path, device path) file pair slated for
// copying. Directory pairs expand into one unit per contained file after
// diffing.
type TransferUnit struct {
	HostPath   string
	DevicePath string
}

// GetChangedFiles returns the transfer units under hostPath whose content
// differs from (or is missing at) the corresponding relative path below
// devicePath. When the device destination cannot be resolved it is presumed
// absent and the whole host path is returned; that is a conservative
// fallback, not an error.
func (d *Device) GetChangedFiles(hostPath, devicePath string) ([]TransferUnit, error) {
	realHostPath, err := filepath.EvalSymlinks(hostPath)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve host path %s", hostPath)
	}

	realDevicePath, err := d.RunShellLine(Argv("realpath", devicePath), ShellOptions{CheckReturn: true})
	if err != nil && !IsCommandFailed(err) {
		return nil, err
	}
	if realDevicePath == "" {
		return []TransferUnit{{HostPath: hostPath, DevicePath: devicePath}}, nil
	}

	hostRecords, err := hostHashes([]string{realHostPath})
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(realHostPath)
	if err != nil {
		return nil, errors.Wrapf(err, "stat host path %s", realHostPath)
	}
	if !info.IsDir() {
		deviceRecords, err := d.deviceHashes([]string{realDevicePath})
		if err != nil {
			return nil, err
		}
		if len(hostRecords) == 0 {
			return nil, nil
		}
		if len(deviceRecords) == 0 || deviceRecords[0].Hash != hostRecords[0].Hash {
			return []TransferUnit{{HostPath: hostPath, DevicePath: devicePath}}, nil
		}
		return nil, nil
	}

	devicePaths := make([]string, 0, len(hostRecords))
	for _, record := range hostRecords {
		devicePaths = append(devicePaths, deviceRelative(realDevicePath, realHostPath, record.Path))
	}
	deviceRecords, err := d.deviceHashes(devicePaths)
	if err != nil {
		return nil, err
	}
	deviceHashByPath := make(map[string]string, len(deviceRecords))
	for _, record := range deviceRecords {
		deviceHashByPath[record.Path] = record.Hash
	}

	var toPush []TransferUnit
	for _, record := range hostRecords {
		target := deviceRelative(realDevicePath, realHostPath, record.Path)
		if hash, ok := deviceHashByPath[target]; !ok || hash != record.Hash {
			toPush = append(toPush, TransferUnit{HostPath: record.Path, DevicePath: target})
		}
	}
	return toPush, nil
}

// deviceRelative maps an absolute host file below hostRoot onto the device
// tree rooted at deviceRoot, normalizing host path separators to '/'.
func deviceRelative(deviceRoot, hostRoot, hostFile string) string {
	rel, err := filepath.Rel(hostRoot, hostFile)
	if err != nil {
		rel = filepath.Base(hostFile)
	}
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(deviceRoot, "/") + "/" + rel
}
