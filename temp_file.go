package deviceagent

import (
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// deviceTempDir is writable without root on every build we target.
const deviceTempDir = "/data/local/tmp"

// deviceTempFile is a uniquely named path in the device temp namespace. The
// name is reserved host-side only; nothing exists on the device until the
// caller writes there. Delete must run on every exit path.
type deviceTempFile struct {
	d    *Device
	path string
}

func (d *Device) newTempFile(suffix string) *deviceTempFile {
	return d.newTempFileIn(deviceTempDir, suffix)
}

func (d *Device) newTempFileIn(dir, suffix string) *deviceTempFile {
	name := "deviceagent-tmp-" + uuid.NewString() + suffix
	return &deviceTempFile{d: d, path: strings.TrimSuffix(dir, "/") + "/" + name}
}

// Delete removes the temp file, tolerating it never having been created.
func (t *deviceTempFile) Delete() {
	_, err := t.d.RunShellCommand(Argv("rm", "-f", t.path), ShellOptions{})
	if err != nil {
		log.Warn().Str("serial", t.d.serial).Str("path", t.path).Err(err).
			Msg("failed to delete device temp file")
	}
}
