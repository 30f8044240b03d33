package deviceagent

import (
	"archive/zip"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// unzipBinDir is prepended to PATH when invoking unzip, so a pre-installed
// helper binary wins over whatever the system image ships.
const unzipBinDir = "/data/local/tmp/bin"

// Cost model constants for choosing a transfer strategy. All of these are
// approximations; the estimates only rank strategies against each other.
const (
	adbCallPenalty   = 0.1  // seconds per transport call
	adbPushPenalty   = 0.01 // seconds per pushed file
	zipPenalty       = 2.0  // seconds of fixed zip setup
	zipRate          = 10000000.0
	transferRate     = 2000000.0
	compressionRatio = 2.0
)

// PushChangedFiles pushes the given (host, device) pairs, skipping files
// whose content already matches. Directory pairs are diffed recursively and
// their destination directories created first. The cheaper of per-file push,
// per-directory push and zip-then-unzip is chosen from the cost model.
func (d *Device) PushChangedFiles(ctx context.Context, pairs []TransferUnit) error {
	var files []TransferUnit
	for _, pair := range pairs {
		info, err := os.Stat(pair.HostPath)
		if err != nil {
			return errors.Wrapf(err, "stat host path %s", pair.HostPath)
		}
		if info.IsDir() {
			if _, err := d.RunShellCommand(
				Argv("mkdir", "-p", pair.DevicePath), ShellOptions{CheckReturn: true}); err != nil {
				return err
			}
		}
		changed, err := d.GetChangedFiles(pair.HostPath, pair.DevicePath)
		if err != nil {
			return err
		}
		files = append(files, changed...)
	}
	if len(files) == 0 {
		return nil
	}

	var size int64
	for _, unit := range files {
		size += hostDiskUsage(unit.HostPath)
	}
	var dirSize int64
	dirFileCount := 0
	for _, pair := range pairs {
		dirSize += hostDiskUsage(pair.HostPath)
		dirFileCount += countHostFiles(pair.HostPath)
	}

	pushDuration := approximateDuration(len(files), len(files), size, false)
	dirPushDuration := approximateDuration(len(pairs), dirFileCount, dirSize, false)
	zipDuration := approximateDuration(1, 1, size, true)

	unzipReady := d.ensureUnzip()

	switch {
	case dirPushDuration < pushDuration && (dirPushDuration < zipDuration || !unzipReady):
		return d.pushIndividually(pairs)
	case pushDuration < zipDuration || !unzipReady:
		return d.pushIndividually(files)
	default:
		if err := d.pushChangedFilesZipped(ctx, files); err != nil {
			return err
		}
		// Archive extraction loses the original permissions; reopen every
		// destination wholesale.
		args := []string{"chmod", "-R", "777"}
		for _, pair := range pairs {
			args = append(args, pair.DevicePath)
		}
		_, err := d.RunShellCommand(Argv(args...), ShellOptions{CheckReturn: true, AsRoot: true})
		return err
	}
}

// approximateDuration estimates seconds to move byteCount bytes in
// fileCount files over transportCalls calls, optionally through a zip.
func approximateDuration(transportCalls, fileCount int, byteCount int64, isZipping bool) float64 {
	total := adbCallPenalty*float64(transportCalls) + adbPushPenalty*float64(fileCount)
	if isZipping {
		total += zipPenalty + float64(byteCount)/zipRate
		total += float64(byteCount) / (transferRate * compressionRatio)
	} else {
		total += float64(byteCount) / transferRate
	}
	return total
}

func (d *Device) pushIndividually(units []TransferUnit) error {
	for _, unit := range units {
		if err := d.adb.Push(unit.HostPath, unit.DevicePath); err != nil {
			return err
		}
	}
	return nil
}

// ensureUnzip probes once per session whether an unzip binary is reachable
// on the device. A failed probe disables the zip strategy rather than
// failing the push.
func (d *Device) ensureUnzip() bool {
	if d.cache.unzipReady != nil {
		return *d.cache.unzipReady
	}
	ready := false
	out, err := d.RunShellLine(ShellLine("which unzip"), ShellOptions{
		CheckReturn: true,
		Env:         map[string]string{"PATH": unzipBinDir + ":$PATH"},
	})
	if err == nil && out != "" {
		ready = true
	} else if err != nil && !IsCommandFailed(err) {
		log.Warn().Str("serial", d.serial).Err(err).Msg("unzip availability probe failed")
	}
	d.cache.unzipReady = &ready
	return ready
}

func (d *Device) pushChangedFilesZipped(ctx context.Context, units []TransferUnit) error {
	hostZip, err := os.CreateTemp("", "deviceagent-*.zip")
	if err != nil {
		return errors.Wrap(err, "create host zip file")
	}
	hostZipPath := hostZip.Name()
	hostZip.Close()
	defer os.Remove(hostZipPath)

	task := newZipArchiveTask(ctx, hostZipPath, units)
	if err := task.Join(); err != nil {
		return errors.Wrap(err, "archive transfer units")
	}

	storagePath, err := d.GetExternalStoragePath()
	if err != nil {
		return err
	}
	zipOnDevice := storagePath + "/tmp.zip"
	defer func() {
		// The device going offline mid-push is not a failure of this step;
		// skip cleanup silently when it is gone.
		if !d.IsOnline() {
			return
		}
		if _, err := d.RunShellCommand(Argv("rm", zipOnDevice), ShellOptions{CheckReturn: true}); err != nil {
			log.Warn().Str("serial", d.serial).Err(err).Msg("failed to remove device-side archive")
		}
	}()

	if err := d.adb.Push(hostZipPath, zipOnDevice); err != nil {
		return err
	}
	_, err = d.RunShellCommand(Argv("unzip", zipOnDevice), ShellOptions{
		CheckReturn: true,
		AsRoot:      true,
		Cwd:         "/",
		Env:         map[string]string{"PATH": unzipBinDir + ":$PATH"},
	})
	return err
}

// zipArchiveTask is an owned handle on the out-of-band archiving worker.
// The caller must Join before using the archive, or Cancel to abandon it.
type zipArchiveTask struct {
	group  *errgroup.Group
	cancel context.CancelFunc
}

func newZipArchiveTask(ctx context.Context, zipPath string, units []TransferUnit) *zipArchiveTask {
	taskCtx, cancel := context.WithCancel(ctx)
	group, taskCtx := errgroup.WithContext(taskCtx)
	group.Go(func() error {
		return writeTransferArchive(taskCtx, zipPath, units)
	})
	return &zipArchiveTask{group: group, cancel: cancel}
}

func (t *zipArchiveTask) Join() error {
	defer t.cancel()
	return t.group.Wait()
}

func (t *zipArchiveTask) Cancel() {
	t.cancel()
	_ = t.group.Wait()
}

// writeTransferArchive stores each unit under its device path with the
// leading slash stripped, so extracting from / recreates the destination
// tree.
func writeTransferArchive(ctx context.Context, zipPath string, units []TransferUnit) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return errors.Wrap(err, "open archive for writing")
	}
	defer out.Close()

	writer := zip.NewWriter(out)
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			writer.Close()
			return err
		}
		entry, err := writer.Create(strings.TrimPrefix(unit.DevicePath, "/"))
		if err != nil {
			writer.Close()
			return errors.Wrapf(err, "add %s to archive", unit.DevicePath)
		}
		src, err := os.Open(unit.HostPath)
		if err != nil {
			writer.Close()
			return errors.Wrapf(err, "open %s for archiving", unit.HostPath)
		}
		_, err = io.Copy(entry, src)
		src.Close()
		if err != nil {
			writer.Close()
			return errors.Wrapf(err, "archive %s", unit.HostPath)
		}
	}
	return writer.Close()
}

func hostDiskUsage(hostPath string) int64 {
	var total int64
	filepath.WalkDir(hostPath, func(p string, entry fs.DirEntry, err error) error {
		if err != nil || !entry.Type().IsRegular() {
			return nil
		}
		if info, err := entry.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

func countHostFiles(hostPath string) int {
	info, err := os.Stat(hostPath)
	if err != nil {
		return 0
	}
	if !info.IsDir() {
		return 1
	}
	count := 0
	filepath.WalkDir(hostPath, func(p string, entry fs.DirEntry, err error) error {
		if err == nil && entry.Type().IsRegular() {
			count++
		}
		return nil
	})
	return count
}
