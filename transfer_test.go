package deviceagent

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

func TestPushChangedFilesNoopWhenNothingChanged(t *testing.T) {
	disableHashCache(t)
	hostDir := t.TempDir()
	writeHostFile(t, hostDir, "a.txt", "alpha")

	device, fake := newFakeDevice(func(cmd string) (string, error) {
		switch {
		case strings.HasPrefix(cmd, "mkdir -p"):
			return "", nil
		case strings.HasPrefix(cmd, "realpath"):
			return "/data/A\n", nil
		case strings.HasPrefix(cmd, "md5sum"):
			return md5Of("alpha") + "  /data/A/a.txt\n", nil
		}
		return "", cmdFailed("unknown command: " + cmd)
	})

	err := device.PushChangedFiles(context.Background(),
		[]TransferUnit{{HostPath: hostDir, DevicePath: "/data/A"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(fake.pushes) != 0 {
		t.Fatalf("pushes = %v, want none for an unchanged tree", fake.pushes)
	}
	if fake.shellCalls[0] != "mkdir -p /data/A" {
		t.Fatalf("destination directory not created first: %v", fake.shellCalls)
	}
}

func TestPushChangedFilesPushesIndividually(t *testing.T) {
	disableHashCache(t)
	hostFile := writeHostFile(t, t.TempDir(), "f.txt", "payload")

	device, fake := newFakeDevice(func(cmd string) (string, error) {
		switch {
		case strings.HasPrefix(cmd, "realpath"):
			return "/data/f.txt\n", nil
		case strings.HasPrefix(cmd, "md5sum"):
			return "", cmdFailed("md5sum: /data/f.txt: No such file or directory")
		case strings.Contains(cmd, "which unzip"):
			return "", cmdFailed()
		}
		return "", cmdFailed("unknown command: " + cmd)
	})

	err := device.PushChangedFiles(context.Background(),
		[]TransferUnit{{HostPath: hostFile, DevicePath: "/data/f.txt"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(fake.pushes) != 1 || fake.pushes[0].devicePath != "/data/f.txt" || fake.pushes[0].contents != "payload" {
		t.Fatalf("pushes = %+v", fake.pushes)
	}
}

func TestPushChangedFilesZipStrategyForManySmallFiles(t *testing.T) {
	disableHashCache(t)
	hostDir := t.TempDir()
	for i := 0; i < 300; i++ {
		writeHostFile(t, hostDir, fmt.Sprintf("f%03d.txt", i), fmt.Sprintf("data-%03d", i))
	}

	device, fake := newFakeDevice(func(cmd string) (string, error) {
		switch {
		case strings.HasPrefix(cmd, "mkdir -p"):
			return "", nil
		case strings.HasPrefix(cmd, "realpath"):
			return "/data/A\n", nil
		case strings.HasPrefix(cmd, "sh /data/local/tmp/deviceagent-tmp-"):
			// the batched md5sum spills to a script; nothing exists yet
			return "", cmdFailed()
		case strings.Contains(cmd, "which unzip"):
			return "/data/local/tmp/bin/unzip\n", nil
		case cmd == "echo $EXTERNAL_STORAGE":
			return "/sdcard\n", nil
		case strings.Contains(cmd, "unzip /sdcard/tmp.zip"), strings.HasPrefix(cmd, "rm "), strings.HasPrefix(cmd, "chmod"):
			return "", nil
		}
		return "", cmdFailed("unknown command: " + cmd)
	})
	noSU(device)

	err := device.PushChangedFiles(context.Background(),
		[]TransferUnit{{HostPath: hostDir, DevicePath: "/data/A"}})
	if err != nil {
		t.Fatal(err)
	}

	var archive *fakePush
	for i := range fake.pushes {
		if fake.pushes[i].devicePath == "/sdcard/tmp.zip" {
			archive = &fake.pushes[i]
		} else if !strings.HasSuffix(fake.pushes[i].devicePath, ".sh") {
			t.Fatalf("unexpected push to %q", fake.pushes[i].devicePath)
		}
	}
	if archive == nil {
		t.Fatalf("no archive pushed; pushes = %+v", fake.pushes)
	}

	reader, err := zip.NewReader(bytes.NewReader([]byte(archive.contents)), int64(len(archive.contents)))
	if err != nil {
		t.Fatal(err)
	}
	if len(reader.File) != 300 {
		t.Fatalf("archive holds %d entries, want 300", len(reader.File))
	}
	if reader.File[0].Name != "data/A/f000.txt" {
		t.Fatalf("archive entry = %q, want device path without the leading slash", reader.File[0].Name)
	}

	var sawUnzip, sawChmod, sawCleanup bool
	for _, call := range fake.shellCalls {
		if strings.HasPrefix(call, "cd / && ") && strings.Contains(call, `PATH="/data/local/tmp/bin:$PATH"`) &&
			strings.Contains(call, "unzip /sdcard/tmp.zip") {
			sawUnzip = true
		}
		if strings.HasPrefix(call, "chmod -R 777 /data/A") {
			sawChmod = true
		}
		if call == "rm /sdcard/tmp.zip" {
			sawCleanup = true
		}
	}
	if !sawUnzip {
		t.Fatalf("unzip not invoked from / with the helper PATH; calls = %v", fake.shellCalls)
	}
	if !sawChmod {
		t.Fatal("extracted tree not reopened with chmod -R 777")
	}
	if !sawCleanup {
		t.Fatal("device-side archive not removed")
	}
}

func TestApproximateDuration(t *testing.T) {
	small := approximateDuration(1, 1, 100, false)
	if small <= 0 {
		t.Fatalf("duration = %f", small)
	}
	// Many tiny files: per-call overhead dominates, so zipping them into
	// one transfer must estimate cheaper.
	push := approximateDuration(100, 100, 1000, false)
	zipped := approximateDuration(1, 1, 1000, true)
	if zipped >= push {
		t.Fatalf("zip = %f, push = %f; zip should win for many small files", zipped, push)
	}
}

func TestZipArchiveTaskJoinHonorsCancellation(t *testing.T) {
	hostFile := writeHostFile(t, t.TempDir(), "f.txt", "payload")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := newZipArchiveTask(ctx, filepath.Join(t.TempDir(), "out.zip"),
		[]TransferUnit{{HostPath: hostFile, DevicePath: "/data/f.txt"}})
	if err := task.Join(); err == nil {
		t.Fatal("want an error when the archive task is canceled before it runs")
	}
}

func TestWriteTransferArchiveRoundTrips(t *testing.T) {
	dir := t.TempDir()
	hostFile := writeHostFile(t, dir, "f.txt", "payload")
	zipPath := filepath.Join(dir, "out.zip")

	err := writeTransferArchive(context.Background(), zipPath,
		[]TransferUnit{{HostPath: hostFile, DevicePath: "/data/f.txt"}})
	if err != nil {
		t.Fatal(err)
	}

	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()
	if len(reader.File) != 1 || reader.File[0].Name != "data/f.txt" {
		t.Fatalf("archive entries = %v", reader.File)
	}
	entry, err := reader.File[0].Open()
	if err != nil {
		t.Fatal(err)
	}
	defer entry.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(entry); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "payload" {
		t.Fatalf("archived contents = %q", buf.String())
	}
}
