package deviceagent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeHostFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGetChangedFilesDirectoryOnlyMismatches(t *testing.T) {
	disableHashCache(t)
	hostDir := t.TempDir()
	writeHostFile(t, hostDir, "a.txt", "alpha")
	writeHostFile(t, hostDir, "b.txt", "beta")

	device, _ := newFakeDevice(func(cmd string) (string, error) {
		switch {
		case strings.HasPrefix(cmd, "realpath"):
			return "/data/A\n", nil
		case strings.HasPrefix(cmd, "md5sum"):
			// a.txt matches; b.txt is absent; c.txt exists on the device
			// but is not part of the host tree.
			return md5Of("alpha") + "  /data/A/a.txt\n" +
				"md5sum: /data/A/b.txt: No such file or directory\n", nil
		}
		return "", cmdFailed("unknown command: " + cmd)
	})

	changed, err := device.GetChangedFiles(hostDir, "/data/A")
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 1 {
		t.Fatalf("changed = %v, want exactly b.txt", changed)
	}
	if filepath.Base(changed[0].HostPath) != "b.txt" || changed[0].DevicePath != "/data/A/b.txt" {
		t.Fatalf("changed = %+v", changed[0])
	}
}

func TestGetChangedFilesSingleFileUnchanged(t *testing.T) {
	disableHashCache(t)
	hostFile := writeHostFile(t, t.TempDir(), "f.txt", "same content")

	device, _ := newFakeDevice(func(cmd string) (string, error) {
		switch {
		case strings.HasPrefix(cmd, "realpath"):
			return "/data/f.txt\n", nil
		case strings.HasPrefix(cmd, "md5sum"):
			return md5Of("same content") + "  /data/f.txt\n", nil
		}
		return "", cmdFailed("unknown command: " + cmd)
	})

	changed, err := device.GetChangedFiles(hostFile, "/data/f.txt")
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 0 {
		t.Fatalf("changed = %v, want none", changed)
	}
}

func TestGetChangedFilesSingleFileChanged(t *testing.T) {
	disableHashCache(t)
	hostFile := writeHostFile(t, t.TempDir(), "f.txt", "new content")

	device, _ := newFakeDevice(func(cmd string) (string, error) {
		switch {
		case strings.HasPrefix(cmd, "realpath"):
			return "/data/f.txt\n", nil
		case strings.HasPrefix(cmd, "md5sum"):
			return md5Of("old content") + "  /data/f.txt\n", nil
		}
		return "", cmdFailed("unknown command: " + cmd)
	})

	changed, err := device.GetChangedFiles(hostFile, "/data/f.txt")
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 1 || changed[0].HostPath != hostFile || changed[0].DevicePath != "/data/f.txt" {
		t.Fatalf("changed = %v", changed)
	}
}

func TestGetChangedFilesFallsBackWhenDevicePathUnresolvable(t *testing.T) {
	disableHashCache(t)
	hostDir := t.TempDir()
	writeHostFile(t, hostDir, "a.txt", "alpha")

	device, fake := newFakeDevice(func(cmd string) (string, error) {
		if strings.HasPrefix(cmd, "realpath") {
			return "", cmdFailed("realpath: /data/new: No such file or directory")
		}
		return "", cmdFailed("unknown command: " + cmd)
	})

	changed, err := device.GetChangedFiles(hostDir, "/data/new")
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 1 || changed[0].HostPath != hostDir || changed[0].DevicePath != "/data/new" {
		t.Fatalf("changed = %v, want the whole pair presumed changed", changed)
	}
	for _, call := range fake.shellCalls {
		if strings.HasPrefix(call, "md5sum") {
			t.Fatal("no hashing expected once the destination is presumed absent")
		}
	}
}

func TestDeviceRelativeNormalizesSeparators(t *testing.T) {
	got := deviceRelative("/data/A/", "/host/root", filepath.Join("/host/root", "sub", "f.txt"))
	if got != "/data/A/sub/f.txt" {
		t.Fatalf("deviceRelative = %q", got)
	}
}
