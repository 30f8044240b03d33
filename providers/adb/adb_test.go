package adb

import (
	"errors"
	"strings"
	"testing"

	deviceagent "github.com/httprunner/DeviceAgent"
)

func TestClassifyFailureStateUnknown(t *testing.T) {
	err := classifyFailure("SER1", "shell", errors.New("broken pipe"), "", errors.New("connection refused"))
	if !deviceagent.IsDeviceUnreachable(err) {
		t.Fatalf("got %v, want DeviceUnreachableError when the state query itself fails", err)
	}
	var unreachable *deviceagent.DeviceUnreachableError
	errors.As(err, &unreachable)
	if unreachable.Serial != "SER1" || unreachable.State != "" {
		t.Fatalf("unreachable = %+v", unreachable)
	}
}

func TestClassifyFailureDeviceDropped(t *testing.T) {
	err := classifyFailure("SER1", "push", errors.New("broken pipe"), "offline", nil)
	if !deviceagent.IsDeviceUnreachable(err) {
		t.Fatalf("got %v, want DeviceUnreachableError for an offline device", err)
	}
	var unreachable *deviceagent.DeviceUnreachableError
	errors.As(err, &unreachable)
	if unreachable.State != "offline" {
		t.Fatalf("unreachable = %+v, want the reported state carried", unreachable)
	}
}

func TestClassifyFailureLiveDevice(t *testing.T) {
	cause := errors.New("exec format error")
	err := classifyFailure("SER1", "shell", cause, "device", nil)
	if deviceagent.IsDeviceUnreachable(err) {
		t.Fatalf("got %v; a failure on an online device is not unreachability", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("got %v, want the original cause wrapped", err)
	}
	if !strings.Contains(err.Error(), "shell") || !strings.Contains(err.Error(), "SER1") {
		t.Fatalf("err = %v, want the op and serial named", err)
	}
}

func TestOutputLines(t *testing.T) {
	if got := outputLines(""); got != nil {
		t.Errorf("outputLines(\"\") = %v, want nil", got)
	}
	got := outputLines("a\r\nb\n")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("outputLines = %v, want [a b]", got)
	}
}

func TestAdbBinaryDefault(t *testing.T) {
	t.Setenv("DEVICEAGENT_ADB_PATH", "")
	if got := adbBinary(); got != "adb" {
		t.Errorf("adbBinary = %q, want adb", got)
	}
	t.Setenv("DEVICEAGENT_ADB_PATH", "/opt/platform-tools/adb")
	if got := adbBinary(); got != "/opt/platform-tools/adb" {
		t.Errorf("adbBinary = %q", got)
	}
}
