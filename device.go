package deviceagent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/httprunner/DeviceAgent/internal/config"
	"github.com/rs/zerolog/log"
)

// Reboot needs far longer than a plain shell call before the device answers
// again. Applied as the deadline of a Reboot call whose context carries none.
var RebootTimeout = 10 * DefaultTimeout

// Device is one session against a single remote endpoint. It owns the fact
// cache and the default timeout/retry policy. Sessions are independent of
// each other and may be used concurrently across devices, but one session
// must be driven by a single logical caller.
type Device struct {
	adb            Adb
	serial         string
	defaultTimeout time.Duration
	defaultRetries int
	cache          *factCache
}

// Option customizes a Device session.
type Option func(*Device)

// WithDefaultTimeout overrides the per-operation timeout default.
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(d *Device) {
		if timeout > 0 {
			d.defaultTimeout = timeout
		}
	}
}

// WithDefaultRetries overrides the per-operation retry default.
func WithDefaultRetries(retries int) Option {
	return func(d *Device) {
		if retries >= 0 {
			d.defaultRetries = retries
		}
	}
}

// NewDevice creates a session over the given transport. Legacy device
// identifiers must be converted to an Adb handle by the caller (see
// providers/adb.Connect); the session itself accepts exactly one handle type.
func NewDevice(adb Adb, opts ...Option) *Device {
	d := &Device{
		adb:            adb,
		serial:         adb.Serial(),
		defaultTimeout: config.Duration("DEVICEAGENT_DEFAULT_TIMEOUT", DefaultTimeout),
		defaultRetries: config.Int("DEVICEAGENT_DEFAULT_RETRIES", DefaultRetries),
		cache:          newFactCache(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Serial returns the device identifier this session is keyed by.
func (d *Device) Serial() string { return d.serial }

func (d *Device) String() string { return d.serial }

// IsOnline reports whether the device currently answers on the transport.
func (d *Device) IsOnline() bool {
	state, err := d.adb.State()
	if err != nil {
		log.Info().Str("serial", d.serial).Err(err).Msg("failed to get device state")
		return false
	}
	return state == StateOnline
}

// HasRoot reports whether the default execution context already has root
// privileges. A command failure means "no", not an error.
func (d *Device) HasRoot() (bool, error) {
	_, err := d.RunShellCommand(Argv("ls", "/root"), ShellOptions{CheckReturn: true})
	if err != nil {
		if IsCommandFailed(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// NeedsSU reports whether protected resources require going through su:
// true when invoking through su reaches a path plain execution cannot. The
// answer is probed once per session and cached until EnableRoot succeeds.
func (d *Device) NeedsSU() (bool, error) {
	if d.cache.needsSU != nil {
		return *d.cache.needsSU, nil
	}
	needed := false
	_, err := d.RunShellCommand(
		ShellLine("su -c ls /root && ! ls /root"), ShellOptions{CheckReturn: true})
	if err == nil {
		needed = true
	} else if !IsCommandFailed(err) {
		return false, err
	}
	d.cache.needsSU = &needed
	return needed, nil
}

// EnableRoot restarts the transport daemon with root privileges. It fails
// on user builds, where root cannot be enabled.
func (d *Device) EnableRoot(ctx context.Context) error {
	userBuild, err := d.IsUserBuild()
	if err != nil {
		return err
	}
	if userBuild {
		return &PreconditionError{Serial: d.serial, Msg: "cannot enable root in user builds"}
	}
	if err := d.adb.Root(); err != nil {
		return err
	}
	if err := d.adb.WaitForDevice(ctx); err != nil {
		return err
	}
	d.cache.invalidateRoot()
	return nil
}

// IsUserBuild reports whether the device runs a user (as opposed to
// userdebug) build.
func (d *Device) IsUserBuild() (bool, error) {
	buildType, err := d.BuildType()
	if err != nil {
		return false, err
	}
	return buildType == "user", nil
}

// GetExternalStoragePath returns the device path of its external storage,
// cached for the session.
func (d *Device) GetExternalStoragePath() (string, error) {
	if d.cache.externalStorage != "" {
		return d.cache.externalStorage, nil
	}
	value, err := d.RunShellLine(ShellLine("echo $EXTERNAL_STORAGE"), ShellOptions{CheckReturn: true})
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", &CommandFailedError{Serial: d.serial, Msg: "$EXTERNAL_STORAGE is not set"}
	}
	d.cache.externalStorage = value
	return value, nil
}

// GetApplicationPath returns the path of the installed package on the
// device, or "" if it is not installed.
func (d *Device) GetApplicationPath(pkg string) (string, error) {
	// pm path is liable to incorrectly exit nonzero starting in Lollipop.
	sdk, err := d.BuildVersionSDK()
	if err != nil {
		return "", err
	}
	output, err := d.RunShellLine(Argv("pm", "path", pkg), ShellOptions{CheckReturn: sdk < sdkLollipop})
	if err != nil {
		return "", err
	}
	if output == "" {
		return "", nil
	}
	if !strings.HasPrefix(output, "package:") {
		return "", &CommandFailedError{Serial: d.serial, Msg: fmt.Sprintf("pm path returned %q", output)}
	}
	return strings.TrimPrefix(output, "package:"), nil
}

// WaitUntilFullyBooted waits for the device to boot, its package manager to
// answer, and external storage to mount. With wifi it additionally waits for
// Wi-Fi to come up. Cancellation comes from ctx; each probe failure is
// treated as "not ready yet".
func (d *Device) WaitUntilFullyBooted(ctx context.Context, wifi bool) error {
	if err := d.adb.WaitForDevice(ctx); err != nil {
		return err
	}
	sdCardReady := func() bool {
		storage, err := d.GetExternalStoragePath()
		if err != nil {
			return false
		}
		_, err = d.RunShellCommand(Argv("test", "-d", storage), ShellOptions{CheckReturn: true})
		return err == nil
	}
	pmReady := func() bool {
		path, err := d.GetApplicationPath("android")
		return err == nil && path != ""
	}
	bootCompleted := func() bool {
		value, err := d.GetProp("sys.boot_completed", false)
		return err == nil && value == "1"
	}
	wifiEnabled := func() bool {
		lines, err := d.RunShellCommand(Argv("dumpsys", "wifi"), ShellOptions{})
		if err != nil {
			return false
		}
		for _, line := range lines {
			if strings.Contains(line, "Wi-Fi is enabled") {
				return true
			}
		}
		return false
	}

	for _, cond := range []func() bool{sdCardReady, pmReady, bootCompleted} {
		if err := WaitFor(ctx, DefaultPoll, cond); err != nil {
			return err
		}
	}
	if wifi {
		return WaitFor(ctx, DefaultPoll, wifiEnabled)
	}
	return nil
}

// Reboot reboots the device and drops every cached fact. With block it also
// waits until the device is fully booted again. A context without a deadline
// gets RebootTimeout, so a device that never drops offline cannot hang the
// caller forever.
func (d *Device) Reboot(ctx context.Context, block, wifi bool) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, RebootTimeout)
		defer cancel()
	}
	if err := d.adb.Reboot(); err != nil {
		return err
	}
	d.cache.reset()
	offline := func() bool { return !d.IsOnline() }
	if err := WaitFor(ctx, DefaultPoll, offline); err != nil {
		return err
	}
	if block {
		return d.WaitUntilFullyBooted(ctx, wifi)
	}
	return nil
}

// GetPids returns, for every process whose name contains processName, a
// mapping from full process name to PID. Matching is a substring match
// against the last field of each ps line.
func (d *Device) GetPids(processName string) (map[string]string, error) {
	lines, err := d.RunShellCommand(ShellLine("ps"), ShellOptions{CheckReturn: true})
	if err != nil {
		return nil, err
	}
	pids := make(map[string]string)
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := fields[len(fields)-1]
		if strings.Contains(name, processName) {
			pids[name] = fields[1]
		}
	}
	return pids, nil
}

// KillOptions controls KillAll.
type KillOptions struct {
	// Signal defaults to 9 (SIGKILL).
	Signal int
	AsRoot bool
	// Blocking polls the process list until every matched PID is gone. The
	// poll has no budget of its own; bound it through ctx.
	Blocking bool
	Poll     PollConfig
}

// KillAll signals every process whose name contains processName and returns
// how many were signaled. It fails with a CommandFailedError when nothing
// matched.
func (d *Device) KillAll(ctx context.Context, processName string, opts KillOptions) (int, error) {
	pids, err := d.GetPids(processName)
	if err != nil {
		return 0, err
	}
	if len(pids) == 0 {
		return 0, &CommandFailedError{Serial: d.serial, Msg: fmt.Sprintf("no process %q", processName)}
	}

	signal := opts.Signal
	if signal == 0 {
		signal = 9
	}
	args := []string{"kill", "-" + strconv.Itoa(signal)}
	for _, pid := range pids {
		args = append(args, pid)
	}
	if _, err := d.RunShellCommand(Argv(args...), ShellOptions{CheckReturn: true, AsRoot: opts.AsRoot}); err != nil {
		return 0, err
	}

	if opts.Blocking {
		poll := opts.Poll
		if poll.Interval <= 0 {
			poll.Interval = 100 * time.Millisecond
		}
		gone := func() bool {
			remaining, err := d.GetPids(processName)
			return err == nil && len(remaining) == 0
		}
		if err := WaitFor(ctx, poll, gone); err != nil {
			return 0, err
		}
	}
	return len(pids), nil
}
