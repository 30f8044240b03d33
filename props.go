package deviceagent

import (
	"fmt"
	"strconv"
)

// SDK version codes the session cares about.
const (
	sdkJellyBean    = 16
	sdkJellyBeanMR2 = 18
	sdkLollipop     = 21
)

// GetProp reads a system property. With cache the value is served from and
// stored into the session fact cache; a property that was ever cached keeps
// being refreshed in the cache even on cache=false reads.
func (d *Device) GetProp(name string, cache bool, opts ...OpOptions) (string, error) {
	if name == "" {
		return "", &InvalidArgumentError{Msg: "property name cannot be empty"}
	}
	if cache {
		if value, ok := d.cache.prop(name); ok {
			return value, nil
		}
	}
	var op OpOptions
	if len(opts) > 0 {
		op = opts[0]
	}
	value, err := d.RunShellLine(Argv("getprop", name), ShellOptions{CheckReturn: true, Op: op})
	if err != nil {
		return "", err
	}
	if _, wasCached := d.cache.prop(name); cache || wasCached {
		d.cache.setProp(name, value)
	}
	return value, nil
}

// SetProp writes a system property and invalidates its cached value. With
// check it re-reads the property and fails when the write did not stick
// (typically an unrooted device writing a protected property).
func (d *Device) SetProp(name, value string, check bool) error {
	if name == "" {
		return &InvalidArgumentError{Msg: "property name cannot be empty"}
	}
	if _, err := d.RunShellCommand(Argv("setprop", name, value), ShellOptions{CheckReturn: true}); err != nil {
		return err
	}
	d.cache.invalidateProp(name)
	if check {
		current, err := d.GetProp(name, false)
		if err != nil {
			return err
		}
		if current != value {
			return &CommandFailedError{
				Serial: d.serial,
				Msg:    fmt.Sprintf("unable to set property %q to %q", name, value),
			}
		}
	}
	return nil
}

// BuildDescription returns e.g. "nakasi-user 4.4.4 KTU84P 1227136 release-keys".
func (d *Device) BuildDescription() (string, error) {
	return d.GetProp("ro.build.description", true)
}

// BuildFingerprint returns e.g.
// "google/nakasi/grouper:4.4.4/KTU84P/1227136:user/release-keys".
func (d *Device) BuildFingerprint() (string, error) {
	return d.GetProp("ro.build.fingerprint", true)
}

// BuildID returns e.g. "KTU84P".
func (d *Device) BuildID() (string, error) {
	return d.GetProp("ro.build.id", true)
}

// BuildProduct returns e.g. "grouper".
func (d *Device) BuildProduct() (string, error) {
	return d.GetProp("ro.build.product", true)
}

// BuildType returns e.g. "user" or "userdebug".
func (d *Device) BuildType() (string, error) {
	return d.GetProp("ro.build.type", true)
}

// BuildVersionSDK returns the SDK level as a number (e.g. 19).
func (d *Device) BuildVersionSDK() (int, error) {
	value, err := d.GetProp("ro.build.version.sdk", true)
	if err != nil {
		return 0, err
	}
	sdk, convErr := strconv.Atoi(value)
	if convErr != nil {
		return 0, &CommandFailedError{Serial: d.serial, Msg: fmt.Sprintf("invalid build version sdk %q", value)}
	}
	return sdk, nil
}

// ProductCPUABI returns e.g. "armeabi-v7a".
func (d *Device) ProductCPUABI() (string, error) {
	return d.GetProp("ro.product.cpu.abi", true)
}

// ProductModel returns e.g. "Nexus 7".
func (d *Device) ProductModel() (string, error) {
	return d.GetProp("ro.product.model", true)
}

// ProductName returns e.g. "nakasi".
func (d *Device) ProductName() (string, error) {
	return d.GetProp("ro.product.name", true)
}
