package deviceagent

import (
	"context"
	"strings"
)

// Charging control commands per known device model, recognized by the
// presence of a witness file.
var controlChargingConfigs = []chargingConfig{
	{
		// Nexus 4
		witnessFile:    "/sys/module/pm8921_charger/parameters/disabled",
		enableCommand:  "echo 0 > /sys/module/pm8921_charger/parameters/disabled",
		disableCommand: "echo 1 > /sys/module/pm8921_charger/parameters/disabled",
	},
	{
		// Nexus 5. Setting the HIZ bit of the bq24192 makes the charger
		// actually ignore energy coming from USB; the power_supply toggle
		// only updates what the system reports.
		witnessFile: "/sys/kernel/debug/bq24192/INPUT_SRC_CONT",
		enableCommand: "echo 0x4A > /sys/kernel/debug/bq24192/INPUT_SRC_CONT && " +
			"echo 1 > /sys/class/power_supply/usb/online",
		disableCommand: "echo 0xCA > /sys/kernel/debug/bq24192/INPUT_SRC_CONT && " +
			"chmod 644 /sys/class/power_supply/usb/online && " +
			"echo 0 > /sys/class/power_supply/usb/online",
	},
}

// GetBatteryInfo returns the battery stats as reported by dumpsys.
func (d *Device) GetBatteryInfo() (map[string]string, error) {
	lines, err := d.RunShellCommand(Argv("dumpsys", "battery"), ShellOptions{CheckReturn: true})
	if err != nil {
		return nil, err
	}
	result := make(map[string]string)
	for i, line := range lines {
		if i == 0 {
			// header
			continue
		}
		key, value, found := strings.Cut(line, ": ")
		if !found {
			continue
		}
		result[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return result, nil
}

// GetCharging reports whether the device draws power from any source.
func (d *Device) GetCharging() (bool, error) {
	info, err := d.GetBatteryInfo()
	if err != nil {
		return false, err
	}
	for _, key := range []string{"AC powered", "USB powered", "Wireless powered"} {
		switch strings.ToLower(info[key]) {
		case "true", "1", "yes":
			return true, nil
		}
	}
	return false, nil
}

// SetCharging enables or disables charging, verifying the reported state
// after each attempt. The charging command set for this model is discovered
// once per session; an unrecognized model is a precondition failure.
func (d *Device) SetCharging(ctx context.Context, enabled bool) error {
	if d.cache.charging == nil {
		for i := range controlChargingConfigs {
			exists, err := d.FileExists(controlChargingConfigs[i].witnessFile)
			if err != nil {
				return err
			}
			if exists {
				d.cache.charging = &controlChargingConfigs[i]
				break
			}
		}
		if d.cache.charging == nil {
			return &PreconditionError{Serial: d.serial, Msg: "unable to find charging commands"}
		}
	}

	command := d.cache.charging.disableCommand
	if enabled {
		command = d.cache.charging.enableCommand
	}
	setAndVerify := func() bool {
		if _, err := d.RunShellCommand(ShellLine(command), ShellOptions{CheckReturn: true}); err != nil {
			return false
		}
		charging, err := d.GetCharging()
		return err == nil && charging == enabled
	}
	return WaitFor(ctx, DefaultPoll, setAndVerify)
}
