package deviceagent

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

var smapsColumns = []string{
	"Size", "Rss", "Pss", "Shared_Clean", "Shared_Dirty", "Private_Clean",
	"Private_Dirty",
}

// GetMemoryUsageForPid merges the showmap totals and the /proc status peak
// for one PID. Either source failing drops its keys from the result rather
// than failing the call.
func (d *Device) GetMemoryUsageForPid(pid int) (map[string]int, error) {
	result := make(map[string]int)

	if fromSmaps, err := d.memoryUsageFromSmaps(pid); err != nil {
		log.Warn().Str("serial", d.serial).Int("pid", pid).Err(err).
			Msg("failed to get memory usage from smaps")
	} else {
		for k, v := range fromSmaps {
			result[k] = v
		}
	}

	if fromStatus, err := d.memoryUsageFromStatus(pid); err != nil {
		log.Warn().Str("serial", d.serial).Int("pid", pid).Err(err).
			Msg("failed to get memory usage from status")
	} else {
		for k, v := range fromStatus {
			result[k] = v
		}
	}
	return result, nil
}

func (d *Device) memoryUsageFromSmaps(pid int) (map[string]int, error) {
	lines, err := d.RunShellCommand(
		Argv("showmap", strconv.Itoa(pid)), ShellOptions{CheckReturn: true, AsRoot: true})
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, &CommandFailedError{Serial: d.serial, Msg: "no output from showmap"}
	}
	totals := strings.Fields(lines[len(lines)-1])
	if len(totals) != 9 || totals[len(totals)-1] != "TOTAL" {
		return nil, &CommandFailedError{Serial: d.serial, Msg: "invalid output from showmap", Output: lines}
	}
	result := make(map[string]int, len(smapsColumns))
	for i, column := range smapsColumns {
		value, convErr := strconv.Atoi(totals[i])
		if convErr != nil {
			return nil, &CommandFailedError{Serial: d.serial, Msg: "invalid output from showmap", Output: lines}
		}
		result[column] = value
	}
	return result, nil
}

func (d *Device) memoryUsageFromStatus(pid int) (map[string]int, error) {
	contents, err := d.ReadFile(fmt.Sprintf("/proc/%d/status", pid), true)
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(contents, "\n") {
		if !strings.HasPrefix(line, "VmHWM:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		value, convErr := strconv.Atoi(fields[1])
		if convErr != nil {
			break
		}
		return map[string]int{"VmHWM": value}, nil
	}
	return nil, &CommandFailedError{
		Serial: d.serial,
		Msg:    fmt.Sprintf("could not find memory peak value for pid %d", pid),
	}
}
