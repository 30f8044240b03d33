package deviceagent

import "strings"

const (
	localPropertiesPath = "/data/local.prop"
	// javaAssertProperty controls Java assertions via /data/local.prop.
	javaAssertProperty = "dalvik.vm.enableassertions"
)

// SetJavaAsserts persists and applies the Java assertion property. It
// returns true when the runtime value changed and a restart is required.
func (d *Device) SetJavaAsserts(enabled bool) (bool, error) {
	newValue := ""
	if enabled {
		newValue = "all"
	}

	var properties []string
	contents, err := d.ReadFile(localPropertiesPath, false)
	if err == nil {
		properties = splitLines(contents)
	} else if !IsCommandFailed(err) {
		return false, err
	}

	index, value := findProperty(properties, javaAssertProperty)
	if newValue != value {
		switch {
		case newValue != "" && index >= 0:
			properties[index] = javaAssertProperty + "=" + newValue
		case newValue != "":
			properties = append(properties, javaAssertProperty+"="+newValue)
		default:
			properties = append(properties[:index], properties[index+1:]...)
		}
		if err := d.WriteFile(localPropertiesPath, joinLines(properties), false, false); err != nil {
			return false, err
		}
	}

	current, err := d.GetProp(javaAssertProperty, false)
	if err != nil {
		return false, err
	}
	if newValue != current {
		if err := d.SetProp(javaAssertProperty, newValue, false); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func findProperty(lines []string, name string) (int, string) {
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if found && strings.TrimSpace(key) == name {
			return i, strings.TrimSpace(value)
		}
	}
	return -1, ""
}
