package deviceagent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	// maxCommandLength is the longest command line sent inline over the
	// transport. Anything longer is spilled to a script file on the device.
	maxCommandLength = 512
	// maxShellOutputLength is the largest output the shell transport returns
	// reliably; reads beyond it go through Pull instead.
	maxShellOutputLength = 32768
)

// Cmd is a command for the device shell: either a literal line interpreted
// by the shell, or an argument vector whose elements are individually quoted
// and never shell-interpreted. Prefer Argv whenever arguments may contain
// spaces or special characters.
type Cmd struct {
	line string
	argv []string
}

// ShellLine returns a Cmd run verbatim by the device shell.
func ShellLine(line string) Cmd { return Cmd{line: line} }

// Argv returns a Cmd built from an argument vector.
func Argv(args ...string) Cmd { return Cmd{argv: args} }

func (c Cmd) render() string {
	if c.argv != nil {
		return quoteArgv(c.argv)
	}
	return c.line
}

// ShellOptions controls one RunShellCommand call.
type ShellOptions struct {
	// CheckReturn propagates a nonzero exit as a CommandFailedError. When
	// false, the failure is swallowed and its partial output returned.
	CheckReturn bool
	// Cwd runs the command from this device directory.
	Cwd string
	// Env prefixes environment assignments onto the command. Keys must be
	// valid shell variable names; values are double-quoted so they may still
	// reference device-side variables ($PATH).
	Env map[string]string
	// AsRoot wraps the command through su when the device needs it.
	AsRoot bool
	Op     OpOptions
}

// RunShellCommand runs cmd on the device shell and returns its output split
// into lines.
func (d *Device) RunShellCommand(cmd Cmd, opts ShellOptions) ([]string, error) {
	raw, err := d.runShell(cmd, opts)
	if err != nil {
		return nil, err
	}
	return splitLines(raw), nil
}

// RunShellLine runs cmd expecting at most one line of output. Zero lines
// yield an empty string; two or more lines fail with a CommandFailedError
// carrying all of them.
func (d *Device) RunShellLine(cmd Cmd, opts ShellOptions) (string, error) {
	lines, err := d.RunShellCommand(cmd, opts)
	if err != nil {
		return "", err
	}
	switch len(lines) {
	case 0:
		return "", nil
	case 1:
		return lines[0], nil
	default:
		return "", &CommandFailedError{
			Serial: d.serial,
			Msg:    "one line of output was expected",
			Output: lines,
		}
	}
}

func (d *Device) runShell(cmd Cmd, opts ShellOptions) (string, error) {
	line, err := d.buildCommand(cmd, opts)
	if err != nil {
		return "", err
	}

	timeout, retries := d.resolveOp(opts.Op)
	var raw string
	err = d.withTimeoutRetry("shell", timeout, retries, func() error {
		out, shellErr := d.execBuilt(line, opts.CheckReturn)
		if shellErr != nil {
			return shellErr
		}
		raw = out
		return nil
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

// execBuilt sends a fully built command line, spilling it to a device-side
// script when it exceeds the transport's command-length limit.
func (d *Device) execBuilt(line string, checkReturn bool) (string, error) {
	run := func(cmd string) (string, error) {
		out, err := d.adb.Shell(cmd)
		if err != nil && !checkReturn && IsCommandFailed(err) {
			return strings.Join(commandOutput(err), "\n"), nil
		}
		return out, err
	}

	if len(line) < maxCommandLength {
		return run(line)
	}

	script := d.newTempFile(".sh")
	defer script.Delete()
	if err := d.writeFileWithPush(script.path, line); err != nil {
		return "", err
	}
	log.Info().Str("serial", d.serial).Str("script", script.path).
		Msg("oversized shell command spilled to device script")
	return run("sh " + singleQuote(script.path))
}

func (d *Device) buildCommand(cmd Cmd, opts ShellOptions) (string, error) {
	line := cmd.render()
	if len(opts.Env) > 0 {
		keys := make([]string, 0, len(opts.Env))
		for key := range opts.Env {
			if !validShellVariable(key) {
				return "", &InvalidArgumentError{Msg: fmt.Sprintf("invalid shell variable name %q", key)}
			}
			keys = append(keys, key)
		}
		sort.Strings(keys)
		assigns := make([]string, 0, len(keys))
		for _, key := range keys {
			assigns = append(assigns, key+"="+doubleQuote(opts.Env[key]))
		}
		line = strings.Join(assigns, " ") + " " + line
	}
	if opts.Cwd != "" {
		line = "cd " + singleQuote(opts.Cwd) + " && " + line
	}
	if opts.AsRoot {
		needsSU, err := d.NeedsSU()
		if err != nil {
			return "", err
		}
		if needsSU {
			// su -c sh -c keeps shell features inside the command usable.
			line = "su -c sh -c " + singleQuote(line)
		}
	}
	return line, nil
}

func splitLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.TrimSuffix(raw, "\n")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "\n")
}

// joinLines terminates every line, including the last one.
func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
