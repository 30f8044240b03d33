package adb

import (
	"context"
	"net"
	"os/exec"
	"time"

	"github.com/httprunner/DeviceAgent/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const serverAddr = "127.0.0.1:5037"

func adbBinary() string {
	return config.String("DEVICEAGENT_ADB_PATH", "adb")
}

func (t *Transport) execAdb(args ...string) error {
	full := append([]string{"-s", t.serial}, args...)
	out, err := exec.Command(adbBinary(), full...).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "adb %v on %s: %s", args, t.serial, string(out))
	}
	return nil
}

// IsServerOnline reports whether the local adb server answers.
func IsServerOnline() bool {
	conn, err := net.DialTimeout("tcp", serverAddr, 1*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// RestartServer kills and restarts the local adb server, waiting for it to
// come back before returning. A server that refuses to die is logged and
// restarted anyway.
func RestartServer(ctx context.Context) error {
	if out, err := exec.Command(adbBinary(), "kill-server").CombinedOutput(); err != nil {
		log.Warn().Err(err).Str("output", string(out)).Msg("adb kill-server failed")
	}
	if err := waitForServer(ctx, false); err != nil {
		log.Warn().Err(err).Msg("adb server did not stop, restarting anyway")
	}
	if out, err := exec.Command(adbBinary(), "start-server").CombinedOutput(); err != nil {
		return errors.Wrapf(err, "adb start-server: %s", string(out))
	}
	if err := waitForServer(ctx, true); err != nil {
		return errors.Wrap(err, "adb server did not come back")
	}
	return nil
}

func waitForServer(ctx context.Context, online bool) error {
	for i := 0; i < 5; i++ {
		if IsServerOnline() == online {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return errors.New("adb server state unchanged after 5 checks")
}
