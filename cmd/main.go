package main

import (
	"os"
	"time"

	deviceagent "github.com/httprunner/DeviceAgent"
	"github.com/httprunner/DeviceAgent/internal/env"
	adbprovider "github.com/httprunner/DeviceAgent/providers/adb"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "deviceagent",
	Short: "Session and file-sync engine for adb-reachable devices",
	Long: `deviceagent wraps a device's shell and file-transfer primitives into a
reliable session: commands with timeout/retry, hash-based incremental file
push, oversized read/write fallbacks, and cached device facts.`,
}

var (
	rootSerial  string
	rootTimeout time.Duration
	rootRetries int
)

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	rootCmd.PersistentFlags().StringVar(&rootSerial, "serial", "", "Device serial (optional with a single attached device)")
	rootCmd.PersistentFlags().DurationVar(&rootTimeout, "timeout", 0, "Per-operation timeout override")
	rootCmd.PersistentFlags().IntVar(&rootRetries, "retries", -1, "Per-operation retry override")
	rootCmd.AddCommand(
		newShellCmd(),
		newGetPropCmd(),
		newSetPropCmd(),
		newPushCmd(),
		newPullCmd(),
		newReadCmd(),
		newWriteCmd(),
		newRebootCmd(),
		newWaitBootCmd(),
		newKillAllCmd(),
		newScreenshotCmd(),
		newRestartServerCmd(),
	)
	_ = env.Ensure()
}

// openDevice builds a session from the persistent flags.
func openDevice() (*deviceagent.Device, error) {
	transport, err := adbprovider.Connect(rootSerial)
	if err != nil {
		return nil, err
	}
	var opts []deviceagent.Option
	if rootTimeout > 0 {
		opts = append(opts, deviceagent.WithDefaultTimeout(rootTimeout))
	}
	if rootRetries >= 0 {
		opts = append(opts, deviceagent.WithDefaultRetries(rootRetries))
	}
	return deviceagent.NewDevice(transport, opts...), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("deviceagent command failed")
	}
}
