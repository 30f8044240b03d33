package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	adbprovider "github.com/httprunner/DeviceAgent/providers/adb"
)

func newRebootCmd() *cobra.Command {
	var (
		flagBlock bool
		flagWifi  bool
	)

	cmd := &cobra.Command{
		Use:   "reboot",
		Short: "Reboot the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			device, err := openDevice()
			if err != nil {
				return err
			}
			log.Info().Str("serial", device.Serial()).Bool("block", flagBlock).Msg("rebooting device")
			return device.Reboot(cmd.Context(), flagBlock, flagWifi)
		},
	}

	cmd.Flags().BoolVar(&flagBlock, "block", true, "Wait until the device is fully booted again")
	cmd.Flags().BoolVar(&flagWifi, "wifi", false, "Also wait for wifi when blocking")
	return cmd
}

func newWaitBootCmd() *cobra.Command {
	var flagWifi bool

	cmd := &cobra.Command{
		Use:   "wait-boot",
		Short: "Block until the device is fully booted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			device, err := openDevice()
			if err != nil {
				return err
			}
			if err := device.WaitUntilFullyBooted(cmd.Context(), flagWifi); err != nil {
				return err
			}
			log.Info().Str("serial", device.Serial()).Msg("device fully booted")
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagWifi, "wifi", false, "Also wait for wifi")
	return cmd
}

func newRestartServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart-server",
		Short: "Kill and restart the local adb server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := adbprovider.RestartServer(cmd.Context()); err != nil {
				return err
			}
			log.Info().Msg("adb server restarted")
			return nil
		},
	}
	return cmd
}
