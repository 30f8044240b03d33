package main

import (
	"fmt"
	"os"
	"path/filepath"

	deviceagent "github.com/httprunner/DeviceAgent"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newPushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push <host-path> <device-path> [<host-path> <device-path>...]",
		Short: "Push files or directories, skipping unchanged content",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 || len(args)%2 != 0 {
				return fmt.Errorf("want host/device path pairs, got %d args", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			device, err := openDevice()
			if err != nil {
				return err
			}
			pairs := make([]deviceagent.TransferUnit, 0, len(args)/2)
			for i := 0; i < len(args); i += 2 {
				host, err := filepath.Abs(args[i])
				if err != nil {
					return err
				}
				pairs = append(pairs, deviceagent.TransferUnit{HostPath: host, DevicePath: args[i+1]})
			}
			if err := device.PushChangedFiles(cmd.Context(), pairs); err != nil {
				return err
			}
			log.Info().Str("serial", device.Serial()).Int("pairs", len(pairs)).Msg("push complete")
			return nil
		},
	}
	return cmd
}

func newPullCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull <device-path> <host-path>",
		Short: "Pull one file from the device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			device, err := openDevice()
			if err != nil {
				return err
			}
			return device.PullFile(args[0], args[1])
		},
	}
	return cmd
}

func newReadCmd() *cobra.Command {
	var flagAsRoot bool

	cmd := &cobra.Command{
		Use:   "read <device-path>",
		Short: "Print the contents of a device file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			device, err := openDevice()
			if err != nil {
				return err
			}
			contents, err := device.ReadFile(args[0], flagAsRoot)
			if err != nil {
				return err
			}
			fmt.Print(contents)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagAsRoot, "as-root", false, "Read with root privileges")
	return cmd
}

func newWriteCmd() *cobra.Command {
	var (
		flagAsRoot    bool
		flagForcePush bool
		flagFromFile  string
	)

	cmd := &cobra.Command{
		Use:   "write <device-path> [contents]",
		Short: "Write contents to a device file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			device, err := openDevice()
			if err != nil {
				return err
			}
			var contents string
			switch {
			case flagFromFile != "":
				data, err := os.ReadFile(flagFromFile)
				if err != nil {
					return err
				}
				contents = string(data)
			case len(args) == 2:
				contents = args[1]
			default:
				return fmt.Errorf("provide contents inline or via --from-file")
			}
			return device.WriteFile(args[0], contents, flagAsRoot, flagForcePush)
		},
	}

	cmd.Flags().BoolVar(&flagAsRoot, "as-root", false, "Write with root privileges")
	cmd.Flags().BoolVar(&flagForcePush, "force-push", false, "Always transfer via file push instead of the shell fast path")
	cmd.Flags().StringVar(&flagFromFile, "from-file", "", "Read contents from this host file")
	return cmd
}

func newScreenshotCmd() *cobra.Command {
	var flagOut string

	cmd := &cobra.Command{
		Use:   "screenshot",
		Short: "Capture the device screen to a host file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			device, err := openDevice()
			if err != nil {
				return err
			}
			path, err := device.TakeScreenshot(flagOut)
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}

	cmd.Flags().StringVar(&flagOut, "out", "", "Host path for the screenshot (default: timestamped name)")
	return cmd
}
