package main

import (
	"fmt"
	"strings"

	deviceagent "github.com/httprunner/DeviceAgent"
	"github.com/spf13/cobra"
)

func newShellCmd() *cobra.Command {
	var (
		flagCheckReturn bool
		flagCwd         string
		flagEnv         []string
		flagAsRoot      bool
		flagLiteral     bool
	)

	cmd := &cobra.Command{
		Use:   "shell [flags] -- <command> [args...]",
		Short: "Run a shell command on the device",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			device, err := openDevice()
			if err != nil {
				return err
			}
			env := make(map[string]string, len(flagEnv))
			for _, pair := range flagEnv {
				key, value, found := strings.Cut(pair, "=")
				if !found {
					return fmt.Errorf("invalid --env entry %q, want KEY=VALUE", pair)
				}
				env[key] = value
			}
			shellCmd := deviceagent.Argv(args...)
			if flagLiteral {
				shellCmd = deviceagent.ShellLine(strings.Join(args, " "))
			}
			lines, err := device.RunShellCommand(shellCmd, deviceagent.ShellOptions{
				CheckReturn: flagCheckReturn,
				Cwd:         flagCwd,
				Env:         env,
				AsRoot:      flagAsRoot,
			})
			if err != nil {
				return err
			}
			for _, line := range lines {
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagCheckReturn, "check-return", true, "Fail on nonzero exit instead of printing partial output")
	cmd.Flags().StringVar(&flagCwd, "cwd", "", "Device directory to run the command from")
	cmd.Flags().StringArrayVar(&flagEnv, "env", nil, "KEY=VALUE environment assignments (repeatable)")
	cmd.Flags().BoolVar(&flagAsRoot, "as-root", false, "Run through the root escalation wrapper")
	cmd.Flags().BoolVar(&flagLiteral, "literal", false, "Join args into one line interpreted by the device shell")
	return cmd
}

func newKillAllCmd() *cobra.Command {
	var (
		flagSignal   int
		flagAsRoot   bool
		flagBlocking bool
	)

	cmd := &cobra.Command{
		Use:   "killall <process-name>",
		Short: "Signal every process whose name contains the given string",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			device, err := openDevice()
			if err != nil {
				return err
			}
			killed, err := device.KillAll(cmd.Context(), args[0], deviceagent.KillOptions{
				Signal:   flagSignal,
				AsRoot:   flagAsRoot,
				Blocking: flagBlocking,
			})
			if err != nil {
				return err
			}
			fmt.Printf("signaled %d process(es)\n", killed)
			return nil
		},
	}

	cmd.Flags().IntVar(&flagSignal, "signal", 9, "Signal number to send")
	cmd.Flags().BoolVar(&flagAsRoot, "as-root", false, "Kill with root privileges")
	cmd.Flags().BoolVar(&flagBlocking, "blocking", false, "Wait until every matched process is gone")
	return cmd
}
