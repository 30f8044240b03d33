package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGetPropCmd() *cobra.Command {
	var flagNoCache bool

	cmd := &cobra.Command{
		Use:   "getprop <name>",
		Short: "Read a system property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			device, err := openDevice()
			if err != nil {
				return err
			}
			value, err := device.GetProp(args[0], !flagNoCache)
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Bypass the session fact cache")
	return cmd
}

func newSetPropCmd() *cobra.Command {
	var flagCheck bool

	cmd := &cobra.Command{
		Use:   "setprop <name> <value>",
		Short: "Write a system property",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			device, err := openDevice()
			if err != nil {
				return err
			}
			return device.SetProp(args[0], args[1], flagCheck)
		},
	}

	cmd.Flags().BoolVar(&flagCheck, "check", true, "Re-read the property and fail when the write did not stick")
	return cmd
}
