// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

var portsDetailed bool

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long: `List the serial ports present on this machine.

With --detailed, USB ports also show vendor id, product id and serial number,
which helps to tell several adapters apart.`,
	Args: cobra.NoArgs,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
	portsCmd.Flags().BoolVar(&portsDetailed, "detailed", false, "Show USB details")
}

func runPorts(cmd *cobra.Command, args []string) error {
	if portsDetailed {
		ports, err := enumerator.GetDetailedPortsList()
		if err != nil {
			return fmt.Errorf("failed to list ports: %w", err)
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports found")
			return nil
		}
		for _, p := range ports {
			if p.IsUSB {
				fmt.Printf("%s  USB %s:%s serial=%s %s\n", p.Name, p.VID, p.PID, p.SerialNumber, p.Product)
			} else {
				fmt.Printf("%s\n", p.Name)
			}
		}
		return nil
	}

	ports, err := serial.GetPortsList()
	if err != nil {
		return fmt.Errorf("failed to list ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}
