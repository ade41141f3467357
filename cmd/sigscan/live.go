package main

import (
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/cobra"

	"github.com/nmhfix/nmhfix/internal/module"
)

func newLiveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "live [process name]",
		Short: "Scan the image of a running process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := findProcess(args[0])
			if err != nil {
				return err
			}
			exe, err := p.Exe()
			if err != nil {
				exe = args[0]
			}
			m, err := module.ReadProcess(uint32(p.Pid), exe)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Process ID: %d\n", p.Pid)
			return report(cmd.OutOrStdout(), m)
		},
	}
}

// findProcess returns the first process named name, ignoring case.
func findProcess(name string) (*process.Process, error) {
	processes, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	for _, p := range processes {
		n, err := p.Name()
		if err != nil {
			continue
		}
		if strings.EqualFold(n, name) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("process %q not found", name)
}
