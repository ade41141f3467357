// Command sigscan checks the fix's signatures against a game executable,
// either on disk or in a running process.
//
// Usage:
//
//	sigscan list
//	sigscan file NMH.exe
//	sigscan live NMH.exe
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nmhfix/nmhfix/internal/driver"
	"github.com/nmhfix/nmhfix/internal/layout"
	"github.com/nmhfix/nmhfix/internal/module"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "sigscan",
		Short:        "Checks NMHFix signatures against a game executable",
		SilenceUsage: true,
	}
	root.AddCommand(newListCommand(), newFileCommand(), newLiveCommand())
	return root
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every signature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range driver.Sites() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", s.Name, s.Signature)
			}
			return nil
		},
	}
}

func newFileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "file [exe]",
		Short: "Scan an executable on disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := module.Open(args[0])
			if err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), m)
		},
	}
}

// report prints the image identity and where each signature matched. It
// returns an error if any signature is missing.
func report(w io.Writer, m *module.Image) error {
	fmt.Fprintf(w, "Module Name: %s\n", m.Name)
	fmt.Fprintf(w, "Module Address: %#x\n", m.Base)
	fmt.Fprintf(w, "Module Timestamp: %d\n", m.Timestamp)
	fmt.Fprintf(w, "Build Variant: %s\n", m.Variant())

	region := m.Region()
	missing := 0
	for _, s := range driver.Sites() {
		addr, err := region.Find(s.Signature)
		if err != nil {
			missing++
			fmt.Fprintf(w, "%s: not found\n", s.Name)
			continue
		}
		fmt.Fprintf(w, "%s: %s+%x\n", s.Name, m.Name, region.Offset(addr))
	}

	if missing > 0 {
		return fmt.Errorf("%d of %d signatures not found", missing, len(driver.Sites()))
	}

	// Offsets that are not found by signature depend on the variant.
	t := layout.For(m.Variant())
	fmt.Fprintf(w, "SetViewport width offset: %#x\n", t.Offset(layout.SetViewportWidth))
	return nil
}
