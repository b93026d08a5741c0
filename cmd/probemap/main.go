// Probemap extracts variable layout information from the debug symbols of
// an embedded firmware and stores it in a compact address registry.
//
// The registry maps display paths like /global/main.cpp/counter to address,
// type, bitfield and enum information, so that a debug tool can read and
// write firmware memory without carrying the full DWARF data around.
//
// Usage:
//
//	probemap [command] [flags]
//
// See 'probemap --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/probemap/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "probemap",
	Short: "Firmware debug symbol extractor",
	Long: `Probemap reads the DWARF debug info of a firmware ELF file and builds
a JSON registry of every statically allocated variable: its address, type,
bitfield window and enum values.

The registry is self-contained and much smaller than the debug info it
comes from, making it suitable to ship alongside the firmware.`,
	Version: version.Version,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("probemap %s (commit: %s)\n", version.Version, version.Commit)
	},
}
