package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/muurk/probemap/internal/extract"
	"github.com/muurk/probemap/internal/logging"
	"github.com/muurk/probemap/internal/varmap"
	"github.com/muurk/probemap/internal/varmodel"
)

// Extraction command flags
var (
	outputPath  string
	optionsFile string
	ignoreCUs   []string
	ignorePaths []string
	noDeref     bool
	cppfiltPath string
	logLevel    string
)

// Styles for the dump output
var (
	pathStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
	typeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	addrStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#43BF6D"))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	summaryStyle = lipgloss.NewStyle().Bold(true)
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log verbosity (debug, info, warn, error); silent when unset")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(getCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract <firmware.elf>",
	Short: "Build an address registry from an ELF file",
	Long: `Read the DWARF debug info of a firmware ELF file and write the address
registry as JSON.

Compile units and variable paths can be excluded with glob patterns, given
either on the command line or in a YAML options file. Command line patterns
add to the file's.`,
	Example: `  # Extract everything
  probemap extract firmware.elf -o firmware.varmap.json

  # Skip vendor code and internal variables
  probemap extract firmware.elf --ignore-cu 'vendor/*' --ignore-path '/global/*/internal_*'

  # TI toolchains that need an external demangler
  probemap extract firmware.elf --cppfilt /opt/ti/bin/c++filt`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&outputPath, "output", "o", "varmap.json", "Output file path")
	extractCmd.Flags().StringVar(&optionsFile, "options", "", "YAML options file")
	extractCmd.Flags().StringArrayVar(&ignoreCUs, "ignore-cu", nil, "Compile unit pattern to skip (repeatable)")
	extractCmd.Flags().StringArrayVar(&ignorePaths, "ignore-path", nil, "Variable path pattern to drop (repeatable)")
	extractCmd.Flags().BoolVar(&noDeref, "no-deref", false, "Do not register the pointed side of pointer variables")
	extractCmd.Flags().StringVar(&cppfiltPath, "cppfilt", "", "Path to an external c++filt binary")
}

func runExtract(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}

	var opts extract.Options
	if optionsFile != "" {
		loaded, err := extract.LoadOptionsFile(optionsFile)
		if err != nil {
			return err
		}
		opts = loaded
	}
	opts.IgnoreCompileUnits = append(opts.IgnoreCompileUnits, ignoreCUs...)
	opts.IgnorePaths = append(opts.IgnorePaths, ignorePaths...)
	if noDeref {
		deref := false
		opts.DereferencePointers = &deref
	}
	if cppfiltPath != "" {
		opts.CppFilt = cppfiltPath
	}

	vm, parseErrors, err := extract.ExtractFile(args[0], opts)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	if err := vm.WriteFile(outputPath); err != nil {
		return err
	}

	fmt.Println(summaryStyle.Render(fmt.Sprintf("Wrote %d variables to %s", len(vm.Names()), outputPath)))
	if parseErrors.Count() > 0 {
		fmt.Println(detailStyle.Render(fmt.Sprintf("%d entries could not be read, first: %v",
			parseErrors.Count(), parseErrors.First())))
	}
	return nil
}

var dumpCmd = &cobra.Command{
	Use:   "dump <varmap.json>",
	Short: "List the contents of an address registry",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func runDump(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}

	vm, err := varmap.LoadFile(args[0])
	if err != nil {
		return err
	}

	names := vm.Names()
	fmt.Println(summaryStyle.Render(fmt.Sprintf("%s: %d variables, %s", args[0], len(names), vm.Endianness())))

	for _, name := range names {
		factory, err := vm.GetFactory(name)
		if err != nil {
			fmt.Printf("  %s  %s\n", pathStyle.Render(name), detailStyle.Render(fmt.Sprintf("unreadable: %v", err)))
			continue
		}

		layout := factory.Layout()
		line := fmt.Sprintf("  %s  %s  %s",
			pathStyle.Render(name),
			typeStyle.Render(layout.Type.String()),
			addrStyle.Render(fmt.Sprintf("%v", factory.BaseLocation())))

		var details []string
		if layout.IsBitfield() {
			details = append(details, fmt.Sprintf("bits %d:%d", layout.BitOffset, layout.BitSize))
		}
		if layout.Enum != nil {
			details = append(details, "enum "+layout.Enum.Name())
		}
		for _, nodePath := range sortedNodePaths(factory) {
			details = append(details, fmt.Sprintf("%s%v", nodePath, factory.ArrayNodes()[nodePath].Dims()))
		}
		if len(details) > 0 {
			line += "  " + detailStyle.Render(strings.Join(details, ", "))
		}
		fmt.Println(line)
	}
	return nil
}

func sortedNodePaths(factory *varmodel.Factory) []string {
	nodes := factory.ArrayNodes()
	out := make([]string, 0, len(nodes))
	for path := range nodes {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

var getCmd = &cobra.Command{
	Use:   "get <varmap.json> <path>",
	Short: "Resolve one variable path",
	Long: `Resolve a variable path to its memory location. Indexed segments select
array elements, e.g. /global/main.cpp/matrix/matrix[2][3].`,
	Args: cobra.ExactArgs(2),
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}

	vm, err := varmap.LoadFile(args[0])
	if err != nil {
		return err
	}
	v, err := vm.GetVar(args[1])
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", pathStyle.Render(v.FullName()), typeStyle.Render(v.Type().String()))
	if addr, ok := v.Address(); ok {
		fmt.Printf("  address:  %s\n", addrStyle.Render(fmt.Sprintf("0x%08x", addr)))
	} else if ptr, ok := v.PointerLocation(); ok {
		fmt.Printf("  location: %s\n", addrStyle.Render(ptr.String()))
	}
	layout := v.Layout()
	if layout.IsBitfield() {
		fmt.Printf("  bitfield: offset %d, size %d\n", layout.BitOffset, layout.BitSize)
	}
	if enum := v.Enum(); enum != nil {
		fmt.Printf("  enum:     %s\n", enum.Name())
		values := enum.Values()
		for _, name := range enum.Names() {
			fmt.Printf("    %s = %d\n", detailStyle.Render(name), values[name])
		}
	}
	return nil
}
