package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/wippyai/native-abi/abi"
	"github.com/wippyai/native-abi/witsig"
)

var knownABIs = []*abi.Descriptor{abi.AMD64SysV, abi.PPC64ELFv2}

func main() {
	var (
		abiName     = flag.String("abi", "", "ABI descriptor (amd64-sysv, ppc64-elfv2 or arch/os); default host")
		sigText     = flag.String("sig", "", "Signature text, e.g. 'add: func(a: s32, b: s32) -> s32;'")
		sigFile     = flag.String("file", "", "Read signature text from a file")
		direction   = flag.String("dir", "downcall", "Call direction: downcall, upcall or both")
		valist      = flag.Bool("valist", false, "Show the variadic save area layout and exit")
		list        = flag.Bool("list", false, "List known ABIs and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *list {
		for _, d := range knownABIs {
			fmt.Printf("%-14s %s, %d int regs, %d float regs\n",
				d.Name, d.Arch, len(d.IntArgRegs), len(d.FloatArgRegs))
		}
		return
	}

	desc, err := resolveABI(*abiName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *valist {
		printVaList(desc)
		return
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "stdout is not a terminal, skipping interactive mode")
		} else {
			if err := runInteractive(desc); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	text := *sigText
	if *sigFile != "" {
		data, err := os.ReadFile(*sigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		text = string(data)
	}
	if text == "" {
		fmt.Fprintln(os.Stderr, "Usage: abi-explorer -sig 'name: func(a: s32) -> s32;' [-abi name] [-dir downcall|upcall|both]")
		fmt.Fprintln(os.Stderr, "       abi-explorer -file signatures.wit")
		fmt.Fprintln(os.Stderr, "       abi-explorer -list")
		fmt.Fprintln(os.Stderr, "       abi-explorer -i  (interactive mode)")
		os.Exit(1)
	}

	if err := dump(desc, text, *direction); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func resolveABI(name string) (*abi.Descriptor, error) {
	if name == "" {
		return abi.Host()
	}
	for _, d := range knownABIs {
		if d.Name == name {
			return d, nil
		}
	}
	if arch, goos, ok := strings.Cut(name, "/"); ok {
		return abi.Lookup(arch, goos)
	}
	return nil, fmt.Errorf("unknown ABI %q, try -list", name)
}

func dump(desc *abi.Descriptor, text, direction string) error {
	var dirs []abi.Direction
	switch direction {
	case "downcall":
		dirs = []abi.Direction{abi.Downcall}
	case "upcall":
		dirs = []abi.Direction{abi.Upcall}
	case "both":
		dirs = []abi.Direction{abi.Downcall, abi.Upcall}
	default:
		return fmt.Errorf("unknown direction %q", direction)
	}

	sigs, err := witsig.ParseText(text)
	if err != nil {
		return err
	}

	for _, sig := range sigs {
		for _, dir := range dirs {
			seq, err := abi.Arrange(desc, sig.Func, dir)
			if err != nil {
				return fmt.Errorf("arrange %s: %w", sig.Name, err)
			}
			fmt.Printf("%s: %s", sig.Name, seq)
		}
	}
	return nil
}

func printVaList(desc *abi.Descriptor) {
	v := desc.Variadic
	fmt.Printf("%s variadic save area:\n", desc.Name)
	fmt.Printf("  gp slots:  %d x %d bytes (%d total)\n", v.GPSlots, v.GPSlotSize, v.GPAreaSize())
	fmt.Printf("  fp slots:  %d x %d bytes (%d total)\n", v.FPSlots, v.FPSlotSize, v.FPAreaSize())
	fmt.Printf("  reg save:  %d bytes\n", v.RegSaveSize())
	fmt.Printf("  overflow:  %d byte slots, %d byte pre-align\n", v.OverflowGranularity, v.OverflowOverAlign)
	if v.Promotion == abi.PromoteGP {
		fmt.Printf("  floats promote to gp slots\n")
	}
}
