package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rv32pipe/rv32pipe/internal/cpu/debug"
	"github.com/rv32pipe/rv32pipe/internal/harness"
	"github.com/rv32pipe/rv32pipe/internal/image"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rv32pipe",
		Short: "rv32pipe — cycle-accurate RV32IA+Zicsr+Sv32 pipeline simulator",
	}

	var ramBase uint32
	var ramSize uint32
	var hexFormat bool
	var verbose bool

	// run command
	var cycles int
	var dumpRegs bool

	runCmd := &cobra.Command{
		Use:   "run [image]",
		Short: "Load a memory image and run N cycles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHarness(ramBase, ramSize, args[0], hexFormat)
			if err != nil {
				return err
			}
			if verbose {
				fmt.Printf("rv32pipe run\n")
				fmt.Printf("  RAM:    0x%08x .. 0x%08x\n", ramBase, ramBase+ramSize)
				fmt.Printf("  Cycles: %d\n", cycles)
			}
			for i := 0; i < cycles; i++ {
				if err := h.Step(); err != nil {
					return fmt.Errorf("run: cycle %d: %w", i, err)
				}
				if verbose && i%10000 == 0 && i > 0 {
					fmt.Printf("  %d cycles, pc=0x%08x\n", i, h.Core.PC())
				}
			}
			fmt.Printf("Ran %d cycles. PC = 0x%08x, Priv = %d\n", cycles, h.Core.PC(), h.Core.Priv())
			if dumpRegs {
				printSnapshot(debug.NewSampler(h.Core).Sample())
			}
			return nil
		},
	}
	runCmd.Flags().IntVar(&cycles, "cycles", 1000, "Number of cycles to run")
	runCmd.Flags().BoolVar(&dumpRegs, "dump-regs", false, "Print a register snapshot after running")

	// step command: interactive single-cycle REPL
	stepCmd := &cobra.Command{
		Use:   "step [image]",
		Short: "Load a memory image and single-step interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHarness(ramBase, ramSize, args[0], hexFormat)
			if err != nil {
				return err
			}
			return runStepper(h)
		},
	}

	// regs command
	var regAddr int
	var regsCycles int
	regsCmd := &cobra.Command{
		Use:   "regs [image]",
		Short: "Load a memory image, run N cycles, and dump the debug-port register snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHarness(ramBase, ramSize, args[0], hexFormat)
			if err != nil {
				return err
			}
			if err := h.Run(regsCycles); err != nil {
				return fmt.Errorf("regs: %w", err)
			}
			sampler := debug.NewSampler(h.Core)
			if regAddr >= 0 {
				h.Core.SetDebugRegAddr(uint8(regAddr))
				fmt.Printf("x%d = 0x%08x\n", regAddr, h.Core.Debug().RegData)
				return nil
			}
			printSnapshot(sampler.Sample())
			return nil
		},
	}
	regsCmd.Flags().IntVar(&regsCycles, "cycles", 0, "Number of cycles to run before sampling")
	regsCmd.Flags().IntVar(&regAddr, "reg", -1, "Dump a single register (0-31) instead of the full snapshot")

	for _, c := range []*cobra.Command{runCmd, stepCmd, regsCmd} {
		c.Flags().Uint32Var(&ramBase, "ram-base", 0, "Base address of the RAM window")
		c.Flags().Uint32Var(&ramSize, "ram-size", 1<<20, "Size in bytes of the RAM window")
		c.Flags().BoolVar(&hexFormat, "hex", false, "Treat the image as Intel HEX instead of raw binary")
	}
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose progress output")

	rootCmd.AddCommand(runCmd, stepCmd, regsCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newHarness builds a harness with a fresh core and loads the given
// image into its RAM window at ramBase.
func newHarness(ramBase, ramSize uint32, path string, hexFormat bool) (*harness.Harness, error) {
	h, err := harness.New(ramBase, ramSize)
	if err != nil {
		return nil, fmt.Errorf("rv32pipe: %w", err)
	}
	fs := afero.NewOsFs()
	if hexFormat {
		if err := image.LoadHex(fs, path, h.Bus.RAM); err != nil {
			return nil, fmt.Errorf("rv32pipe: loading %s: %w", path, err)
		}
		return h, nil
	}
	if err := image.LoadRaw(fs, path, ramBase, h.Bus.RAM); err != nil {
		return nil, fmt.Errorf("rv32pipe: loading %s: %w", path, err)
	}
	return h, nil
}

func printSnapshot(s debug.Snapshot) {
	fmt.Printf("pc   = 0x%08x  priv = %d\n", s.PC, s.Priv)
	for i := 0; i < 32; i += 4 {
		fmt.Printf("x%-2d = 0x%08x  x%-2d = 0x%08x  x%-2d = 0x%08x  x%-2d = 0x%08x\n",
			i, s.X[i], i+1, s.X[i+1], i+2, s.X[i+2], i+3, s.X[i+3])
	}
}

// runStepper drives one cycle per keystroke. Falls back to line-buffered
// Enter-to-step when stdin isn't a terminal (piped input, CI).
func runStepper(h *harness.Harness) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return runStepperBuffered(h)
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("step: putting stdin in raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	fmt.Printf("rv32pipe interactive stepper — space/enter advances one cycle, q quits\r\n")
	buf := make([]byte, 1)
	for {
		if _, err := os.Stdin.Read(buf); err != nil {
			return fmt.Errorf("step: reading stdin: %w", err)
		}
		switch buf[0] {
		case 'q', 'Q', 3: // 3 = Ctrl-C
			return nil
		default:
			if err := h.Step(); err != nil {
				fmt.Printf("\r\nstep failed: %v\r\n", err)
				return err
			}
			fmt.Printf("pc=0x%08x priv=%d\r\n", h.Core.PC(), h.Core.Priv())
		}
	}
}

func runStepperBuffered(h *harness.Harness) error {
	sc := bufio.NewScanner(os.Stdin)
	fmt.Println("rv32pipe interactive stepper — Enter advances one cycle, 'q' quits")
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "q" {
			return nil
		}
		n := 1
		if line != "" {
			if v, err := strconv.Atoi(line); err == nil && v > 0 {
				n = v
			}
		}
		if err := h.Run(n); err != nil {
			fmt.Printf("step failed: %v\n", err)
			return err
		}
		fmt.Printf("pc=0x%08x priv=%d\n", h.Core.PC(), h.Core.Priv())
	}
	return nil
}
