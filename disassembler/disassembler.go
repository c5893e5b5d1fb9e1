// disassembler takes a runtime image, loads it the way the test machine
// does and then disassembles it to stdout. Useful for matching up the PC
// values in a crash trace with the image.
//
// Disassembly starts at the BRK vector target (where execution begins once
// the machine starts) unless --start_pc is given and runs until the end of
// the loaded image.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/beevik/go6502/disasm"
	"github.com/spf13/cobra"

	"github.com/jmchacon/cthulhutest/machine"
	"github.com/jmchacon/cthulhutest/memory"
)

const BRK_VECTOR = uint16(0xFFFE)

func main() {
	if err := command(os.Stdout).Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

func command(stdout io.Writer) *cobra.Command {
	var startPC, offset int
	cmd := &cobra.Command{
		Use:           "disassembler <image>",
		Short:         "Disassemble a 65C02 runtime image",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			if offset < 0 || offset > 0xFFFF {
				return fmt.Errorf("--offset out of range. Must be between 0-65535")
			}
			if startPC > 0xFFFF {
				return fmt.Errorf("--start_pc out of range. Must be between 0-65535")
			}
			fn := args[0]
			b, err := os.ReadFile(fn)
			if err != nil {
				return fmt.Errorf("can't open %s - %v", fn, err)
			}
			f := &memory.Flat{}
			f.PowerOn()
			if err := f.Load(uint16(offset), b); err != nil {
				return err
			}
			pc := f.LoadAddress(BRK_VECTOR)
			if startPC >= 0 {
				pc = uint16(startPC)
			}
			end := offset + len(b)
			if int(pc) < offset || int(pc) >= end {
				return fmt.Errorf("start PC 0x%.4X is outside the image (0x%.4X-0x%.4X)", pc, offset, end-1)
			}
			fmt.Fprintf(stdout, "0x%.2X bytes at pc: %.4X\n", len(b), pc)
			return list(stdout, f, pc, end-int(pc))
		},
	}
	cmd.SetOut(stdout)
	cmd.Flags().IntVar(&startPC, "start_pc", -1, "PC value to start disassembling (default is the BRK vector target)")
	cmd.Flags().IntVar(&offset, "offset", int(machine.LOAD_ADDRESS), "Offset into RAM to load the image at")
	return cmd
}

// list disassembles n bytes of mem starting at pc, one instruction per line.
// The final instruction may run past n if it straddles the end.
func list(w io.Writer, mem *memory.Flat, pc uint16, n int) error {
	for cnt := 0; cnt < n; {
		dis, next := disasm.Disassemble(mem, pc)
		if _, err := fmt.Fprintf(w, "%.4X %s\n", pc, dis); err != nil {
			return err
		}
		// Can't base it on PC since it may rollover so count bytes instead.
		cnt += int(next - pc)
		pc = next
	}
	return nil
}
