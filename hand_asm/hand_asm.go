// hand_asm takes a hand assembled listing and produces a runtime image
// for the test machine from it. Listing lines are of the form:
//
// XXXX OP A1 A2 <anything>
//
// Where XXXX is the address field and OP is the opcode
// A1,A2 are then optional params as needed. Anything after the
// bytes (mnemonics, comments) is ignored as are lines which don't
// start with an address.
//
// The image covers --offset to the top of memory with the BRK vector
// pointing at --start_pc (or the first address in the listing) so it
// can be loaded and run as is.
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmchacon/cthulhutest/machine"
	"github.com/jmchacon/cthulhutest/memory"
)

const BRK_VECTOR = uint16(0xFFFE)

func main() {
	if err := command().Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

func command() *cobra.Command {
	var startPC, offset int
	cmd := &cobra.Command{
		Use:           "hand_asm <input> <output>",
		Short:         "Build a runtime image from a hand assembled listing",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			if offset < 0 || offset > 0xFFFF {
				return fmt.Errorf("--offset out of range. Must be between 0-65535")
			}
			if startPC > 0xFFFF {
				return fmt.Errorf("--start_pc out of range. Must be between 0-65535")
			}
			fn, out := args[0], args[1]
			b, err := os.ReadFile(fn)
			if err != nil {
				return fmt.Errorf("can't open and process %q for input - %v", fn, err)
			}
			img, err := assemble(bytes.NewReader(b), uint16(offset), startPC)
			if err != nil {
				return fmt.Errorf("%s: %v", fn, err)
			}
			if err := os.WriteFile(out, img, 0644); err != nil {
				return fmt.Errorf("can't write %q - %v", out, err)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&startPC, "start_pc", -1, "PC the BRK vector points at (default is the first listed address)")
	cmd.Flags().IntVar(&offset, "offset", int(machine.LOAD_ADDRESS), "Address the image is loaded at. Listed addresses below this are an error.")
	return cmd
}

// assemble builds the image from a listing. A negative start uses the first
// address in the listing.
func assemble(r io.Reader, offset uint16, start int) ([]byte, error) {
	f := &memory.Flat{}
	f.PowerOn()
	scanner := bufio.NewScanner(r)
	l := 0
	first := -1
	for scanner.Scan() {
		t := scanner.Text()
		l++
		toks := strings.Fields(t)
		if len(toks) == 0 || len(toks[0]) != 4 {
			continue
		}
		addr, err := strconv.ParseUint(toks[0], 16, 16)
		if err != nil {
			continue
		}
		if uint16(addr) < offset {
			return nil, fmt.Errorf("line %d: address 0x%.4X is below the image offset 0x%.4X", l, addr, offset)
		}
		var code []byte
		for _, v := range toks[1:] {
			if len(v) != 2 {
				break
			}
			b, err := strconv.ParseUint(v, 16, 8)
			if err != nil {
				break
			}
			code = append(code, byte(b))
		}
		// Should be 1-3 bytes
		if len(code) == 0 || len(code) > 3 {
			return nil, fmt.Errorf("invalid line %d - %q", l, t)
		}
		if int(addr)+len(code) > 0x10000 {
			return nil, fmt.Errorf("line %d: %d bytes at 0x%.4X run off the top of memory", l, len(code), addr)
		}
		f.StoreBytes(uint16(addr), code)
		if first < 0 {
			first = int(addr)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if first < 0 {
		return nil, fmt.Errorf("no listing lines found")
	}
	if start < 0 {
		start = first
	}
	f.StoreBytes(BRK_VECTOR, []byte{uint8(start & 0xFF), uint8(start >> 8)})
	img := make([]byte, 0x10000-int(offset))
	f.LoadBytes(offset, img)
	return img, nil
}
