// Package machine owns the emulated computer a runtime image is tested on:
// a 65C02 with a flat 64k RAM seen through an observable bus so memory
// mapped ports can be attached before it's started.
//
// There's no ROM, no interrupt sources and no timer. The machine runs from
// the reset PC until the next opcode to execute is a BRK which is taken to
// mean the runtime has quit (or died).
package machine

import (
	"fmt"

	"github.com/beevik/go6502/cpu"
	"github.com/beevik/go6502/disasm"

	"github.com/jmchacon/cthulhutest/memory"
)

const (
	LOAD_ADDRESS = uint16(0x8000) // Base address runtime images are loaded at.
	RESET_PC     = uint16(0xF006) // Starting PC. Fetching here reads 0 (BRK) which vectors through 0xFFFE.
	HALT_OPCODE  = uint8(0x00)    // BRK. Running stops when this is the next opcode.
)

// Def defines the pieces needed to set up a machine.
type Def struct {
	// Trace is how many of the most recently executed instructions to keep for
	// Trace(). 0 turns tracing off.
	Trace int
}

// Result describes how a Run ended.
type Result struct {
	Steps  uint64 // Instructions executed.
	Cycles uint64 // CPU cycles elapsed during the run.
	PC     uint16 // PC of the halting opcode.
}

type step struct {
	reg    cpu.Registers
	cycles uint64
}

// Machine is a 65C02 with 64k of RAM behind an observable bus.
type Machine struct {
	ram   *memory.Flat
	bus   *memory.Observable
	cpu   *cpu.CPU
	trace []step
	loc   int
	full  bool
}

// Init returns a powered on machine with zeroed RAM.
func Init(def *Def) (*Machine, error) {
	if def == nil {
		return nil, fmt.Errorf("def must be non-nil")
	}
	if def.Trace < 0 {
		return nil, fmt.Errorf("trace depth %d is invalid", def.Trace)
	}
	ram := &memory.Flat{}
	m := &Machine{
		ram: ram,
		bus: memory.NewObservable(ram),
	}
	m.bus.PowerOn()
	m.cpu = cpu.NewCPU(cpu.CMOS, m.bus)
	if def.Trace > 0 {
		m.trace = make([]step, def.Trace)
	}
	return m, nil
}

var (
	_ cpu.Memory = (*memory.Flat)(nil)
	_ cpu.Memory = (*memory.Observable)(nil)
)

// Load copies image into RAM at base.
func (m *Machine) Load(image []byte, base uint16) error {
	if err := m.ram.Load(base, image); err != nil {
		return fmt.Errorf("can't load image: %v", err)
	}
	return nil
}

// Bus returns the bus ports get installed on.
func (m *Machine) Bus() *memory.Observable {
	return m.bus
}

// Cycles returns the CPU cycles elapsed since power on.
func (m *Machine) Cycles() uint64 {
	return m.cpu.Cycles
}

// PC returns the current program counter.
func (m *Machine) PC() uint16 {
	return m.cpu.Reg.PC
}

// Run sets the PC and steps the CPU until the next opcode is HALT_OPCODE.
// The halt check looks at RAM directly so it never triggers a port.
// There's no limit on how long this runs: a runtime that neither quits nor
// halts will keep it going forever.
func (m *Machine) Run(pc uint16) Result {
	start := m.cpu.Cycles
	m.cpu.SetPC(pc)
	var steps uint64
	for {
		if m.trace != nil {
			m.trace[m.loc] = step{
				reg:    m.cpu.Reg,
				cycles: m.cpu.Cycles,
			}
			m.loc++
			if m.loc >= len(m.trace) {
				m.loc = 0
				m.full = true
			}
		}
		m.cpu.Step()
		steps++
		if m.bus.Peek(m.cpu.Reg.PC) == HALT_OPCODE {
			break
		}
	}
	return Result{
		Steps:  steps,
		Cycles: m.cpu.Cycles - start,
		PC:     m.cpu.Reg.PC,
	}
}

// Trace returns the most recently executed instructions, oldest first, as
// disassembly plus the registers before each ran. Disassembly reads RAM
// directly so ports are left alone (and show whatever was last stored there).
func (m *Machine) Trace() []string {
	if m.trace == nil {
		return nil
	}
	n, first := m.loc, 0
	if m.full {
		n, first = len(m.trace), m.loc
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s := m.trace[(first+i)%len(m.trace)]
		line, _ := disasm.Disassemble(m.ram, s.reg.PC)
		out = append(out, fmt.Sprintf("%.4X  %-20s %s C=%d", s.reg.PC, line, disasm.GetRegisterString(&s.reg), s.cycles))
	}
	return out
}

// Crashed reports whether a run that stopped with the input cursor at
// cursor (out of length bytes) quit before it read all of its input. A
// runtime that finishes normally reads up to the final quit byte so
// anything more than one short of that counts as a crash.
func Crashed(cursor, length int) bool {
	return cursor < length-2
}
