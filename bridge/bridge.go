// Package bridge implements the console and timing peripherals of the test
// machine. None of them exist as hardware: each is a set of side effects
// attached to fixed addresses on the memory bus.
//
// A runtime under test polls INPUT_PORT for keystrokes, writes characters to
// OUTPUT_PORT and can time a section of code by reading CYCLE_START_PORT and
// CYCLE_END_PORT around it and then reading back the elapsed cycle count
// from the 4 CYCLE_DIFF ports.
package bridge

import (
	"errors"
	goio "io"

	"github.com/jmchacon/cthulhutest/io"
	"github.com/jmchacon/cthulhutest/memory"
)

const (
	OUTPUT_PORT      = uint16(0xF001) // Write: character output.
	INPUT_PORT       = uint16(0xF004) // Read: character input, 0 when exhausted.
	CYCLE_START_PORT = uint16(0xF006) // Read: snapshot cycle counter into the window start.
	CYCLE_END_PORT   = uint16(0xF007) // Read: snapshot cycle counter into the window end.
	CYCLE_DIFF_PORT  = uint16(0xF008) // Read: first of 4 bytes of End-Start.
)

// CycleCounter is anything which can report the elapsed CPU cycles.
type CycleCounter interface {
	Cycles() uint64
}

// Subscriber is the bus side of port installation.
type Subscriber interface {
	SubscribeToRead(addrs []uint16, h memory.ReadHook)
	SubscribeToWrite(addrs []uint16, h memory.WriteHook)
}

// CycleWindow holds the two most recent cycle snapshots. There is no validity
// flag: reading back before a start/end pair has been taken returns whatever
// is left over (zero on a fresh bridge).
type CycleWindow struct {
	Start uint64
	End   uint64
}

// Diff returns the 32 bit elapsed count End-Start. Wrapping is intentional
// since the readback only has 4 bytes.
func (c CycleWindow) Diff() uint32 {
	return uint32(c.End - c.Start)
}

// Def defines the pieces needed to set up a bridge.
type Def struct {
	// Transcript receives every non-zero byte written to OUTPUT_PORT. Required.
	Transcript goio.Writer
	// Console mirrors the transcript when non-nil and Mute is false.
	Console goio.Writer
	// Mute turns off the console mirror.
	Mute bool
	// Suppress holds back all output until the input cursor reaches Boundary.
	Suppress bool
	// Boundary is the input index of the first test character. See Suppress.
	Boundary int
}

// Bridge owns all the state the ports share: the input cursor, the output
// handles and the cycle window. Everything runs on the CPU's goroutine as a
// direct result of its memory accesses so no locking is done.
type Bridge struct {
	in     *Stream
	out    *output
	clock  CycleCounter
	window CycleWindow
}

// Init returns a bridge reading keystrokes from in and timing against clock.
func Init(in *Stream, clock CycleCounter, def *Def) (*Bridge, error) {
	if in == nil {
		return nil, errors.New("input stream must be non-nil")
	}
	if clock == nil {
		return nil, errors.New("cycle counter must be non-nil")
	}
	if def == nil || def.Transcript == nil {
		return nil, errors.New("Transcript must be non-nil in def")
	}
	b := &Bridge{
		in:    in,
		clock: clock,
	}
	o := &output{
		transcript: def.Transcript,
		suppress:   def.Suppress,
		boundary:   def.Boundary,
		cursor:     in.Cursor,
	}
	if !def.Mute {
		o.console = def.Console
	}
	b.out = o
	return b, nil
}

// Install subscribes every port handler on bus.
func (b *Bridge) Install(bus Subscriber) {
	bus.SubscribeToWrite([]uint16{OUTPUT_PORT}, b.WriteOutput)
	bus.SubscribeToRead([]uint16{INPUT_PORT}, b.ReadInput)
	bus.SubscribeToRead([]uint16{CYCLE_START_PORT}, b.StartCycles)
	bus.SubscribeToRead([]uint16{CYCLE_END_PORT}, b.EndCycles)
	bus.SubscribeToRead([]uint16{CYCLE_DIFF_PORT, CYCLE_DIFF_PORT + 1, CYCLE_DIFF_PORT + 2, CYCLE_DIFF_PORT + 3}, b.ReadCycles)
}

// ReadInput handles reads of INPUT_PORT.
func (b *Bridge) ReadInput(_ uint16) uint8 {
	return b.in.Input()
}

// WriteOutput handles writes to OUTPUT_PORT. Writing 0 does nothing.
func (b *Bridge) WriteOutput(_ uint16, val uint8) {
	b.out.Output(val)
}

// StartCycles handles reads of CYCLE_START_PORT.
func (b *Bridge) StartCycles(_ uint16) uint8 {
	b.window.Start = b.clock.Cycles()
	return 0x00
}

// EndCycles handles reads of CYCLE_END_PORT.
func (b *Bridge) EndCycles(_ uint16) uint8 {
	b.window.End = b.clock.Cycles()
	return 0x00
}

// ReadCycles handles the 4 CYCLE_DIFF ports. The runtime reads the count as
// a double (2 little endian words, high word first) so 0x12345678 comes back
// as 34 12 78 56.
func (b *Bridge) ReadCycles(addr uint16) uint8 {
	d := b.window.Diff()
	switch addr {
	case CYCLE_DIFF_PORT:
		return uint8(d >> 16)
	case CYCLE_DIFF_PORT + 1:
		return uint8(d >> 24)
	case CYCLE_DIFF_PORT + 2:
		return uint8(d)
	case CYCLE_DIFF_PORT + 3:
		return uint8(d >> 8)
	}
	return 0x00
}

// Window returns the current cycle window.
func (b *Bridge) Window() CycleWindow {
	return b.window
}

// Stream returns the input stream.
func (b *Bridge) Stream() *Stream {
	return b.in
}

// Err returns the first error seen writing output. Ports have no way to
// report failure back to the CPU so it's latched here instead.
func (b *Bridge) Err() error {
	return b.out.err
}

var (
	_ io.Port8 = (*Stream)(nil)
	_ io.Sink8 = (*output)(nil)
)

// output implements io.Sink8 over the transcript and console writers.
type output struct {
	transcript goio.Writer
	console    goio.Writer
	suppress   bool
	boundary   int
	cursor     func() int
	err        error
	buf        [1]byte
}

func (o *output) Output(val uint8) {
	if val == 0x00 {
		return
	}
	if o.suppress && o.cursor() < o.boundary {
		return
	}
	o.buf[0] = val
	if _, err := o.transcript.Write(o.buf[:]); err != nil && o.err == nil {
		o.err = err
	}
	if o.console != nil {
		if _, err := o.console.Write(o.buf[:]); err != nil && o.err == nil {
			o.err = err
		}
	}
}
