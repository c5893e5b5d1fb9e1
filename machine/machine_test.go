package machine

import (
	"bytes"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-test/deep"

	"github.com/jmchacon/cthulhutest/bridge"
)

// image returns a 32k image for LOAD_ADDRESS with code at the start and the
// BRK/IRQ vector pointing at it.
func image(code []byte) []byte {
	img := make([]byte, 0x8000)
	copy(img, code)
	img[0x7FFE] = uint8(LOAD_ADDRESS & 0xFF)
	img[0x7FFF] = uint8(LOAD_ADDRESS >> 8)
	return img
}

// echo copies input to output until the input port returns 0.
var echo = []byte{
	0xAD, 0x04, 0xF0, // 8000 LDA $F004
	0xF0, 0x05,       // 8003 BEQ $800A
	0x8D, 0x01, 0xF0, // 8005 STA $F001
	0x80, 0xF6,       // 8008 BRA $8000
	0x00,             // 800A BRK
}

// timing measures 3 NOPs (plus the LDA reading the end port) and stores
// the 4 readback bytes at 0x0300-0x0303.
var timing = []byte{
	0xAD, 0x06, 0xF0, // 8000 LDA $F006
	0xEA,             // 8003 NOP
	0xEA,             // 8004 NOP
	0xEA,             // 8005 NOP
	0xAD, 0x07, 0xF0, // 8006 LDA $F007
	0xAD, 0x08, 0xF0, // 8009 LDA $F008
	0x8D, 0x00, 0x03, // 800C STA $0300
	0xAD, 0x09, 0xF0, // 800F LDA $F009
	0x8D, 0x01, 0x03, // 8012 STA $0301
	0xAD, 0x0A, 0xF0, // 8015 LDA $F00A
	0x8D, 0x02, 0x03, // 8018 STA $0302
	0xAD, 0x0B, 0xF0, // 801B LDA $F00B
	0x8D, 0x03, 0x03, // 801E STA $0303
	0x00,             // 8021 BRK
}

func setup(t *testing.T, code []byte, input string, trace int) (*Machine, *bridge.Bridge, *bytes.Buffer) {
	t.Helper()
	m, err := Init(&Def{Trace: trace})
	if err != nil {
		t.Fatalf("Can't init machine: %v", err)
	}
	if err := m.Load(image(code), LOAD_ADDRESS); err != nil {
		t.Fatalf("Can't load image: %v", err)
	}
	var out bytes.Buffer
	b, err := bridge.Init(bridge.NewStream([]byte(input)), m, &bridge.Def{Transcript: &out})
	if err != nil {
		t.Fatalf("Can't init bridge: %v", err)
	}
	b.Install(m.Bus())
	return m, b, &out
}

func TestInit(t *testing.T) {
	if _, err := Init(nil); err == nil {
		t.Error("Didn't get error for nil def")
	}
	if _, err := Init(&Def{Trace: -1}); err == nil {
		t.Error("Didn't get error for negative trace")
	}
}

func TestLoad(t *testing.T) {
	m, err := Init(&Def{})
	if err != nil {
		t.Fatalf("Can't init machine: %v", err)
	}
	if err := m.Load(make([]byte, 0x8001), LOAD_ADDRESS); err == nil {
		t.Error("Didn't get error loading an oversized image")
	}
	if err := m.Load([]byte{0xEA, 0x00}, LOAD_ADDRESS); err != nil {
		t.Fatalf("Can't load: %v", err)
	}
	if got, want := m.Bus().Peek(LOAD_ADDRESS), uint8(0xEA); got != want {
		t.Errorf("Image not in RAM. Got 0x%.2X and want 0x%.2X", got, want)
	}
}

func TestEcho(t *testing.T) {
	const input = "(+ 1 2)\n#t\n"
	m, b, out := setup(t, echo, input, 0)
	r := m.Run(RESET_PC)
	if got, want := out.String(), input; got != want {
		t.Errorf("Bad transcript. Got %q and want %q", got, want)
	}
	if got, want := r.PC, uint16(0x800A); got != want {
		t.Errorf("Halted at wrong PC. Got 0x%.4X and want 0x%.4X\n%s", got, want, spew.Sdump(r))
	}
	// BRK to get going plus 4 instructions per character and the final LDA/BEQ.
	if got, want := r.Steps, uint64(1+4*len(input)+2); got != want {
		t.Errorf("Bad step count. Got %d and want %d", got, want)
	}
	if r.Cycles == 0 || r.Cycles != m.Cycles() {
		t.Errorf("Bad cycle count %d (machine says %d)", r.Cycles, m.Cycles())
	}
	// Echo reads until it sees 0 so the cursor ends one past the input.
	s := b.Stream()
	if got, want := s.Cursor(), s.Len(); got != want {
		t.Errorf("Bad final cursor. Got %d and want %d", got, want)
	}
	if Crashed(s.Cursor(), s.Len()) {
		t.Error("Complete run classed as a crash")
	}
	if m.Trace() != nil {
		t.Error("Got a trace with tracing off")
	}
}

func TestTiming(t *testing.T) {
	m, _, out := setup(t, timing, "", 0)
	m.Run(RESET_PC)
	got := make([]byte, 4)
	m.ram.LoadBytes(0x0300, got)
	// LDA abs (4) + 3 * NOP (2) between the two snapshots.
	if diff := deep.Equal(got, []byte{0x00, 0x00, 0x0A, 0x00}); diff != nil {
		t.Errorf("Bad cycle readback: %v", diff)
	}
	if out.Len() != 0 {
		t.Errorf("Timing wrote output: %q", out.String())
	}
}

func TestTrace(t *testing.T) {
	m, _, _ := setup(t, echo, "ab", 3)
	m.Run(RESET_PC)
	tr := m.Trace()
	if got, want := len(tr), 3; got != want {
		t.Fatalf("Bad trace length. Got %d and want %d\n%s", got, want, strings.Join(tr, "\n"))
	}
	// Last 3 instructions: BRA back, the LDA that got 0 and the BEQ out.
	for i, pc := range []string{"8008", "8000", "8003"} {
		if !strings.HasPrefix(tr[i], pc) {
			t.Errorf("Trace line %d doesn't start at %s: %q", i, pc, tr[i])
		}
	}

	// A short trace buffer that never fills.
	m, _, _ = setup(t, echo, "", 10)
	m.Run(RESET_PC)
	if got, want := len(m.Trace()), 3; got != want {
		t.Errorf("Bad partial trace length. Got %d and want %d\n%s", got, want, strings.Join(m.Trace(), "\n"))
	}
}

func TestCrashed(t *testing.T) {
	tests := []struct {
		name   string
		cursor int
		length int
		want   bool
	}{
		{name: "read past end", cursor: 10, length: 10, want: false},
		{name: "read final byte", cursor: 9, length: 10, want: false},
		{name: "one short of final byte", cursor: 8, length: 10, want: false},
		{name: "two short", cursor: 7, length: 10, want: true},
		{name: "never read", cursor: -1, length: 10, want: true},
		{name: "empty input", cursor: -1, length: 0, want: false},
	}
	for _, test := range tests {
		if got := Crashed(test.cursor, test.length); got != test.want {
			t.Errorf("%s: Crashed(%d, %d) = %t want %t", test.name, test.cursor, test.length, got, test.want)
		}
	}
}
