package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-test/deep"

	"github.com/jmchacon/cthulhutest/bridge"
	"github.com/jmchacon/cthulhutest/machine"
)

const hello = `Prints hi and stops.

8000 A9 68     LDA #'h'
8002 8D 01 F0  STA $F001
8005 A9 69     LDA #'i'
8007 8D 01 F0  STA $F001
800A 00        BRK
`

func TestAssemble(t *testing.T) {
	img, err := assemble(strings.NewReader(hello), machine.LOAD_ADDRESS, -1)
	if err != nil {
		t.Fatalf("Can't assemble: %v", err)
	}
	if got, want := len(img), 0x8000; got != want {
		t.Fatalf("Bad image size. Got 0x%.4X and want 0x%.4X", got, want)
	}
	if diff := deep.Equal(img[:0x0B], []byte{0xA9, 0x68, 0x8D, 0x01, 0xF0, 0xA9, 0x69, 0x8D, 0x01, 0xF0, 0x00}); diff != nil {
		t.Errorf("Bad code: %v", diff)
	}
	if got, want := img[0x7FFE:], []byte{0x00, 0x80}; !bytes.Equal(got, want) {
		t.Errorf("Bad BRK vector. Got % X and want % X", got, want)
	}

	// And it should run.
	m, err := machine.Init(&machine.Def{})
	if err != nil {
		t.Fatalf("Can't init machine: %v", err)
	}
	if err := m.Load(img, machine.LOAD_ADDRESS); err != nil {
		t.Fatalf("Can't load: %v", err)
	}
	var out bytes.Buffer
	b, err := bridge.Init(bridge.NewStream(nil), m, &bridge.Def{Transcript: &out})
	if err != nil {
		t.Fatalf("Can't init bridge: %v", err)
	}
	b.Install(m.Bus())
	m.Run(machine.RESET_PC)
	if got, want := out.String(), "hi"; got != want {
		t.Errorf("Bad output. Got %q and want %q", got, want)
	}
}

func TestAssembleStart(t *testing.T) {
	img, err := assemble(strings.NewReader("C000 EA\nC001 00\n"), 0xC000, 0xC001)
	if err != nil {
		t.Fatalf("Can't assemble: %v", err)
	}
	if got, want := len(img), 0x4000; got != want {
		t.Errorf("Bad image size. Got 0x%.4X and want 0x%.4X", got, want)
	}
	if got, want := img[len(img)-2:], []byte{0x01, 0xC0}; !bytes.Equal(got, want) {
		t.Errorf("Bad BRK vector. Got % X and want % X", got, want)
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name    string
		listing string
	}{
		{name: "Empty", listing: "nothing here\n"},
		{name: "Below offset", listing: "7FFF EA\n"},
		{name: "No bytes", listing: "8000 LDA #$00\n"},
		{name: "Too many bytes", listing: "8000 EA EA EA EA\n"},
		{name: "Off the top", listing: "FFFF AD 04 F0\n"},
	}
	for _, test := range tests {
		if _, err := assemble(strings.NewReader(test.listing), machine.LOAD_ADDRESS, -1); err == nil {
			t.Errorf("%s: didn't get error", test.name)
		}
	}
}

func TestCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "hello.lst")
	out := filepath.Join(dir, "hello.bin")
	if err := os.WriteFile(in, []byte(hello), 0644); err != nil {
		t.Fatalf("Can't write listing: %v", err)
	}
	cmd := command()
	cmd.SetArgs([]string{in, out})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Can't run: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Can't read image: %v", err)
	}
	if got, want := len(b), 0x8000; got != want {
		t.Errorf("Bad image size. Got 0x%.4X and want 0x%.4X", got, want)
	}
	cmd = command()
	cmd.SetArgs([]string{filepath.Join(dir, "missing.lst"), out})
	if err := cmd.Execute(); err == nil {
		t.Error("Didn't get error for missing listing")
	}
}
