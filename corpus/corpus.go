// Package corpus builds the keystroke stream and expectation table a test
// run is checked against.
//
// In Table mode each test source holds one test per line of the form
//
//	<sent literal> -> <want literal>
//
// and the sent halves (plus a newline each) become the input stream while the
// table maps sent to want. In Verbatim mode whole sources are fed to the
// runtime unchanged and there is no table.
//
// NOTE: if two lines send identical text only the last expectation is kept
// (and checked). Suite.Duplicates lists the inputs where that happened.
//
// A sent literal must be a single non-empty line: the runtime reads one line
// per test and an empty line is the quit sequence.
package corpus

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"strings"

	"github.com/pkg/errors"
)

// Mode selects how test sources are interpreted.
type Mode int

const (
	MODE_UNIMPLEMENTED Mode = iota // Start of valid mode enumerations.
	MODE_TABLE                     // One sent -> want pair per line, checked against the transcript.
	MODE_VERBATIM                  // Whole files fed as input, no per test checking.
	MODE_MAX                       // End of mode enumerations.
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case MODE_TABLE:
		return "table"
	case MODE_VERBATIM:
		return "verbatim"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode returns the Mode named s ("table" or "verbatim").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "table":
		return MODE_TABLE, nil
	case "verbatim":
		return MODE_VERBATIM, nil
	}
	return MODE_UNIMPLEMENTED, fmt.Errorf("unknown mode %q (want table or verbatim)", s)
}

const (
	DefaultExtension = ".scm"
	DefaultComment   = ";"
	DefaultSection   = "##"
	DefaultSeparator = " -> "
	DefaultQuit      = "\n"
)

// Options controls how sources are read. Zero values pick the defaults above
// except Mode which must be set.
type Options struct {
	Mode      Mode
	Extension string
	Comment   string
	Section   string
	Separator string
	Quit      string
	// Startup names sources fed verbatim ahead of every test (and ahead of
	// any output being recorded when suppressing).
	Startup []string
}

func (o *Options) withDefaults() Options {
	r := *o
	if r.Extension == "" {
		r.Extension = DefaultExtension
	}
	if r.Comment == "" {
		r.Comment = DefaultComment
	}
	if r.Section == "" {
		r.Section = DefaultSection
	}
	if r.Separator == "" {
		r.Separator = DefaultSeparator
	}
	if r.Quit == "" {
		r.Quit = DefaultQuit
	}
	return r
}

// Table maps each literal input to its expected literal output.
type Table map[string]string

// Suite is everything built from the selected sources.
type Suite struct {
	// Names are the tests loaded in order.
	Names []string
	// Input is the full keystroke stream including the startup preamble and quit sequence.
	Input []byte
	// Table is nil in Verbatim mode.
	Table Table
	// Boundary is the index in Input of the first byte after the startup preamble.
	Boundary int
	// Tests counts the test lines read (Table mode only).
	Tests int
	// Duplicates lists inputs which appeared more than once, in order of the repeat.
	Duplicates []string
}

// UnknownTest is returned when a requested test isn't one of the available ones.
type UnknownTest struct {
	Name string
}

// Error implements the interface for error types.
func (e UnknownTest) Error() string {
	return fmt.Sprintf("illegal test %q", e.Name)
}

// MalformedLine is returned for a test line that can't be split into two literals.
type MalformedLine struct {
	File   string
	Line   int
	Text   string
	Reason string
}

// Error implements the interface for error types.
func (e MalformedLine) Error() string {
	return fmt.Sprintf("%s:%d: %s: %q", e.File, e.Line, e.Reason, e.Text)
}

// Select expands requested against available. A request of just "all" (or
// nothing) selects every available test in order.
func Select(requested, available []string) ([]string, error) {
	if len(requested) == 0 || (len(requested) == 1 && requested[0] == "all") {
		return append([]string(nil), available...), nil
	}
	legal := make(map[string]bool)
	for _, a := range available {
		legal[a] = true
	}
	for _, r := range requested {
		if !legal[r] {
			return nil, UnknownTest{r}
		}
	}
	return append([]string(nil), requested...), nil
}

// Load reads the named tests (each name plus the extension) from fsys and
// builds the suite. Any missing file or bad line aborts the whole load.
func Load(fsys fs.FS, names []string, opts *Options) (*Suite, error) {
	if opts == nil {
		return nil, fmt.Errorf("options must be non-nil")
	}
	o := opts.withDefaults()
	if o.Mode <= MODE_UNIMPLEMENTED || o.Mode >= MODE_MAX {
		return nil, fmt.Errorf("mode %v is invalid", o.Mode)
	}

	s := &Suite{
		Names: append([]string(nil), names...),
	}
	var in bytes.Buffer
	for _, fn := range o.Startup {
		b, err := fs.ReadFile(fsys, fn)
		if err != nil {
			return nil, errors.Wrapf(err, "can't read startup source %s", fn)
		}
		in.Write(b)
	}
	s.Boundary = in.Len()

	if o.Mode == MODE_TABLE {
		s.Table = make(Table)
	}
	e := NewEvaluator()
	defer e.Close()

	for _, n := range names {
		fn := n + o.Extension
		b, err := fs.ReadFile(fsys, fn)
		if err != nil {
			return nil, errors.Wrapf(err, "can't read test %s", n)
		}
		if o.Mode == MODE_VERBATIM {
			in.Write(b)
			continue
		}
		if err := s.parse(e, &o, fn, b, &in); err != nil {
			return nil, err
		}
	}
	in.WriteString(o.Quit)
	s.Input = in.Bytes()
	return s, nil
}

func (s *Suite) parse(e *Evaluator, o *Options, fn string, b []byte, in *bytes.Buffer) error {
	scanner := bufio.NewScanner(bytes.NewReader(b))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	l := 0
	for scanner.Scan() {
		l++
		line := strings.TrimRight(scanner.Text(), "\r")
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, o.Comment) || strings.HasPrefix(t, o.Section) {
			continue
		}
		sent, want, err := split(e, t, o.Separator)
		if err != nil {
			return MalformedLine{File: fn, Line: l, Text: line, Reason: err.Error()}
		}
		switch {
		case sent == "":
			return MalformedLine{File: fn, Line: l, Text: line, Reason: "sent literal is empty"}
		case strings.ContainsAny(sent, "\r\n"):
			return MalformedLine{File: fn, Line: l, Text: line, Reason: "sent literal contains a newline"}
		}
		if _, ok := s.Table[sent]; ok {
			s.Duplicates = append(s.Duplicates, sent)
		}
		s.Table[sent] = want
		s.Tests++
		in.WriteString(sent)
		in.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "can't scan %s", fn)
	}
	return nil
}

// split tries each occurrence of sep in turn and takes the first one where
// both sides are literals. That way a separator inside a string literal
// doesn't break the line.
func split(e *Evaluator, line, sep string) (string, string, error) {
	if !strings.Contains(line, sep) {
		return "", "", fmt.Errorf("missing separator %q", sep)
	}
	var first error
	for off := 0; ; {
		i := strings.Index(line[off:], sep)
		if i < 0 {
			break
		}
		i += off
		off = i + len(sep)
		sent, err := e.Eval(line[:i])
		if err == nil {
			var want string
			want, err = e.Eval(line[i+len(sep):])
			if err == nil {
				return sent, want, nil
			}
		}
		if first == nil {
			first = err
		}
	}
	return "", "", first
}
