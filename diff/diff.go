// Package diff turns a run's transcript into a verdict.
//
// Three independent checks are made. Any line containing the panic marker
// is a panic and any line containing one of the error markers is a
// taxonomy error; both are reported whatever else happens. When an
// expectation table is available the transcript is also split on the
// prompt (see Segmenter) and each test's output compared with what the
// table says it should be.
package diff

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jmchacon/cthulhutest/corpus"
)

const (
	DefaultPanicMarker = "PANIC:"
	DefaultPrompt      = "> "
)

// DefaultErrorMarkers are the runtime's error messages for bad input plus the
// monitor's complaint when the runtime has dropped back into it.
var DefaultErrorMarkers = []string{"Unbound variable:", "Ill-formed number:", "*** Unknown syntax:"}

// DefaultIgnore are the prefixes of the lines the runtime prints when built
// with debugging on.
var DefaultIgnore = []string{"Input Buffer:", "Token Buffer:", "AST: ", "Heap pointer:"}

// Options controls what Check looks for.
type Options struct {
	PanicMarker  string
	ErrorMarkers []string
	Segmenter    Segmenter
	// Table is the expectation table. When nil no per test comparison is done.
	Table corpus.Table
}

// Mismatch is one test whose output differed from its expectation.
type Mismatch struct {
	Sent string
	Want string
	Got  string
	Line int
	// Unknown is set when Sent isn't in the table at all (Want is empty).
	Unknown bool
}

// Report is the result of checking one transcript.
type Report struct {
	Panics     []string
	Errors     []string
	Mismatches []Mismatch
	// Checked counts the tests compared against the table.
	Checked int
	// Expected is the number of entries in the table.
	Expected int
	// Matched lists the tests that matched, in transcript order.
	Matched []string
}

// Passed reports whether there were no panics, no errors and no mismatches.
func (r *Report) Passed() bool {
	return len(r.Panics) == 0 && len(r.Errors) == 0 && len(r.Mismatches) == 0
}

// Check scans transcript and returns the report.
func Check(transcript []byte, opts *Options) (*Report, error) {
	if opts == nil {
		return nil, errors.New("options must be non-nil")
	}
	if opts.PanicMarker == "" {
		return nil, errors.New("PanicMarker must be set")
	}
	r := &Report{
		Expected: len(opts.Table),
	}

	err := eachLine(transcript, func(_ int, line string) {
		if strings.Contains(line, opts.PanicMarker) {
			r.Panics = append(r.Panics, line)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("can't scan transcript for panics: %v", err)
	}
	err = eachLine(transcript, func(_ int, line string) {
		for _, m := range opts.ErrorMarkers {
			if m != "" && strings.Contains(line, m) {
				r.Errors = append(r.Errors, line)
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("can't scan transcript for errors: %v", err)
	}

	if opts.Table == nil {
		return r, nil
	}
	if opts.Segmenter.Prompt == "" {
		return nil, errors.New("a prompt is required to check against a table")
	}
	segs, err := opts.Segmenter.Segments(transcript)
	if err != nil {
		return nil, fmt.Errorf("can't segment transcript: %v", err)
	}
	for i := range segs {
		s := &segs[i]
		// An empty echo is the quit sequence (or a stray newline), not a test.
		if s.Sent == "" {
			continue
		}
		r.Checked++
		got := s.Output()
		want, ok := opts.Table[s.Sent]
		if !ok {
			r.Mismatches = append(r.Mismatches, Mismatch{Sent: s.Sent, Got: got, Line: s.Line, Unknown: true})
			continue
		}
		if got != want {
			r.Mismatches = append(r.Mismatches, Mismatch{Sent: s.Sent, Want: want, Got: got, Line: s.Line})
			continue
		}
		r.Matched = append(r.Matched, s.Sent)
	}
	return r, nil
}

// Summary carries the run level details printed around a Report.
type Summary struct {
	Tests   []string // Names of the tests run.
	Runtime string   // Name of the runtime for the completion line.
	Crashed bool     // Whether the runtime stopped before reading all input.
	Width   int      // Width of the separator rule.
	Verbose bool     // Print every matched test and the counts.
}

// Write prints the human readable summary for the report.
func (r *Report) Write(w io.Writer, s *Summary) error {
	var b strings.Builder
	width := s.Width
	if width <= 0 {
		width = 80
	}
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", width) + "\n")
	fmt.Fprintf(&b, "Summary for: %s\n", strings.Join(s.Tests, " "))
	if s.Crashed {
		fmt.Fprintf(&b, "%s crashed before all tests completed\n\n", s.Runtime)
	} else {
		fmt.Fprintf(&b, "%s ran all tests requested\n", s.Runtime)
	}
	for _, p := range r.Panics {
		b.WriteString(strings.TrimSpace(p) + "\n")
	}
	for _, e := range r.Errors {
		b.WriteString(strings.TrimSpace(e) + "\n")
	}
	for _, m := range r.Mismatches {
		if m.Unknown {
			fmt.Fprintf(&b, "Unexpected input (line %d): %q\n   got: %q\n", m.Line, m.Sent, m.Got)
			continue
		}
		fmt.Fprintf(&b, "Failed test (line %d): %q\n  want: %q\n   got: %q\n", m.Line, m.Sent, m.Want, m.Got)
	}
	if s.Verbose {
		for _, sent := range r.Matched {
			fmt.Fprintf(&b, "ok: %q\n", sent)
		}
	}
	// Tests that never showed up in the transcript can't fail so always say
	// when some weren't checked.
	if s.Verbose || r.Checked < r.Expected {
		fmt.Fprintf(&b, "Checked %d of %d tests\n", r.Checked, r.Expected)
	}
	if r.Passed() {
		b.WriteString("All available tests passed\n")
	} else {
		fmt.Fprintf(&b, "Panics: %d, errors: %d, mismatches: %d\n", len(r.Panics), len(r.Errors), len(r.Mismatches))
	}
	_, err := io.WriteString(w, b.String())
	return err
}
