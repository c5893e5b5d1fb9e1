// Package harness ties the pieces of a conformance run together: it picks
// the tests, builds their input, runs the runtime image on the emulated
// machine with the console ports attached and then checks the transcript.
package harness

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/jmchacon/cthulhutest/bridge"
	"github.com/jmchacon/cthulhutest/corpus"
	"github.com/jmchacon/cthulhutest/diff"
	"github.com/jmchacon/cthulhutest/machine"
)

// Config is everything a run needs. Field tags match the flag and config
// file names.
type Config struct {
	Tests     []string `mapstructure:"tests"`     // Tests to run, "all" for every available one.
	Available []string `mapstructure:"available"` // Tests which may be requested.
	Dir       string   `mapstructure:"dir"`       // Directory holding the test sources.
	Extension string   `mapstructure:"extension"`
	Startup   []string `mapstructure:"startup"` // Sources fed before any test.
	Mode      string   `mapstructure:"mode"`    // "table" or "verbatim".
	Comment   string   `mapstructure:"comment"`
	Section   string   `mapstructure:"section"`
	Separator string   `mapstructure:"separator"`
	Quit      string   `mapstructure:"quit"`

	Image  string `mapstructure:"image"`  // Runtime image loaded at machine.LOAD_ADDRESS.
	Output string `mapstructure:"output"` // Transcript file.
	Trace  int    `mapstructure:"trace"`  // Instructions kept for the verbose crash trace.

	Mute     bool `mapstructure:"mute"`
	Suppress bool `mapstructure:"suppress_tester"`
	Beep     bool `mapstructure:"beep"`
	Verbose  bool `mapstructure:"verbose"`

	Prompt       string   `mapstructure:"prompt"`
	Banner       string   `mapstructure:"banner"`
	PanicMarker  string   `mapstructure:"panic_marker"`
	ErrorMarkers []string `mapstructure:"error_markers"`
	Ignore       []string `mapstructure:"ignore"` // Output line prefixes left out of comparisons.
	RuntimeName  string   `mapstructure:"runtime_name"`

	// Logger gets notices and verbose output. nil means the standard logger.
	Logger *log.Logger `mapstructure:"-"`
}

// DefaultConfig returns the settings for running the main test file against
// an image built alongside this tree.
func DefaultConfig() *Config {
	return &Config{
		Tests:        []string{"all"},
		Available:    []string{"main"},
		Dir:          ".",
		Extension:    corpus.DefaultExtension,
		Mode:         corpus.MODE_TABLE.String(),
		Comment:      corpus.DefaultComment,
		Section:      corpus.DefaultSection,
		Separator:    corpus.DefaultSeparator,
		Quit:         corpus.DefaultQuit,
		Image:        "../cthulhu-py65mon.bin",
		Output:       "results.txt",
		Trace:        16,
		Prompt:       diff.DefaultPrompt,
		Banner:       "Cthulhu Scheme",
		PanicMarker:  diff.DefaultPanicMarker,
		ErrorMarkers: append([]string(nil), diff.DefaultErrorMarkers...),
		Ignore:       append([]string(nil), diff.DefaultIgnore...),
		RuntimeName:  "Cthulhu Scheme",
	}
}

// Run executes one complete conformance run and prints its summary to
// stdout. Console output from the runtime also goes to stdout unless muted.
// The returned error covers configuration and I/O problems only: failing
// tests are reported in the returned Report.
func Run(cfg *Config, stdout io.Writer) (*diff.Report, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be non-nil")
	}
	if stdout == nil {
		return nil, fmt.Errorf("stdout must be non-nil")
	}
	l := cfg.Logger
	if l == nil {
		l = log.Default()
	}
	mode, err := corpus.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	names, err := corpus.Select(cfg.Tests, cfg.Available)
	if err != nil {
		return nil, err
	}
	suite, err := corpus.Load(os.DirFS(cfg.Dir), names, &corpus.Options{
		Mode:      mode,
		Extension: cfg.Extension,
		Comment:   cfg.Comment,
		Section:   cfg.Section,
		Separator: cfg.Separator,
		Quit:      cfg.Quit,
		Startup:   cfg.Startup,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Verbose {
		for _, d := range suite.Duplicates {
			l.Printf("duplicate test input %q: only the last expectation is checked", d)
		}
		l.Printf("loaded %d tests (%d bytes of input) from %v", suite.Tests, len(suite.Input), suite.Names)
	}
	image, err := os.ReadFile(cfg.Image)
	if err != nil {
		return nil, errors.Wrapf(err, "can't read image")
	}

	m, err := machine.Init(&machine.Def{Trace: cfg.Trace})
	if err != nil {
		return nil, err
	}
	if err := m.Load(image, machine.LOAD_ADDRESS); err != nil {
		return nil, err
	}

	f, err := os.Create(cfg.Output)
	if err != nil {
		return nil, errors.Wrapf(err, "can't create transcript")
	}
	res, stream, err := emulate(m, suite, f, stdout, cfg)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.Wrapf(cerr, "can't close transcript")
	}
	if err != nil {
		return nil, err
	}
	crashed := machine.Crashed(stream.Cursor(), stream.Len())
	if cfg.Verbose {
		l.Printf("halted at PC 0x%.4X after %d instructions (%d cycles), read %d of %d input bytes", res.PC, res.Steps, res.Cycles, stream.Cursor(), stream.Len())
		if crashed {
			for _, t := range m.Trace() {
				l.Print(t)
			}
		}
	}

	transcript, err := os.ReadFile(cfg.Output)
	if err != nil {
		return nil, errors.Wrapf(err, "can't read transcript")
	}
	seg := diff.Segmenter{
		Prompt: cfg.Prompt,
		Banner: cfg.Banner,
		Ignore: cfg.Ignore,
	}
	// The banner is printed before the first keystroke is read so it never
	// makes it past suppression.
	if cfg.Suppress {
		seg.Banner = ""
	}
	report, err := diff.Check(transcript, &diff.Options{
		PanicMarker:  cfg.PanicMarker,
		ErrorMarkers: cfg.ErrorMarkers,
		Segmenter:    seg,
		Table:        suite.Table,
	})
	if err != nil {
		return nil, err
	}
	err = report.Write(stdout, &diff.Summary{
		Tests:   suite.Names,
		Runtime: cfg.RuntimeName,
		Crashed: crashed,
		Width:   width(stdout),
		Verbose: cfg.Verbose,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "can't write summary")
	}
	if cfg.Beep {
		if _, err := io.WriteString(stdout, "\a"); err != nil {
			return nil, errors.Wrapf(err, "can't beep")
		}
	}
	return report, nil
}

// emulate runs the image with the suite's input until it halts, recording
// output to transcript. The transcript is flushed but not closed.
func emulate(m *machine.Machine, suite *corpus.Suite, transcript io.Writer, console io.Writer, cfg *Config) (machine.Result, *bridge.Stream, error) {
	w := bufio.NewWriter(transcript)
	stream := bridge.NewStream(suite.Input)
	b, err := bridge.Init(stream, m, &bridge.Def{
		Transcript: w,
		Console:    console,
		Mute:       cfg.Mute,
		Suppress:   cfg.Suppress,
		Boundary:   suite.Boundary,
	})
	if err != nil {
		return machine.Result{}, nil, err
	}
	b.Install(m.Bus())
	res := m.Run(machine.RESET_PC)
	if err := b.Err(); err != nil {
		return res, nil, errors.Wrapf(err, "can't write output")
	}
	if err := w.Flush(); err != nil {
		return res, nil, errors.Wrapf(err, "can't flush transcript")
	}
	return res, stream, nil
}

// width returns the rule width for the summary: the terminal width capped at
// 80 when stdout is a terminal and 80 otherwise.
func width(w io.Writer) int {
	const limit = 80
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return limit
	}
	c, _, err := term.GetSize(int(f.Fd()))
	if err != nil || c <= 0 || c > limit {
		return limit
	}
	return c
}
