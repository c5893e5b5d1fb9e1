package diff

import (
	"bufio"
	"bytes"
	"strings"
)

// Segment is one prompt's worth of transcript: the text echoed after the
// prompt and every output line up to the next prompt.
type Segment struct {
	Sent string
	Got  []string
	Line int // Transcript line number of the prompt, starting at 1.
}

// Output returns the segment's output lines joined with newlines.
func (s *Segment) Output() string {
	return strings.Join(s.Got, "\n")
}

// Segmenter splits a transcript into Segments using the runtime's prompt.
//
// The framing is purely textual: any output line that happens to start with
// the prompt is taken as a new prompt. Everything to do with recovering what
// was sent and received from the raw transcript lives here so a structured
// protocol can replace it without touching the rest of the checks.
type Segmenter struct {
	// Prompt starts every line that echoes input.
	Prompt string
	// Banner, when set, must appear in a line before any segmenting starts.
	// That line and everything before it (boot noise) is dropped.
	Banner string
	// Ignore lists prefixes of output lines to leave out of Got, such as the
	// runtime's debug dumps.
	Ignore []string
}

// Segments returns the transcript's segments in order. Lines before the
// first prompt belong to no segment and are dropped.
func (s *Segmenter) Segments(transcript []byte) ([]Segment, error) {
	var out []Segment
	cur := -1
	started := s.Banner == ""
	err := eachLine(transcript, func(n int, line string) {
		if !started {
			started = strings.Contains(line, s.Banner)
			return
		}
		if strings.HasPrefix(line, s.Prompt) {
			out = append(out, Segment{
				Sent: strings.TrimPrefix(line, s.Prompt),
				Line: n,
			})
			cur = len(out) - 1
			return
		}
		if cur < 0 {
			return
		}
		for _, p := range s.Ignore {
			if p != "" && strings.HasPrefix(line, p) {
				return
			}
		}
		out[cur].Got = append(out[cur].Got, line)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// eachLine calls f with every line of b (numbered from 1) without its line
// terminator. A final line with no terminator is still passed.
func eachLine(b []byte, f func(n int, line string)) error {
	scanner := bufio.NewScanner(bytes.NewReader(b))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		f(n, scanner.Text())
	}
	return scanner.Err()
}
