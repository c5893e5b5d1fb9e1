package bridge

// Stream is the flat keystroke input handed to the runtime one byte per read
// of INPUT_PORT. The data never changes once built. The cursor starts before
// the first byte and only ever moves forward.
type Stream struct {
	data []byte
	idx  int
}

// NewStream returns a Stream positioned before the first byte of data.
func NewStream(data []byte) *Stream {
	return &Stream{
		data: data,
		idx:  -1,
	}
}

// Input implements io.Port8. The cursor is advanced first and the byte now
// under it returned, or 0 once it's past the end.
func (s *Stream) Input() uint8 {
	// Stop counting once we're one past the end so a runtime spinning on an
	// empty port can't overflow the cursor.
	if s.idx < len(s.data) {
		s.idx++
	}
	if s.idx < len(s.data) {
		return s.data[s.idx]
	}
	return 0x00
}

// Cursor returns the index of the most recently consumed byte (-1 before any read).
func (s *Stream) Cursor() int {
	return s.idx
}

// Len returns the total number of bytes in the stream.
func (s *Stream) Len() int {
	return len(s.data)
}
