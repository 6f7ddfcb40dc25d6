package plaintext

import "strings"

// Newline terminates every line the converter emits, regardless of platform.
const Newline = "\r\n"

// Sink receives converted text. The converter only appends to it.
type Sink interface {
	// WriteText appends inline text to the current line.
	WriteText(s string)
	// WriteLine terminates the current line.
	WriteLine()
	// Space requests a word separator before the next inline text. It is
	// discarded at the start of a line, after a line break, and at the end
	// of output.
	Space()
}

// Buffer is an in-memory Sink. The zero value is ready to use.
type Buffer struct {
	b           strings.Builder
	lineStarted bool
	endsInSpace bool
	pending     bool
}

func (w *Buffer) WriteText(s string) {
	if s == "" {
		return
	}
	if w.pending && w.lineStarted && !w.endsInSpace {
		w.b.WriteByte(' ')
	}
	w.pending = false
	w.b.WriteString(s)
	w.lineStarted = true
	w.endsInSpace = s[len(s)-1] == ' '
}

func (w *Buffer) WriteLine() {
	w.b.WriteString(Newline)
	w.pending = false
	w.lineStarted = false
	w.endsInSpace = false
}

func (w *Buffer) Space() { w.pending = true }

// String returns everything written so far.
func (w *Buffer) String() string { return w.b.String() }

// Len returns the number of bytes written so far.
func (w *Buffer) Len() int { return w.b.Len() }
