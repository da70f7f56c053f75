package stream

// DefaultCapacity is the number of lines kept when none is configured.
const DefaultCapacity = 20

// Buffer is a fixed-capacity ring of lines. Not safe for concurrent use.
type Buffer struct {
	lines []string
	head  int // index of the next write
	size  int
}

// NewBuffer creates a buffer holding at most capacity lines.
// A capacity below 1 uses DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Buffer{lines: make([]string, capacity)}
}

// Push adds a line, evicting the oldest one when full.
func (b *Buffer) Push(line string) {
	b.lines[b.head] = line
	b.head = (b.head + 1) % len(b.lines)
	if b.size < len(b.lines) {
		b.size++
	}
}

// Lines returns a copy of the buffered lines, newest first.
func (b *Buffer) Lines() []string {
	out := make([]string, b.size)
	for i := range b.size {
		idx := (b.head - 1 - i + len(b.lines)) % len(b.lines)
		out[i] = b.lines[idx]
	}
	return out
}

// Len returns the number of buffered lines.
func (b *Buffer) Len() int { return b.size }

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return len(b.lines) }
