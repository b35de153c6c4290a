package tui

import "strings"

// DefaultTailSize is the number of output lines kept for the tail view.
const DefaultTailSize = 2000

// RingBuffer provides fixed-size line storage. When the buffer is full the
// oldest lines are discarded.
type RingBuffer struct {
	data  []string
	size  int
	head  int // next write position
	tail  int // oldest element
	count int
}

// NewRingBuffer creates a RingBuffer. A non-positive capacity selects
// DefaultTailSize.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultTailSize
	}
	return &RingBuffer{
		data: make([]string, capacity),
		size: capacity,
	}
}

// Append adds a line, overwriting the oldest one when full.
func (rb *RingBuffer) Append(line string) {
	rb.data[rb.head] = line
	rb.head = (rb.head + 1) % rb.size

	if rb.count < rb.size {
		rb.count++
	} else {
		rb.tail = (rb.tail + 1) % rb.size
	}
}

// Lines returns all lines from oldest to newest.
func (rb *RingBuffer) Lines() []string {
	return rb.Last(rb.count)
}

// Last returns up to n of the newest lines, oldest first.
func (rb *RingBuffer) Last(n int) []string {
	if n > rb.count {
		n = rb.count
	}
	if n <= 0 {
		return nil
	}
	out := make([]string, n)
	start := rb.count - n
	for i := 0; i < n; i++ {
		out[i] = rb.data[(rb.tail+start+i)%rb.size]
	}
	return out
}

// Count returns the number of lines currently stored.
func (rb *RingBuffer) Count() int {
	return rb.count
}

// Clear removes all lines.
func (rb *RingBuffer) Clear() {
	rb.head = 0
	rb.tail = 0
	rb.count = 0
}

// Capacity returns the maximum number of lines the buffer can hold.
func (rb *RingBuffer) Capacity() int {
	return rb.size
}

// lineWriter accumulates streamed text per task and moves complete lines
// into a shared RingBuffer. Partial lines stay pending until a newline
// arrives or Flush is called.
type lineWriter struct {
	buf     *RingBuffer
	partial map[string]*strings.Builder
}

func newLineWriter(buf *RingBuffer) *lineWriter {
	return &lineWriter{buf: buf, partial: make(map[string]*strings.Builder)}
}

// Write appends text streamed for taskID. Lines are prefixed with the task id.
func (w *lineWriter) Write(taskID, text string) {
	if text == "" {
		return
	}
	sb, ok := w.partial[taskID]
	if !ok {
		sb = &strings.Builder{}
		w.partial[taskID] = sb
	}
	sb.WriteString(text)
	buffered := sb.String()

	for {
		idx := strings.IndexByte(buffered, '\n')
		if idx == -1 {
			break
		}
		w.buf.Append(formatTailLine(taskID, buffered[:idx]))
		buffered = buffered[idx+1:]
	}

	sb.Reset()
	sb.WriteString(buffered)
}

// Flush moves any pending partial line for taskID into the buffer.
func (w *lineWriter) Flush(taskID string) {
	sb, ok := w.partial[taskID]
	if !ok {
		return
	}
	if sb.Len() > 0 {
		w.buf.Append(formatTailLine(taskID, sb.String()))
	}
	delete(w.partial, taskID)
}

func formatTailLine(taskID, line string) string {
	return "[" + taskID + "] " + strings.TrimRight(line, "\r")
}
