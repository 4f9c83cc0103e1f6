package stream

import (
	"bufio"
	"io"
	"time"
)

// Decoder pulls typed events off a verification stream, skipping every
// frame ParseFrame rejects.
type Decoder struct {
	scanner *bufio.Scanner
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{scanner: NewFrameScanner(r)}
}

// Next returns the next well-formed event. It returns io.EOF when the
// stream ends cleanly and the underlying read error otherwise.
func (d *Decoder) Next() (AgentEvent, error) {
	for d.scanner.Scan() {
		event, ok := ParseFrame(d.scanner.Text())
		if !ok {
			continue
		}
		event.At = time.Now().UTC()
		return event, nil
	}
	if err := d.scanner.Err(); err != nil {
		return AgentEvent{}, err
	}
	return AgentEvent{}, io.EOF
}
