package stream

import (
	"bufio"
	"bytes"
	"io"
)

// NewFrameScanner wraps a streamed response body in a scanner that yields
// one frame per newline, however the transport chunked the bytes. Frames
// exclude the newline; a trailing CR is stripped. Bytes after the last
// newline are dropped when the stream ends: an unterminated tail is a
// partial write and cannot be trusted as a frame.
func NewFrameScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	scanner.Split(scanFrames)
	return scanner
}

func scanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, dropCR(data[:i]), nil
	}
	if atEOF {
		// Discard the unterminated tail.
		return len(data), nil, nil
	}
	return 0, nil, nil
}

func dropCR(data []byte) []byte {
	if len(data) > 0 && data[len(data)-1] == '\r' {
		return data[:len(data)-1]
	}
	return data
}
