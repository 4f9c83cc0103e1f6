package stream

import (
	"io"
	"strings"
	"testing"
)

// chunkReader delivers the payload in fixed-size reads to mimic transport
// chunking.
type chunkReader struct {
	data []byte
	size int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.size
	if n > len(c.data) {
		n = len(c.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func collectFrames(t *testing.T, r io.Reader) []string {
	t.Helper()
	scanner := NewFrameScanner(r)
	var frames []string
	for scanner.Scan() {
		frames = append(frames, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return frames
}

func TestFrameScannerSplitsCompleteLines(t *testing.T) {
	t.Parallel()

	frames := collectFrames(t, strings.NewReader("data: a\n\ndata: b\n"))
	want := []string{"data: a", "", "data: b"}
	if len(frames) != len(want) {
		t.Fatalf("expected %d frames, got %v", len(want), frames)
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Fatalf("frame %d = %q, want %q", i, frames[i], want[i])
		}
	}
}

func TestFrameScannerDiscardsUnterminatedTail(t *testing.T) {
	t.Parallel()

	frames := collectFrames(t, strings.NewReader("data: a\ndata: cut off mid-wri"))
	if len(frames) != 1 || frames[0] != "data: a" {
		t.Fatalf("expected only the terminated frame, got %v", frames)
	}

	if frames := collectFrames(t, strings.NewReader("no newline at all")); frames != nil {
		t.Fatalf("expected no frames, got %v", frames)
	}
	if frames := collectFrames(t, strings.NewReader("")); frames != nil {
		t.Fatalf("expected no frames for empty input, got %v", frames)
	}
}

func TestFrameScannerStripsCarriageReturns(t *testing.T) {
	t.Parallel()

	frames := collectFrames(t, strings.NewReader("data: a\r\n\r\n"))
	if len(frames) != 2 || frames[0] != "data: a" || frames[1] != "" {
		t.Fatalf("unexpected frames: %q", frames)
	}
}

// TestFrameScannerChunkingInvariance verifies the frame sequence does not
// depend on where the transport split the bytes.
func TestFrameScannerChunkingInvariance(t *testing.T) {
	t.Parallel()

	payload := "data: {\"type\":\"start\"}\n\ndata: {\"type\":\"thinking\",\"text\":\"scanning\"}\n\ndata: {\"type\":\"done\"}\n\ntrailing junk without newline"
	want := collectFrames(t, strings.NewReader(payload))

	for _, size := range []int{1, 2, 3, 5, 7, 64, 4096} {
		got := collectFrames(t, &chunkReader{data: []byte(payload), size: size})
		if len(got) != len(want) {
			t.Fatalf("chunk size %d: expected %d frames, got %d (%v)", size, len(want), len(got), got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("chunk size %d: frame %d = %q, want %q", size, i, got[i], want[i])
			}
		}
	}
}
