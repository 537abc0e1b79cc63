package serial

import (
	"bufio"
	"bytes"
	"reflect"
	"testing"
)

func collect(frames *[]string) func([]byte) {
	return func(b []byte) { *frames = append(*frames, string(b)) }
}

func TestFramerPush(t *testing.T) {
	tests := []struct {
		name     string
		split    bufio.SplitFunc
		maxFrame int
		chunks   []string
		frames   []string
		pending  int
	}{
		{
			name:   "raw reads pass through",
			chunks: []string{"PI", "NG\n"},
			frames: []string{"PI", "NG\n"},
		},
		{
			name:    "terminator across reads",
			split:   SplitTerminator('\n'),
			chunks:  []string{"PI", "NG\nPO", "NG\n", "tail"},
			frames:  []string{"PING\n", "PONG\n"},
			pending: 4,
		},
		{
			name:    "fixed size",
			split:   SplitFixed(3),
			chunks:  []string{"abcd", "efg", "h"},
			frames:  []string{"abc", "def"},
			pending: 2,
		},
		{
			name:   "scan lines drops the newline",
			split:  bufio.ScanLines,
			chunks: []string{"one\r\ntwo\n"},
			frames: []string{"one", "two"},
		},
		{
			name:     "unterminated stream is bounded",
			split:    SplitTerminator('\n'),
			maxFrame: 4,
			chunks:   []string{"abc", "defg"},
			frames:   []string{"abcdefg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFramer(tt.split, tt.maxFrame)
			var frames []string
			for _, c := range tt.chunks {
				if err := f.push([]byte(c), collect(&frames)); err != nil {
					t.Fatalf("push(%q) error = %v", c, err)
				}
			}
			if !reflect.DeepEqual(frames, tt.frames) {
				t.Errorf("frames = %q, expected %q", frames, tt.frames)
			}
			if f.pending() != tt.pending {
				t.Errorf("pending() = %d, expected %d", f.pending(), tt.pending)
			}
		})
	}
}

func TestFramerFlush(t *testing.T) {
	f := newFramer(SplitTerminator('\n'), 0)
	var frames []string
	f.push([]byte("a\nbc"), collect(&frames))
	if err := f.flush(collect(&frames)); err != nil {
		t.Fatalf("flush() error = %v", err)
	}
	if expected := []string{"a\n", "bc"}; !reflect.DeepEqual(frames, expected) {
		t.Errorf("frames = %q, expected %q", frames, expected)
	}
	if f.pending() != 0 {
		t.Errorf("pending() = %d after flush", f.pending())
	}

	// Nothing buffered, nothing emitted
	frames = nil
	f.flush(collect(&frames))
	if len(frames) != 0 {
		t.Errorf("empty flush emitted %q", frames)
	}
}

// TestFramerPreservesBytes tests that every byte comes out once and in order
func TestFramerPreservesBytes(t *testing.T) {
	input := []byte("AT\r\nOK\r\n\x00\x01\x02\nERROR")
	for _, split := range []bufio.SplitFunc{nil, SplitTerminator('\n'), SplitFixed(5)} {
		f := newFramer(split, 64)
		var out bytes.Buffer
		emit := func(b []byte) { out.Write(b) }
		for i := 0; i < len(input); i += 3 {
			end := min(i+3, len(input))
			f.push(input[i:end], emit)
		}
		f.flush(emit)
		if !bytes.Equal(out.Bytes(), input) {
			t.Errorf("output = %q, expected %q", out.Bytes(), input)
		}
	}
}

func TestFramerFrameIsCopied(t *testing.T) {
	f := newFramer(nil, 0)
	buf := []byte("abc")
	var got []byte
	f.push(buf, func(b []byte) { got = b })
	buf[0] = 'X'
	if string(got) != "abc" {
		t.Errorf("frame aliases the read buffer: %q", got)
	}
}
