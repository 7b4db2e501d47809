package provider

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

// chunkReader 以固定窗口大小吐出数据，模拟任意位置的读取边界
// chunkReader yields the payload in fixed-size windows to simulate arbitrary
// read boundaries, including splits inside a line or inside the sentinel.
type chunkReader struct {
	data []byte
	size int
	pos  int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	end := r.pos + r.size
	if end > len(r.data) {
		end = len(r.data)
	}
	n := copy(p, r.data[r.pos:end])
	r.pos += n
	return n, nil
}

func drain(t *testing.T, d *StreamDecoder) []string {
	t.Helper()
	var deltas []string
	for {
		delta, err := d.Next()
		if err == io.EOF {
			return deltas
		}
		if err != nil {
			t.Fatalf("unexpected decode error: %v", err)
		}
		deltas = append(deltas, delta)
	}
}

func TestStreamDecoderSplitAtArbitraryOffsets(t *testing.T) {
	payload := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"He"}}]}`,
		`data: {"choices":[{"delta":{"content":"llo"}}]}`,
		`data: {"choices":[{"delta":{"content":" wor"}}]}`,
		`data: {"choices":[{"delta":{"content":"ld"}}]}`,
		`data: [DONE]`,
		``,
	}, "\n")

	whole := drain(t, NewStreamDecoder(strings.NewReader(payload)))

	for _, size := range []int{1, 2, 3, 5, 7, 64} {
		t.Run(fmt.Sprintf("window=%d", size), func(t *testing.T) {
			got := drain(t, NewStreamDecoder(&chunkReader{data: []byte(payload), size: size}))
			if strings.Join(got, "|") != strings.Join(whole, "|") {
				t.Fatalf("window %d diverged: got=%v want=%v", size, got, whole)
			}
		})
	}
	if strings.Join(whole, "") != "Hello world" {
		t.Fatalf("unexpected assembled content: %q", strings.Join(whole, ""))
	}
}

func TestStreamDecoderSentinelStopsIteration(t *testing.T) {
	payload := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"a"}}]}`,
		`data: [DONE]`,
		`data: {"choices":[{"delta":{"content":"ignored"}}]}`,
		``,
	}, "\n")

	d := NewStreamDecoder(strings.NewReader(payload))
	deltas := drain(t, d)
	if len(deltas) != 1 || deltas[0] != "a" {
		t.Fatalf("unexpected deltas: %v", deltas)
	}
	// 完成后必须保持终止 / stays terminated after completion
	if _, err := d.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF after sentinel, got %v", err)
	}
}

func TestStreamDecoderSkipsMalformedPayloads(t *testing.T) {
	payload := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"keep"}}]}`,
		`data: {broken json`,
		`: comment line`,
		`event: ping`,
		`data: {"choices":[]}`,
		`data: {"choices":[{"delta":{"content":"me"}}]}`,
		``,
	}, "\n")

	deltas := drain(t, NewStreamDecoder(strings.NewReader(payload)))
	if strings.Join(deltas, "") != "keepme" {
		t.Fatalf("unexpected deltas: %v", deltas)
	}
}

func TestStreamDecoderEOFWithoutSentinel(t *testing.T) {
	// 末尾未换行的片段在 EOF 时照常派发 / trailing fragment dispatched at EOF
	payload := "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}"
	deltas := drain(t, NewStreamDecoder(strings.NewReader(payload)))
	if len(deltas) != 1 || deltas[0] != "partial" {
		t.Fatalf("unexpected deltas: %v", deltas)
	}
}

type failingReader struct{ err error }

func (r *failingReader) Read(p []byte) (int, error) { return 0, r.err }

func TestStreamDecoderTransportError(t *testing.T) {
	wantErr := errors.New("connection reset")
	d := NewStreamDecoder(&failingReader{err: wantErr})
	if _, err := d.Next(); err == nil || !errors.Is(err, wantErr) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
