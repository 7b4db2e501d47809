package provider

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const doneSentinel = "[DONE]"

// streamEvent 流式事件中需要的字段
// streamEvent is the slice of the SSE payload we care about.
type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// StreamDecoder 将 SSE 字节流增量解码为内容增量序列
// StreamDecoder incrementally decodes a text/event-stream body into a finite,
// non-restartable sequence of content deltas. Input may arrive in arbitrarily
// sized windows; partial lines are buffered until their terminator shows up,
// so a line may be split anywhere, including across the data prefix or the
// [DONE] sentinel.
type StreamDecoder struct {
	r    *bufio.Reader
	done bool
}

func NewStreamDecoder(r io.Reader) *StreamDecoder {
	return &StreamDecoder{r: bufio.NewReader(r)}
}

// Next 返回下一个内容增量；流结束时返回 io.EOF
// Next returns the next non-empty content delta. It returns io.EOF once the
// [DONE] sentinel is seen or the underlying stream ends; any other error is a
// transport failure. After [DONE], remaining buffered lines are ignored.
func (d *StreamDecoder) Next() (string, error) {
	if d.done {
		return "", io.EOF
	}
	for {
		line, err := d.r.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("read stream: %w", err)
		}
		atEOF := err == io.EOF
		if atEOF && line == "" {
			d.done = true
			return "", io.EOF
		}

		// ReadString only returns a fragment without the terminator at EOF,
		// where no further read can complete it; dispatch it like a full line.
		line = strings.TrimRight(line, "\r\n")
		if payload, ok := dataPayload(line); ok {
			if payload == doneSentinel {
				d.done = true
				return "", io.EOF
			}
			if delta, ok := decodeDelta(payload); ok {
				return delta, nil
			}
		}
		if atEOF {
			d.done = true
			return "", io.EOF
		}
	}
}

// dataPayload 提取 data: 行的载荷
// dataPayload extracts the payload of a "data:" line.
func dataPayload(line string) (string, bool) {
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "data:")), true
}

// decodeDelta 解析事件并提取内容增量；解析失败的行被静默跳过
// decodeDelta parses one event payload and pulls out the content delta.
// Malformed payloads are skipped silently rather than aborting the stream.
func decodeDelta(payload string) (string, bool) {
	if payload == "" {
		return "", false
	}
	var event streamEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return "", false
	}
	if len(event.Choices) == 0 {
		return "", false
	}
	delta := event.Choices[0].Delta.Content
	if delta == "" {
		return "", false
	}
	return delta, true
}
