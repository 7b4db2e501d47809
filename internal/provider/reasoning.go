package provider

import (
	"regexp"
	"strings"
)

var (
	thinkSpanRe = regexp.MustCompile(`(?is)<think>.*?</think>`)
	thinkTailRe = regexp.MustCompile(`(?is)<think>.*$`)
)

// StripReasoning 去除文本中的 <think> 推理段
// StripReasoning removes every well-formed <think>...</think> span
// (case-insensitive, may span newlines) plus a trailing unterminated
// <think>... span left by a stream cut mid-reasoning. The result is trimmed.
//
// Callers must pass the full accumulated text, never just the newest chunk:
// a tag boundary can straddle a chunk boundary, so the filter is re-applied
// to the whole accumulator on every delta. Pure and idempotent.
func StripReasoning(text string) string {
	if text == "" {
		return ""
	}
	cleaned := thinkSpanRe.ReplaceAllString(text, "")
	cleaned = thinkTailRe.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}
