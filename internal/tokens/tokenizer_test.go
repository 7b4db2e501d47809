package tokens

import (
	"testing"

	"chatter/internal/chat"
)

func TestCountTextNonZero(t *testing.T) {
	tok := New("cl100k_base")
	if got := tok.CountText(""); got != 0 {
		t.Fatalf("empty text should count zero, got %d", got)
	}
	if got := tok.CountText("hello world"); got < 1 {
		t.Fatalf("expected positive count, got %d", got)
	}
}

func TestCountIncludesMessageOverhead(t *testing.T) {
	tok := New("cl100k_base")
	messages := []chat.Message{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "hello"},
	}
	if got := tok.Count(messages); got < 8 {
		t.Fatalf("expected per-message overhead in total, got %d", got)
	}
}

func TestHeuristicFallback(t *testing.T) {
	tok := New("no-such-encoding")
	if tok.IsPrecise() {
		t.Fatalf("unknown encoding should fall back to heuristic")
	}
	ascii := tok.CountText("four char groups here")
	if ascii < 1 {
		t.Fatalf("heuristic should return at least 1, got %d", ascii)
	}
	cjk := tok.CountText("你好世界")
	if cjk < 4 {
		t.Fatalf("CJK should count more than one token per rune pair, got %d", cjk)
	}
}

func TestModelToEncoding(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"", "cl100k_base"},
		{"gpt-4o-mini", "o200k_base"},
		{"o3-large", "o200k_base"},
		{"qwen3-30b", "cl100k_base"},
	}
	for _, tc := range tests {
		if got := modelToEncoding(tc.model); got != tc.want {
			t.Fatalf("modelToEncoding(%q)=%q want %q", tc.model, got, tc.want)
		}
	}
}
