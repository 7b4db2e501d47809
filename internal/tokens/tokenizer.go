package tokens

import (
	"strings"
	"sync"

	"chatter/internal/chat"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Tokenizer token 计数器，tiktoken 不可用时回退到启发式
// Tokenizer counts prompt tokens with tiktoken, falling back to a heuristic
// when the encoding cannot be initialized (e.g. no BPE cache offline).
type Tokenizer struct {
	encoder      *tiktoken.Tiktoken
	encodingName string
	fallback     bool
	mu           sync.RWMutex
}

// ForModel 根据模型名选择编码
// ForModel picks the encoding for a model name.
func ForModel(model string) *Tokenizer {
	return New(modelToEncoding(model))
}

func New(encodingName string) *Tokenizer {
	t := &Tokenizer{encodingName: encodingName}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		t.fallback = true
		return t
	}
	t.encoder = enc
	return t
}

// Count 估算一组消息作为 prompt 的 token 总量
// Count estimates the prompt token total for a message list.
func (t *Tokenizer) Count(messages []chat.Message) int {
	total := 0
	for _, msg := range messages {
		// 每条消息的结构开销约 4 token / ~4 tokens of per-message overhead
		total += 4
		total += t.CountText(msg.Role)
		total += t.CountText(msg.Content)
	}
	return total
}

// CountText 计算单个文本的 token 数
// CountText counts tokens for one text string.
func (t *Tokenizer) CountText(text string) int {
	if text == "" {
		return 0
	}
	if t.fallback {
		return heuristicTokenCount(text)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.encoder.Encode(text, nil, nil))
}

// IsPrecise 返回是否使用精确计数
// IsPrecise reports whether exact counting is available.
func (t *Tokenizer) IsPrecise() bool {
	return !t.fallback
}

// heuristicTokenCount 启发式估算：CJK 约 1.5 token/字，ASCII 约 4 字符/token
// heuristicTokenCount estimates CJK at ~1.5 tokens per rune and ASCII at
// ~4 chars per token.
func heuristicTokenCount(text string) int {
	cjkCount := 0
	asciiCount := 0
	for _, r := range text {
		if isCJK(r) {
			cjkCount++
		} else {
			asciiCount++
		}
	}
	estimate := int(float64(cjkCount)*1.5 + float64(asciiCount)*0.25)
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // CJK Unified
		(r >= 0x3400 && r <= 0x4DBF) || // CJK Extension A
		(r >= 0x3000 && r <= 0x303F) || // CJK Symbols
		(r >= 0xFF00 && r <= 0xFFEF) || // Fullwidth Forms
		(r >= 0xAC00 && r <= 0xD7AF) // Korean Hangul
}

func modelToEncoding(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case m == "":
		return "cl100k_base"
	case strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"):
		return "o200k_base"
	case strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "chatgpt-4o"):
		return "o200k_base"
	default:
		return "cl100k_base"
	}
}
