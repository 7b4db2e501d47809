package tui

import (
	"strings"
	"testing"
)

func TestRenderMarkdown_Basic(t *testing.T) {
	input := "# Hello\n\nThis is **bold** text."
	result := RenderMarkdown(input, 80)
	if result == "" {
		t.Fatal("RenderMarkdown returned empty")
	}
	// Glamour 应该渲染了标题 / Glamour should have rendered the heading
	if !strings.Contains(result, "Hello") {
		t.Fatalf("result should contain 'Hello': %q", result)
	}
}

func TestRenderMarkdown_Empty(t *testing.T) {
	if RenderMarkdown("", 80) != "" {
		t.Fatal("empty input should return empty")
	}
	if RenderMarkdown("  ", 80) != "" {
		t.Fatal("whitespace input should return empty")
	}
}

func TestRenderMarkdown_CodeBlock(t *testing.T) {
	input := "```go\nfunc main() {}\n```"
	result := RenderMarkdown(input, 80)
	if !strings.Contains(result, "func") {
		t.Fatalf("code block should contain 'func': %q", result)
	}
}

func TestRenderProgressBar(t *testing.T) {
	full := renderProgressBar(100, 10)
	if strings.Contains(full, "░") {
		t.Fatalf("full bar should have no empty cells: %q", full)
	}
	empty := renderProgressBar(0, 10)
	if strings.Contains(empty, "█") {
		t.Fatalf("empty bar should have no filled cells: %q", empty)
	}
	// 超界值截断 / out-of-range values clamp
	if renderProgressBar(250, 10) != full {
		t.Fatalf("overflow should clamp to full")
	}
}
