package ingest

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chatter/internal/chat"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestReadFileText(t *testing.T) {
	path := writeTemp(t, "notes.md", []byte("# hello\n\nsome notes"))

	att, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if att.Kind != chat.AttachmentText {
		t.Fatalf("expected text kind, got %q", att.Kind)
	}
	if att.Name != "notes.md" {
		t.Fatalf("unexpected name: %q", att.Name)
	}
	if att.Content != "# hello\n\nsome notes" {
		t.Fatalf("text content must be inlined verbatim: %q", att.Content)
	}
}

func TestReadFileImage(t *testing.T) {
	// 最小 PNG 头 / minimal PNG header bytes
	raw := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00, 0x01}
	path := writeTemp(t, "pic.png", raw)

	att, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if att.Kind != chat.AttachmentImage {
		t.Fatalf("expected image kind, got %q", att.Kind)
	}
	if !strings.HasPrefix(att.MimeType, "image/") {
		t.Fatalf("unexpected mime type: %q", att.MimeType)
	}
	if att.Content != base64.StdEncoding.EncodeToString(raw) {
		t.Fatalf("image content must be base64 encoded")
	}
}

func TestReadFileBinaryBecomesPlaceholder(t *testing.T) {
	raw := append([]byte{0x00, 0x01, 0x02, 0xff}, bytes.Repeat([]byte{0x00}, 32)...)
	path := writeTemp(t, "blob.bin", raw)

	att, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if att.Kind != chat.AttachmentOther {
		t.Fatalf("expected other kind, got %q", att.Kind)
	}
	if att.Content != "" {
		t.Fatalf("binary bytes must not be inlined: %d bytes", len(att.Content))
	}
}

func TestReadFileNoExtensionSniffsContent(t *testing.T) {
	path := writeTemp(t, "README", []byte("plain text, no extension"))

	att, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if att.Kind != chat.AttachmentText {
		t.Fatalf("utf-8 content without extension should be text, got %q", att.Kind)
	}
}

func TestReadFileErrors(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatalf("missing file must error")
	}
	if _, err := ReadFile(t.TempDir()); err == nil {
		t.Fatalf("directory must error")
	}
}
