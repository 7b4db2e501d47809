// Package ingest 把本地文件转换为可随消息发送的附件
// Package ingest turns local files into attachments that ride along with a
// message. Text-like files are inlined as-is, images are base64 encoded, and
// anything else becomes a metadata-only placeholder so binary bytes never
// reach the chat context.
package ingest

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"chatter/internal/chat"
)

// MaxFileSize 附件大小上限
// MaxFileSize caps what a single attachment may inline.
const MaxFileSize = 5 * 1024 * 1024

var textLikeExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".json": true,
	".jsonc": true, ".yaml": true, ".yml": true, ".toml": true,
	".xml": true, ".html": true, ".css": true, ".csv": true,
	".go": true, ".py": true, ".js": true, ".ts": true, ".rs": true,
	".c": true, ".h": true, ".cpp": true, ".java": true, ".rb": true,
	".sh": true, ".sql": true, ".log": true, ".ini": true, ".conf": true,
}

// ReadFile 读取 path 并构造附件
// ReadFile reads path and builds the attachment for it.
func ReadFile(path string) (*chat.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat attachment: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%q is a directory", path)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("attachment exceeds maximum size of %d bytes", MaxFileSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("attachment exceeds maximum size of %d bytes", MaxFileSize)
	}

	name := filepath.Base(path)
	mediaType := mediaTypeFor(path)

	att := &chat.Attachment{
		Name:     name,
		MimeType: mediaType,
	}
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		att.Kind = chat.AttachmentImage
		att.Content = base64.StdEncoding.EncodeToString(data)
	case isTextLike(path, mediaType, data):
		att.Kind = chat.AttachmentText
		att.Content = string(data)
	default:
		// 二进制内容不进入上下文，仅保留元信息
		// Binary bytes stay out of the context; only metadata survives.
		att.Kind = chat.AttachmentOther
	}
	return att, nil
}

func mediaTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mt := mime.TypeByExtension(ext); mt != "" {
		mediaType, _, err := mime.ParseMediaType(mt)
		if err == nil {
			return mediaType
		}
	}
	if textLikeExtensions[ext] {
		return "text/plain"
	}
	return "application/octet-stream"
}

func isTextLike(path, mediaType string, data []byte) bool {
	if strings.HasPrefix(mediaType, "text/") {
		return true
	}
	switch mediaType {
	case "application/json", "application/xml", "application/javascript",
		"application/x-sh", "application/toml", "application/yaml":
		return true
	}
	if textLikeExtensions[strings.ToLower(filepath.Ext(path))] {
		return true
	}
	// 无扩展名时按内容判定 / fall back to content sniffing
	if len(data) == 0 {
		return true
	}
	sample := data
	if len(sample) > 512 {
		sample = sample[:512]
		// 截断可能切开多字节字符 / truncation may split a multi-byte rune
		for i := 0; i < 3 && len(sample) > 0; i++ {
			r, size := utf8.DecodeLastRune(sample)
			if r != utf8.RuneError || size != 1 {
				break
			}
			sample = sample[:len(sample)-1]
		}
	}
	if !utf8.Valid(sample) {
		return false
	}
	for _, b := range sample {
		if b == 0 {
			return false
		}
	}
	return true
}
