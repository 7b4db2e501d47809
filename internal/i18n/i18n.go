// Package i18n 为界面文案提供 en/zh 目录
// Package i18n holds the en/zh message catalogs for UI strings. A catalog is
// built once at startup; the message set never changes afterwards.
package i18n

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// I18n 一份已解析 locale 的只读文案目录
// I18n is a read-only message catalog resolved for one locale. English is the
// base layer; Chinese overlays it when the locale asks for it.
type I18n struct {
	locale   string
	messages map[string]string
}

var (
	global     *I18n
	globalOnce sync.Once
)

// Global 返回全局目录，未初始化时按环境探测 locale
// Global returns the process-wide catalog, detecting the locale from the
// environment when Init was never called.
func Global() *I18n {
	globalOnce.Do(func() {
		if global == nil {
			global = New("")
		}
	})
	return global
}

// Init 用配置的 locale 初始化全局目录
// Init installs the configured locale as the global catalog.
func Init(locale string) {
	global = New(locale)
}

// T 全局翻译快捷函数
// T is the global translation shortcut.
func T(key string, args ...any) string {
	return Global().T(key, args...)
}

// New 构建指定 locale 的目录；空值时探测环境
// New builds the catalog for a locale, falling back to environment detection.
func New(locale string) *I18n {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		locale = detectLocale()
	} else {
		locale = normalizeLocale(locale)
	}

	messages := make(map[string]string, len(EnMessages))
	for k, v := range EnMessages {
		messages[k] = v
	}
	if locale == "zh-CN" {
		for k, v := range ZhCNMessages {
			messages[k] = v
		}
	}

	return &I18n{locale: locale, messages: messages}
}

// T 查找并格式化文案，未知 key 原样返回
// T looks up and formats a message; unknown keys come back verbatim.
func (i *I18n) T(key string, args ...any) string {
	tmpl, ok := i.messages[key]
	if !ok {
		return key
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

// Locale 返回目录的 locale
// Locale returns the catalog's locale.
func (i *I18n) Locale() string {
	return i.locale
}

func detectLocale() string {
	for _, env := range []string{"CHATTER_LANG", "LANG", "LC_ALL", "LC_MESSAGES"} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return normalizeLocale(v)
		}
	}
	return "en"
}

func normalizeLocale(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "en"
	}
	// 去掉 .UTF-8 等编码后缀 / drop the .UTF-8 style encoding suffix
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		s = s[:idx]
	}
	s = strings.ReplaceAll(s, "_", "-")
	lower := strings.ToLower(s)

	switch {
	case strings.HasPrefix(lower, "zh"):
		return "zh-CN"
	case strings.HasPrefix(lower, "en"):
		return "en"
	default:
		return s
	}
}
