package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// 隔离家目录与环境变量，避免读到真实配置
// Isolate home dir and env so tests never see a real config.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{
		"CHATTER_CONFIG_PATH", "CHATTER_BASE_URL", "CHATTER_MODEL",
		"CHATTER_API_KEY", "CHATTER_CACHE_PATH", "OPENAI_API_KEY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Provider.Mode != "compat" {
		t.Fatalf("unexpected default mode: %q", cfg.Provider.Mode)
	}
	if cfg.Provider.Model == "" || cfg.Provider.BaseURL == "" {
		t.Fatalf("defaults must carry a model and base url: %+v", cfg.Provider)
	}
	if !filepath.IsAbs(cfg.Storage.BaseDir) {
		t.Fatalf("base dir must be absolute after load: %q", cfg.Storage.BaseDir)
	}
	if !strings.HasSuffix(cfg.CachePath(), "cache.db") {
		t.Fatalf("unexpected cache path: %q", cfg.CachePath())
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	isolate(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "chatter.config.json")
	content := `{
	// 行注释应被剥离 / line comments are stripped
	"provider": {
		"base_url": "https://api.example.com/v1",
		"model": "test-model",
		"timeout_ms": 5000,
		"temperature": 0.2
	},
	/* 块注释 */
	"storage": { "base_dir": "` + dir + `" }
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Provider.BaseURL != "https://api.example.com/v1" {
		t.Fatalf("base url not merged: %q", cfg.Provider.BaseURL)
	}
	if cfg.Provider.Model != "test-model" {
		t.Fatalf("model not merged: %q", cfg.Provider.Model)
	}
	if cfg.Provider.TimeoutMS != 5000 {
		t.Fatalf("timeout not merged: %d", cfg.Provider.TimeoutMS)
	}
	if cfg.Provider.Temperature == nil || *cfg.Provider.Temperature != 0.2 {
		t.Fatalf("temperature not merged: %v", cfg.Provider.Temperature)
	}
	// 未覆盖的字段保留默认值 / untouched fields keep their defaults
	if cfg.Provider.MaxCompletionTokens != Default().Provider.MaxCompletionTokens {
		t.Fatalf("max tokens should keep default: %d", cfg.Provider.MaxCompletionTokens)
	}
	if cfg.Storage.BaseDir != dir {
		t.Fatalf("base dir not merged: %q", cfg.Storage.BaseDir)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	isolate(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "chatter.config.json")
	if err := os.WriteFile(path, []byte(`{"provider":{"model":"from-file"}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CHATTER_MODEL", "from-env")
	t.Setenv("OPENAI_API_KEY", "sk-fallback")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Provider.Model != "from-env" {
		t.Fatalf("env must win over file: %q", cfg.Provider.Model)
	}
	if cfg.Provider.APIKey != "sk-fallback" {
		t.Fatalf("OPENAI_API_KEY fallback not applied: %q", cfg.Provider.APIKey)
	}
}

func TestUISectionKeepsWatchDefault(t *testing.T) {
	isolate(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "chatter.config.json")
	// ui 段未写 watch_config 时保留默认开启
	// A ui section that omits watch_config keeps the default-on reload.
	if err := os.WriteFile(path, []byte(`{"ui":{"locale":"zh-CN"}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.UI.Locale != "zh-CN" {
		t.Fatalf("locale not merged: %q", cfg.UI.Locale)
	}
	if !cfg.UI.WatchConfig {
		t.Fatalf("omitting watch_config must not disable live reload")
	}

	if err := os.WriteFile(path, []byte(`{"ui":{"watch_config":false}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.UI.WatchConfig {
		t.Fatalf("explicit watch_config false must be honored")
	}
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	isolate(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "chatter.config.json")
	if err := os.WriteFile(path, []byte(`{"provider":{"mode":"grpc"}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("invalid mode must fail the load")
	}
}

func TestLoadIgnoresMissingFile(t *testing.T) {
	isolate(t)

	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
}

func TestStripJSONCommentsKeepsStrings(t *testing.T) {
	in := `{"url": "http://host//path", "note": "a /* not a comment */ b"} // tail`
	out := string(stripJSONComments([]byte(in)))
	if !strings.Contains(out, "http://host//path") {
		t.Fatalf("slashes inside strings must survive: %q", out)
	}
	if !strings.Contains(out, "/* not a comment */") {
		t.Fatalf("block markers inside strings must survive: %q", out)
	}
	if strings.Contains(out, "tail") {
		t.Fatalf("trailing comment must be stripped: %q", out)
	}
}

func TestExpandPathTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/sub/dir")
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	if got != filepath.Join(home, "sub", "dir") {
		t.Fatalf("unexpected expansion: %q", got)
	}
}
