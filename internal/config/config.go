package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ProviderConfig 补全服务配置
// ProviderConfig configures the completion endpoint. Mode selects the client
// implementation: "compat" for the hand-rolled streaming client, "sdk" for
// the go-openai based one.
type ProviderConfig struct {
	BaseURL             string   `json:"base_url"`
	Model               string   `json:"model"`
	Models              []string `json:"models"`
	APIKey              string   `json:"api_key"`
	Mode                string   `json:"mode"`
	TimeoutMS           int      `json:"timeout_ms"`
	MaxRetries          int      `json:"max_retries"`
	MaxCompletionTokens int      `json:"max_completion_tokens"`
	Temperature         *float64 `json:"temperature"`
	TopP                *float64 `json:"top_p"`
	SystemPrompt        string   `json:"system_prompt"`
}

type StorageConfig struct {
	BaseDir string `json:"base_dir"`
}

type UIConfig struct {
	Locale string `json:"locale"`
	// WatchConfig 为 true 时监听配置文件变更并热应用模型/采样参数
	// WatchConfig enables live reload of model/sampling changes.
	WatchConfig bool `json:"watch_config"`
}

type Config struct {
	Provider ProviderConfig `json:"provider"`
	Storage  StorageConfig  `json:"storage"`
	UI       UIConfig       `json:"ui"`
}

type fileConfig struct {
	Provider *ProviderConfig `json:"provider"`
	Storage  *StorageConfig  `json:"storage"`
	UI       *uiFileConfig   `json:"ui"`
}

// uiFileConfig 区分“未写”与“显式 false”
// uiFileConfig distinguishes an omitted watch_config from an explicit false.
type uiFileConfig struct {
	Locale      string `json:"locale"`
	WatchConfig *bool  `json:"watch_config"`
}

func Default() Config {
	temperature := 0.7
	topP := 0.9
	return Config{
		Provider: ProviderConfig{
			BaseURL:             "http://127.0.0.1:11434/v1",
			Model:               "qwen3:8b",
			Models:              []string{"qwen3:8b"},
			Mode:                "compat",
			TimeoutMS:           120000,
			MaxRetries:          3,
			MaxCompletionTokens: 2048,
			Temperature:         &temperature,
			TopP:                &topP,
		},
		Storage: StorageConfig{
			BaseDir: "~/.chatter",
		},
		UI: UIConfig{
			WatchConfig: true,
		},
	}
}

// Load 按默认值 -> 全局配置 -> 指定/项目配置 -> 环境变量的顺序叠加
// Load layers defaults, the global config file, the given (or project-local)
// config file, and finally environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	for _, globalPath := range globalConfigPaths() {
		if err := mergeFromFile(&cfg, globalPath); err != nil {
			return Config{}, err
		}
	}

	resolvedPath, err := ResolvePath(path)
	if err != nil {
		return Config{}, err
	}
	if err := mergeFromFile(&cfg, resolvedPath); err != nil {
		return Config{}, err
	}

	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return applyEnv(cfg)
}

// ResolvePath 解析生效的配置文件路径（可能为空）
// ResolvePath resolves the effective config file path; empty means none. The
// same path feeds the config watcher.
func ResolvePath(path string) (string, error) {
	resolved := strings.TrimSpace(path)
	if envPath := strings.TrimSpace(os.Getenv("CHATTER_CONFIG_PATH")); envPath != "" {
		resolved = envPath
	}
	if resolved == "" {
		resolved = findProjectConfigPath()
	}
	if resolved == "" {
		return "", nil
	}
	return expandPath(resolved)
}

// CachePath 本地缓存数据库路径
// CachePath is the local cache database location.
func (c Config) CachePath() string {
	return filepath.Join(c.Storage.BaseDir, "cache.db")
}

func globalConfigPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(home, ".chatter", "config.json")}
}

func findProjectConfigPath() string {
	candidates := []string{
		"chatter.config.json",
		".chatter/config.json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func mergeFromFile(cfg *Config, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	resolved, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("expand config path %q: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", resolved, err)
	}

	cleaned := stripJSONComments(data)
	var fileCfg fileConfig
	if err := json.Unmarshal(cleaned, &fileCfg); err != nil {
		return fmt.Errorf("parse config %q: %w", resolved, err)
	}
	applyFileConfig(cfg, fileCfg)
	return nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if fc.Provider != nil {
		cfg.Provider = mergeProvider(cfg.Provider, *fc.Provider)
	}
	if fc.Storage != nil {
		if strings.TrimSpace(fc.Storage.BaseDir) != "" {
			cfg.Storage.BaseDir = fc.Storage.BaseDir
		}
	}
	if fc.UI != nil {
		if strings.TrimSpace(fc.UI.Locale) != "" {
			cfg.UI.Locale = fc.UI.Locale
		}
		if fc.UI.WatchConfig != nil {
			cfg.UI.WatchConfig = *fc.UI.WatchConfig
		}
	}
}

func mergeProvider(base ProviderConfig, override ProviderConfig) ProviderConfig {
	if strings.TrimSpace(override.BaseURL) != "" {
		base.BaseURL = override.BaseURL
	}
	if strings.TrimSpace(override.Model) != "" {
		base.Model = override.Model
	}
	if strings.TrimSpace(override.APIKey) != "" {
		base.APIKey = override.APIKey
	}
	if strings.TrimSpace(override.Mode) != "" {
		base.Mode = override.Mode
	}
	if strings.TrimSpace(override.SystemPrompt) != "" {
		base.SystemPrompt = override.SystemPrompt
	}
	if len(override.Models) > 0 {
		base.Models = append([]string(nil), override.Models...)
	}
	if override.TimeoutMS > 0 {
		base.TimeoutMS = override.TimeoutMS
	}
	if override.MaxRetries > 0 {
		base.MaxRetries = override.MaxRetries
	}
	if override.MaxCompletionTokens > 0 {
		base.MaxCompletionTokens = override.MaxCompletionTokens
	}
	if override.Temperature != nil {
		base.Temperature = override.Temperature
	}
	if override.TopP != nil {
		base.TopP = override.TopP
	}
	return base
}

func normalize(cfg *Config) error {
	mode := strings.ToLower(strings.TrimSpace(cfg.Provider.Mode))
	switch mode {
	case "", "compat":
		cfg.Provider.Mode = "compat"
	case "sdk":
		cfg.Provider.Mode = "sdk"
	default:
		return fmt.Errorf("invalid provider mode %q (want compat or sdk)", cfg.Provider.Mode)
	}

	if cfg.Provider.TimeoutMS <= 0 {
		cfg.Provider.TimeoutMS = Default().Provider.TimeoutMS
	}
	if cfg.Provider.MaxCompletionTokens <= 0 {
		cfg.Provider.MaxCompletionTokens = Default().Provider.MaxCompletionTokens
	}

	baseDir, err := expandPath(cfg.Storage.BaseDir)
	if err != nil {
		return fmt.Errorf("expand storage base dir: %w", err)
	}
	cfg.Storage.BaseDir = baseDir
	return nil
}

func applyEnv(cfg Config) (Config, error) {
	if v := strings.TrimSpace(os.Getenv("CHATTER_BASE_URL")); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CHATTER_MODEL")); v != "" {
		cfg.Provider.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("CHATTER_API_KEY")); v != "" {
		cfg.Provider.APIKey = v
	} else if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("CHATTER_CACHE_PATH")); v != "" {
		cfg.Storage.BaseDir = v
	}
	return cfg, normalize(&cfg)
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return filepath.Abs(path)
}

func stripJSONComments(data []byte) []byte {
	const (
		stateNormal = iota
		stateString
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	escaped := false
	out := bytes.Buffer{}

	for i := 0; i < len(data); i++ {
		c := data[i]
		next := byte(0)
		if i+1 < len(data) {
			next = data[i+1]
		}

		switch state {
		case stateNormal:
			if c == '"' {
				state = stateString
				out.WriteByte(c)
				continue
			}
			if c == '/' && next == '/' {
				state = stateLineComment
				i++
				continue
			}
			if c == '/' && next == '*' {
				state = stateBlockComment
				i++
				continue
			}
			out.WriteByte(c)
		case stateString:
			out.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
				continue
			}
			if c == '"' {
				state = stateNormal
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
				out.WriteByte(c)
			}
		case stateBlockComment:
			if c == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}

	return out.Bytes()
}
