package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"chatter/internal/config"
	"chatter/internal/i18n"
	"chatter/internal/orchestrator"
	"chatter/internal/provider"
	"chatter/internal/repl"
	"chatter/internal/storage"
	"chatter/internal/store"
	"chatter/internal/tokens"
	"chatter/internal/tui"
)

// sampler 由两种客户端实现，用于配置热更新
// sampler is implemented by both client modes for config live reload.
type sampler interface {
	ApplySampling(temperature, topP *float64, maxTokens int)
}

func main() {
	var (
		configPath string
		plain      bool
		model      string
	)
	flag.StringVar(&configPath, "config", "", "Path to config JSON/JSONC")
	flag.BoolVar(&plain, "plain", false, "Plain REPL mode instead of the full-screen TUI")
	flag.StringVar(&model, "model", "", "Model override")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if model != "" {
		cfg.Provider.Model = model
	}

	i18n.Init(cfg.UI.Locale)

	if err := os.MkdirAll(cfg.Storage.BaseDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "init storage dir failed: %v\n", err)
		os.Exit(1)
	}
	kv, err := storage.NewSQLiteKV(cfg.CachePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open cache failed: %v\n", err)
		os.Exit(1)
	}
	defer kv.Close()

	st := store.Open(kv)
	client := provider.New(cfg.Provider)
	orch := orchestrator.New(st, client, tokens.ForModel(cfg.Provider.Model))

	if cfg.UI.WatchConfig {
		watchPath, err := config.ResolvePath(configPath)
		if err == nil && watchPath != "" {
			watcher, werr := config.NewWatcher(watchPath, func(next config.Config) {
				if next.Provider.Model != "" {
					_ = client.SetModel(next.Provider.Model)
				}
				if s, ok := client.(sampler); ok {
					s.ApplySampling(next.Provider.Temperature, next.Provider.TopP, next.Provider.MaxCompletionTokens)
				}
			})
			if werr == nil {
				defer watcher.Close()
			}
		}
	}

	if plain {
		historyPath := filepath.Join(cfg.Storage.BaseDir, "repl.history")
		if err := repl.Run(st, orch, client, historyPath); err != nil {
			fmt.Fprintf(os.Stderr, "repl failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := tui.Run(st, orch, client, contextLimitFor(cfg.Provider.MaxCompletionTokens)); err != nil {
		fmt.Fprintf(os.Stderr, "tui failed: %v\n", err)
		os.Exit(1)
	}
}

// contextLimitFor 状态栏 token 进度条的参考上限
// contextLimitFor picks the reference ceiling for the status token meter.
func contextLimitFor(maxCompletionTokens int) int {
	limit := maxCompletionTokens * 16
	if limit < 8192 {
		limit = 8192
	}
	return limit
}
