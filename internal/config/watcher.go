package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 300 * time.Millisecond

// Watcher 监听配置文件变更并回调重新加载后的配置
// Watcher observes the config file and delivers the freshly loaded Config
// after each change. Editors replace files on save, so the parent directory
// is watched and events are filtered by name.
type Watcher struct {
	path     string
	fw       *fsnotify.Watcher
	onChange func(Config)
	done     chan struct{}
}

// NewWatcher 启动对 path 的监听；path 为空返回 nil
// NewWatcher starts watching path. An empty path yields a nil watcher, which
// Close tolerates.
func NewWatcher(path string, onChange func(Config)) (*Watcher, error) {
	if path == "" {
		return nil, nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	w := &Watcher{
		path:     path,
		fw:       fw,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// 保存动作往往触发多个事件，合并后再加载
			// A save fires several events; coalesce before reloading.
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerC = timer.C
			} else {
				timer.Reset(watchDebounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			cfg, err := Load(w.path)
			if err != nil {
				continue
			}
			if w.onChange != nil {
				w.onChange(cfg)
			}
		case _, ok := <-w.fw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) Close() error {
	if w == nil {
		return nil
	}
	close(w.done)
	return w.fw.Close()
}
