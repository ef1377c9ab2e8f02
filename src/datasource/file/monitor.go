// monitor.go
package file

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Monitor 监视数据目录中已知数据集文件的写入
type Monitor struct {
	watchDir string
	watcher  *fsnotify.Watcher
	lastMod  map[string]time.Time
	mu       sync.Mutex
}

func NewMonitor(dir string) (*Monitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	return &Monitor{
		watchDir: dir,
		watcher:  watcher,
		lastMod:  make(map[string]time.Time),
	}, nil
}

// datasetForFile 根据文件名反查逻辑数据集，未知文件返回空串
func datasetForFile(name string) string {
	base := filepath.Base(name)
	stem := base[:len(base)-len(filepath.Ext(base))]
	for dataset, fname := range datasetFiles {
		if base == fname || stem == fname[:len(fname)-len(".csv")] {
			return dataset
		}
	}
	return ""
}

// Watch 阻塞处理事件，对每个新写入的数据集文件调用handler
func (m *Monitor) Watch(handler func(dataset string)) error {
	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write != fsnotify.Write {
				continue
			}
			dataset := datasetForFile(event.Name)
			if dataset == "" {
				continue
			}

			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}

			m.mu.Lock()
			if info.ModTime().After(m.lastMod[dataset]) {
				m.lastMod[dataset] = info.ModTime()
				go handler(dataset)
			}
			m.mu.Unlock()
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (m *Monitor) Close() error {
	return m.watcher.Close()
}
