package feed

import (
	"fmt"
	"sync"

	"market-dashboard/internal/model"
)

// Watchlist 用户标记的成交，按 ID 去重，保持加入顺序
type Watchlist struct {
	mu    sync.RWMutex
	items []model.OptionTrade
	ids   map[int]struct{}
}

func NewWatchlist() *Watchlist {
	return &Watchlist{ids: make(map[int]struct{})}
}

// Add 已存在相同 ID 时返回 false
func (w *Watchlist) Add(t model.OptionTrade) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.ids[t.ID]; ok {
		return false
	}
	w.ids[t.ID] = struct{}{}
	w.items = append(w.items, t)
	return true
}

func (w *Watchlist) Items() []model.OptionTrade {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]model.OptionTrade(nil), w.items...)
}

func (w *Watchlist) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.items)
}

// Lines 每个条目一行，格式 "Strike: 5000, Price: 1.2"
func (w *Watchlist) Lines() []string {
	items := w.Items()
	lines := make([]string, 0, len(items))
	for _, t := range items {
		lines = append(lines, fmt.Sprintf("Strike: %s, Price: %s", formatNumber(t.Strike), formatNumber(t.Price)))
	}
	return lines
}
