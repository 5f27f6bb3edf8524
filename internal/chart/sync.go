package chart

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"market-dashboard/internal/service"
)

// GroupState 面板组的就绪状态
type GroupState string

const (
	GroupUninitialized   GroupState = "UNINITIALIZED"
	GroupWaitingForPanes GroupState = "WAITING_FOR_PANES"
	GroupActive          GroupState = "ACTIVE"
	GroupClosed          GroupState = "CLOSED"
)

var (
	ErrGroupClosed = errors.New("chart group closed")
	ErrGroupFull   = errors.New("chart group already has the expected number of panes")
)

// Group 让多个面板的可见范围和十字光标保持一致
// 所有面板都挂载后才进入 Active 并开始同步；任何一个面板卸载即关闭，
// 面板重新挂载时需要重新创建 Group
type Group struct {
	mu       sync.Mutex
	expected int
	state    GroupState
	panes    []*Pane
	ready    map[string]bool
	readyCh  chan struct{}

	// 应用同步结果期间，绘图引擎回调产生的事件不再传播
	applying bool

	visibleRange *LogicalRange
	crosshair    *Crosshair

	logger *zap.Logger
}

// NewGroup 创建一个等待 expected 个面板的组
func NewGroup(expected int) *Group {
	return &Group{
		expected: expected,
		state:    GroupUninitialized,
		ready:    make(map[string]bool, expected),
		readyCh:  make(chan struct{}),
		logger:   service.Logger.With(zap.String("Component", "ChartGroup")),
	}
}

func (g *Group) State() GroupState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Ready 在组进入 Active 时被关闭
func (g *Group) Ready() <-chan struct{} {
	return g.readyCh
}

// Panes 按注册顺序返回面板
func (g *Group) Panes() []*Pane {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Pane(nil), g.panes...)
}

// VisibleRange 当前同步的可见范围
func (g *Group) VisibleRange() (LogicalRange, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.visibleRange == nil {
		return LogicalRange{}, false
	}
	return *g.visibleRange, true
}

// Crosshair 当前同步的十字光标
func (g *Group) Crosshair() (Crosshair, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.crosshair == nil {
		return Crosshair{}, false
	}
	return *g.crosshair, true
}

// Register 把面板加入组；已挂载的面板直接计为就绪
func (g *Group) Register(p *Pane) error {
	g.mu.Lock()
	switch {
	case g.state == GroupClosed:
		g.mu.Unlock()
		return ErrGroupClosed
	case len(g.panes) >= g.expected:
		g.mu.Unlock()
		return ErrGroupFull
	}
	g.panes = append(g.panes, p)
	if g.state == GroupUninitialized {
		g.state = GroupWaitingForPanes
	}
	g.mu.Unlock()

	p.setListener(g)
	if p.Mounted() {
		g.PaneReady(p)
	}
	return nil
}

// PaneReady 面板挂载完成；就绪数量达到 expected 时进入 Active
func (g *Group) PaneReady(p *Pane) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != GroupWaitingForPanes || !g.member(p) {
		return
	}
	g.ready[p.ID] = true
	if len(g.ready) < g.expected {
		g.logger.Debug("Pane ready, waiting for siblings",
			zap.String("Pane", p.Name), zap.Int("Ready", len(g.ready)), zap.Int("Expected", g.expected))
		return
	}

	g.state = GroupActive
	close(g.readyCh)
	g.logger.Info("Chart group active", zap.Int("Panes", len(g.panes)))
}

// PaneDetached 任何一个面板卸载都会关闭整个组
func (g *Group) PaneDetached(p *Pane) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == GroupClosed || !g.member(p) {
		return
	}
	g.closeLocked()
	g.logger.Info("Chart group closed", zap.String("DetachedPane", p.Name))
}

// Close 主动关闭组，不卸载面板
func (g *Group) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != GroupClosed {
		g.closeLocked()
	}
}

func (g *Group) closeLocked() {
	g.state = GroupClosed
	for _, p := range g.panes {
		p.setListener(nil)
	}
}

// VisibleRangeChanged 把源面板的可见范围应用到其他面板，不回传给源面板
func (g *Group) VisibleRangeChanged(src *Pane, r LogicalRange) {
	targets, ok := g.begin(src)
	if !ok {
		return
	}
	defer g.end()

	g.mu.Lock()
	g.visibleRange = &r
	g.mu.Unlock()

	for _, p := range targets {
		p.ApplyVisibleRange(r)
	}
}

// CrosshairMoved 其他面板按各自主序列上最近的点显示光标，数值不跨面板复制
func (g *Group) CrosshairMoved(src *Pane, c Crosshair) {
	targets, ok := g.begin(src)
	if !ok {
		return
	}
	defer g.end()

	g.mu.Lock()
	if c.Visible {
		g.crosshair = &c
	} else {
		g.crosshair = nil
	}
	g.mu.Unlock()

	for _, p := range targets {
		if c.Visible {
			p.ApplyCrosshair(c.BucketTime)
		} else {
			p.ClearCrosshair()
		}
	}
}

// begin 返回需要同步的面板；组未就绪、已关闭或正处于同步中时返回 false
func (g *Group) begin(src *Pane) ([]*Pane, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != GroupActive || g.applying || !g.member(src) {
		return nil, false
	}
	g.applying = true

	targets := make([]*Pane, 0, len(g.panes)-1)
	for _, p := range g.panes {
		if p != src {
			targets = append(targets, p)
		}
	}
	return targets, true
}

func (g *Group) end() {
	g.mu.Lock()
	g.applying = false
	g.mu.Unlock()
}

func (g *Group) member(p *Pane) bool {
	for _, candidate := range g.panes {
		if candidate == p {
			return true
		}
	}
	return false
}
