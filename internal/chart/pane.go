package chart

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"market-dashboard/internal/model"
	"market-dashboard/internal/service"
)

// DefaultPaneHeight 未指定高度时的面板高度
const DefaultPaneHeight = 400

var (
	ErrPaneNotMounted = errors.New("pane not mounted")
	ErrUnknownSeries  = errors.New("unknown series")
)

// PaneListener 接收面板的生命周期和交互事件，由 Group 实现
type PaneListener interface {
	PaneReady(p *Pane)
	PaneDetached(p *Pane)
	VisibleRangeChanged(p *Pane, r LogicalRange)
	CrosshairMoved(p *Pane, c Crosshair)
}

type paneSeries struct {
	key    string
	kind   SeriesKind
	source Source
	handle SeriesHandle
}

// Pane 是一个图表面板：一个绘图实例加上若干序列
// 第一个添加的序列是主序列，十字光标同步时用它查找最近的点
type Pane struct {
	ID   string
	Name string

	mu       sync.Mutex
	renderer Renderer
	series   []*paneSeries
	byKey    map[string]*paneSeries
	width    int
	height   int
	mounted  bool
	mounting bool
	listener PaneListener
	logger   *zap.Logger
}

// PaneOption 配置 Pane
type PaneOption func(*Pane)

// WithSize 设置面板初始尺寸，height <= 0 时使用默认高度
func WithSize(width, height int) PaneOption {
	return func(p *Pane) {
		p.width = width
		if height > 0 {
			p.height = height
		}
	}
}

// NewPane 创建一个未挂载的面板
func NewPane(name string, renderer Renderer, opts ...PaneOption) *Pane {
	p := &Pane{
		ID:       uuid.NewString(),
		Name:     name,
		renderer: renderer,
		byKey:    make(map[string]*paneSeries),
		height:   DefaultPaneHeight,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = service.Logger.With(zap.String("Pane", name), zap.String("PaneID", p.ID))
	return p
}

// AddSeries 注册一个序列；面板已挂载时立即创建并填充数据
func (p *Pane) AddSeries(key string, kind SeriesKind, source Source) error {
	p.mu.Lock()
	if p.mounting {
		p.mu.Unlock()
		return fmt.Errorf("pane %s is mounting", p.Name)
	}
	if _, ok := p.byKey[key]; ok {
		p.mu.Unlock()
		return fmt.Errorf("series %q already added to pane %s", key, p.Name)
	}
	s := &paneSeries{key: key, kind: kind, source: source}
	p.series = append(p.series, s)
	p.byKey[key] = s
	mounted := p.mounted
	p.mu.Unlock()

	if !mounted {
		return nil
	}

	// 绘图引擎可能同步回调本面板，创建序列时不持有锁
	h, err := p.newHandle(s)
	p.mu.Lock()
	if err != nil {
		p.dropSeriesLocked(s)
		p.mu.Unlock()
		return err
	}
	stillMounted := p.mounted
	if stillMounted {
		s.handle = h
	}
	p.mu.Unlock()

	if !stillMounted {
		p.renderer.RemoveSeries(h)
	}
	return nil
}

func (p *Pane) dropSeriesLocked(s *paneSeries) {
	delete(p.byKey, s.key)
	for i, cur := range p.series {
		if cur == s {
			p.series = append(p.series[:i:i], p.series[i+1:]...)
			break
		}
	}
}

// Keys 按添加顺序返回序列名
func (p *Pane) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.series))
	for _, s := range p.series {
		keys = append(keys, s.key)
	}
	return keys
}

func (p *Pane) Mounted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mounted
}

// Height 当前面板高度
func (p *Pane) Height() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.height
}

func (p *Pane) setListener(l PaneListener) {
	p.mu.Lock()
	p.listener = l
	p.mu.Unlock()
}

// Mount 创建全部序列，每个序列只调用一次 SetData，然后通知监听者面板已就绪
// 调用绘图引擎期间不持有锁，引擎的同步回调在挂载完成前被忽略
func (p *Pane) Mount() error {
	p.mu.Lock()
	if p.mounted || p.mounting {
		p.mu.Unlock()
		return nil
	}
	p.mounting = true
	series := append([]*paneSeries(nil), p.series...)
	width, height := p.width, p.height
	p.mu.Unlock()

	handles := make([]SeriesHandle, 0, len(series))
	for _, s := range series {
		h, err := p.newHandle(s)
		if err != nil {
			for _, created := range handles {
				p.renderer.RemoveSeries(created)
			}
			p.mu.Lock()
			p.mounting = false
			p.mu.Unlock()
			return err
		}
		handles = append(handles, h)
	}
	p.renderer.Resize(width, height)
	p.renderer.FitContent()

	p.mu.Lock()
	for i, s := range series {
		s.handle = handles[i]
	}
	p.mounting = false
	p.mounted = true
	resized := p.width != width || p.height != height
	width, height = p.width, p.height
	listener := p.listener
	p.mu.Unlock()

	if resized {
		// 挂载期间尺寸发生了变化
		p.renderer.Resize(width, height)
	}
	p.logger.Info("Pane mounted", zap.Strings("Series", p.Keys()))
	if listener != nil {
		listener.PaneReady(p)
	}
	return nil
}

func (p *Pane) newHandle(s *paneSeries) (SeriesHandle, error) {
	h, err := p.renderer.AddSeries(s.key, s.kind)
	if err != nil {
		return nil, fmt.Errorf("add series %q: %w", s.key, err)
	}
	h.SetData(s.source.Snapshot())
	return h, nil
}

// Unmount 先移除序列再移除图表，并通知监听者
func (p *Pane) Unmount() {
	p.mu.Lock()
	if !p.mounted {
		p.mu.Unlock()
		return
	}
	handles := make([]SeriesHandle, 0, len(p.series))
	for _, s := range p.series {
		if s.handle != nil {
			handles = append(handles, s.handle)
			s.handle = nil
		}
	}
	p.mounted = false
	listener := p.listener
	p.mu.Unlock()

	for _, h := range handles {
		p.renderer.RemoveSeries(h)
	}
	p.renderer.Remove()

	p.logger.Info("Pane unmounted")
	if listener != nil {
		listener.PaneDetached(p)
	}
}

// Push 把一次序列变更转发给绘图引擎 (update 单点)
func (p *Pane) Push(key string, point model.Point) error {
	p.mu.Lock()
	if !p.mounted {
		p.mu.Unlock()
		return ErrPaneNotMounted
	}
	s, ok := p.byKey[key]
	if !ok || s.handle == nil {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSeries, key)
	}
	h := s.handle
	p.mu.Unlock()

	h.Update(point)
	return nil
}

// Resize 容器尺寸变化时调用
func (p *Pane) Resize(width, height int) {
	if height <= 0 {
		height = DefaultPaneHeight
	}
	p.mu.Lock()
	p.width, p.height = width, height
	mounted := p.mounted
	p.mu.Unlock()

	if mounted {
		p.renderer.Resize(width, height)
	}
}

// EmitVisibleRange 由绘图引擎回调：用户平移 / 缩放了本面板
func (p *Pane) EmitVisibleRange(r LogicalRange) {
	if l := p.activeListener(); l != nil {
		l.VisibleRangeChanged(p, r)
	}
}

// EmitCrosshair 由绘图引擎回调：本面板上的十字光标移动或离开
func (p *Pane) EmitCrosshair(c Crosshair) {
	if l := p.activeListener(); l != nil {
		l.CrosshairMoved(p, c)
	}
}

func (p *Pane) activeListener() PaneListener {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mounted {
		return nil
	}
	return p.listener
}

// ApplyVisibleRange 应用其他面板同步过来的可见范围
func (p *Pane) ApplyVisibleRange(r LogicalRange) {
	if !p.Mounted() {
		return
	}
	p.renderer.SetVisibleLogicalRange(r)
}

// ApplyCrosshair 在本面板主序列上查找离 bucketTime 最近的点并显示十字光标
// 主序列为空时清除光标，返回 false
func (p *Pane) ApplyCrosshair(bucketTime int64) bool {
	p.mu.Lock()
	if !p.mounted || len(p.series) == 0 {
		p.mu.Unlock()
		return false
	}
	source, handle := p.series[0].source, p.series[0].handle
	p.mu.Unlock()

	point, ok := source.NearestPoint(bucketTime)
	if !ok || handle == nil {
		p.renderer.ClearCrosshairPosition()
		return false
	}
	p.renderer.SetCrosshairPosition(PointValue(point), point.Time(), handle)
	return true
}

func (p *Pane) ClearCrosshair() {
	if !p.Mounted() {
		return
	}
	p.renderer.ClearCrosshairPosition()
}
