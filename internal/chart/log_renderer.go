package chart

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"market-dashboard/internal/model"
	"market-dashboard/internal/service"
)

// LogRenderer 是无界面的绘图实现：把每次绘图调用写入日志，并记录每个序列的最新点
type LogRenderer struct {
	pane   string
	logger *zap.Logger

	mu     sync.Mutex
	series map[string]*LogSeries
}

// NewLogRenderer 可直接作为 RendererFactory 使用
func NewLogRenderer(paneName string) Renderer {
	return &LogRenderer{
		pane:   paneName,
		logger: service.Logger.With(zap.String("Pane", paneName)),
		series: make(map[string]*LogSeries),
	}
}

func (r *LogRenderer) AddSeries(key string, kind SeriesKind) (SeriesHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.series[key]; ok {
		return nil, fmt.Errorf("series %q already exists on pane %s", key, r.pane)
	}
	s := &LogSeries{key: key, kind: kind, logger: r.logger.With(zap.String("Series", key))}
	r.series[key] = s
	return s, nil
}

func (r *LogRenderer) RemoveSeries(h SeriesHandle) {
	s, ok := h.(*LogSeries)
	if !ok {
		return
	}
	r.mu.Lock()
	delete(r.series, s.key)
	r.mu.Unlock()
}

// Series 按名字返回序列，供调用方读取最新点
func (r *LogRenderer) Series(key string) (*LogSeries, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.series[key]
	return s, ok
}

func (r *LogRenderer) SetVisibleLogicalRange(lr LogicalRange) {
	r.logger.Debug("Visible range", zap.Float64("From", lr.From), zap.Float64("To", lr.To))
}

func (r *LogRenderer) SetCrosshairPosition(value float64, bucketTime int64, _ SeriesHandle) {
	r.logger.Debug("Crosshair", zap.Int64("Time", bucketTime), zap.Float64("Value", value))
}

func (r *LogRenderer) ClearCrosshairPosition() {
	r.logger.Debug("Crosshair cleared")
}

func (r *LogRenderer) Resize(width, height int) {
	r.logger.Debug("Resize", zap.Int("Width", width), zap.Int("Height", height))
}

func (r *LogRenderer) FitContent() {}

func (r *LogRenderer) Remove() {
	r.mu.Lock()
	r.series = make(map[string]*LogSeries)
	r.mu.Unlock()
	r.logger.Info("Chart removed")
}

// LogSeries 是 LogRenderer 上的一个序列
type LogSeries struct {
	key    string
	kind   SeriesKind
	logger *zap.Logger

	mu     sync.Mutex
	last   model.Point
	points int
}

func (s *LogSeries) SetData(points []model.Point) {
	s.mu.Lock()
	s.points = len(points)
	if len(points) > 0 {
		s.last = points[len(points)-1]
	}
	s.mu.Unlock()
	s.logger.Info("Series data set", zap.String("Kind", string(s.kind)), zap.Int("Points", len(points)))
}

func (s *LogSeries) Update(p model.Point) {
	s.mu.Lock()
	if s.last == nil || p.Time() > s.last.Time() {
		s.points++
	}
	s.last = p
	s.mu.Unlock()
	s.logger.Info("Series update", zap.Int64("Time", p.Time()), zap.Float64("Value", PointValue(p)))
}

// Last 最新的点
func (s *LogSeries) Last() (model.Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.last != nil
}

// Len 序列中的点数
func (s *LogSeries) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.points
}
