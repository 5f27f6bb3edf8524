package chart

import "market-dashboard/internal/model"

// SeriesKind 绘图引擎支持的序列类型
type SeriesKind string

const (
	KindCandlestick SeriesKind = "candlestick"
	KindHistogram   SeriesKind = "histogram"
	KindLine        SeriesKind = "line"
	KindArea        SeriesKind = "area"
)

// LogicalRange 可见区域的逻辑范围 (按 K 线索引)
type LogicalRange struct {
	From float64
	To   float64
}

// Crosshair 十字光标位置，Visible 为 false 表示光标离开图表
type Crosshair struct {
	BucketTime int64
	Value      float64
	Visible    bool
}

// Renderer 是外部绘图引擎中单个图表实例的边界
// 只在挂载时调用一次 SetData，之后只调用 Update
type Renderer interface {
	AddSeries(key string, kind SeriesKind) (SeriesHandle, error)
	RemoveSeries(h SeriesHandle)
	SetVisibleLogicalRange(r LogicalRange)
	SetCrosshairPosition(value float64, bucketTime int64, h SeriesHandle)
	ClearCrosshairPosition()
	Resize(width, height int)
	FitContent()
	Remove()
}

// SeriesHandle 是绘图引擎中的一个序列
type SeriesHandle interface {
	SetData(points []model.Point)
	Update(p model.Point)
}

// RendererFactory 为每个面板创建一个绘图实例
type RendererFactory func(paneName string) Renderer

// Source 是面板序列的数据来源
type Source interface {
	Snapshot() []model.Point
	NearestPoint(bucketTime int64) (model.Point, bool)
}

// PointValue 取出点在十字光标上显示的数值
func PointValue(p model.Point) float64 {
	switch v := p.(type) {
	case model.Bar:
		return v.Close
	case model.ValuePoint:
		return v.Value
	default:
		return 0
	}
}
