package data

import (
	"math"

	"market-dashboard/internal/model"
	"market-dashboard/pkg/timegrid"
)

// UpdateKind 描述一次 tick / candle 对当前 K 线的影响
type UpdateKind int

const (
	UpdateStale    UpdateKind = iota // 过期数据，已忽略
	UpdateOpened                     // 新桶开始，开启新的 K 线
	UpdateInPlace                    // 同桶内原地更新
	UpdateReplaced                   // 服务端 candle 整体替换当前 K 线
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateOpened:
		return "opened"
	case UpdateInPlace:
		return "in_place"
	case UpdateReplaced:
		return "replaced"
	default:
		return "stale"
	}
}

// BarUpdate 是聚合器每次处理后的结果
// Finalized 非空时表示上一根 K 线在本次更新中完成
type BarUpdate struct {
	Kind      UpdateKind
	Bar       model.Bar
	Finalized *model.Bar
}

// SessionState 是单个标的在一个图表会话中的聚合状态
type SessionState struct {
	LastClosePrice          float64
	HasLastClose            bool
	OpenBar                 *model.Bar
	LastCommittedBucketTime int64
	HasCommitted            bool
}

// CandleAggregator 负责把 Tick 流折叠为按固定网格对齐的 K 线
// 只会修改最后一根 K 线或追加新的 K 线，不会改写历史
// 非并发安全：由唯一的消息处理路径调用
type CandleAggregator struct {
	Symbol      string
	granularity int64
	tzOffset    int64

	state SessionState
	// 种子数据的最后一根 K 线，同桶 tick 到来时在其基础上继续聚合
	seeded *model.Bar
	// 为 true 时新 K 线的 High/Low 包含沿用的开盘价
	openInRange bool
}

// AggregatorOption 配置 CandleAggregator
type AggregatorOption func(*CandleAggregator)

// WithOpenInRange 让新 K 线的 High/Low 覆盖沿用自上一根收盘价的 Open，
// 保证 Low <= Open <= High 始终成立
func WithOpenInRange() AggregatorOption {
	return func(agg *CandleAggregator) { agg.openInRange = true }
}

// NewCandleAggregator 创建一个新的聚合器
func NewCandleAggregator(symbol string, granularitySeconds, tzOffsetSeconds int64, opts ...AggregatorOption) *CandleAggregator {
	if granularitySeconds <= 0 {
		granularitySeconds = timegrid.DefaultGranularity
	}
	agg := &CandleAggregator{
		Symbol:      symbol,
		granularity: granularitySeconds,
		tzOffset:    tzOffsetSeconds,
	}
	for _, opt := range opts {
		opt(agg)
	}
	return agg
}

// Seed 使用历史快照初始化状态，不修改传入的序列
func (agg *CandleAggregator) Seed(historical []model.Bar) {
	agg.state = SessionState{}
	agg.seeded = nil
	if len(historical) == 0 {
		return
	}

	last := historical[len(historical)-1]
	agg.seeded = &last
	agg.state.LastClosePrice = last.Close
	agg.state.HasLastClose = true
	agg.state.LastCommittedBucketTime = last.BucketTime
	agg.state.HasCommitted = true
}

// State 返回当前状态的副本
func (agg *CandleAggregator) State() SessionState {
	st := agg.state
	if st.OpenBar != nil {
		bar := *st.OpenBar
		st.OpenBar = &bar
	}
	return st
}

// OnTick 把一个 tick 折叠进当前 K 线
func (agg *CandleAggregator) OnTick(tick model.Tick) BarUpdate {
	bucket := timegrid.BucketOf(tick.EpochMillis, agg.granularity, agg.tzOffset)
	open := agg.state.OpenBar

	if open == nil {
		switch {
		case agg.state.HasCommitted && bucket < agg.state.LastCommittedBucketTime:
			return BarUpdate{Kind: UpdateStale}
		case agg.seeded != nil && bucket == agg.seeded.BucketTime:
			// 快照的最后一根 K 线仍在形成中，在其基础上继续更新
			reopened := *agg.seeded
			agg.state.OpenBar = &reopened
			return agg.fold(tick.Price)
		}
		return agg.openBar(bucket, tick.Price, nil)
	}

	switch {
	case bucket > open.BucketTime:
		// 上一根 K 线完成
		finalized := agg.commit()
		return agg.openBar(bucket, tick.Price, &finalized)
	case bucket == open.BucketTime:
		return agg.fold(tick.Price)
	default:
		// 乱序 / 迟到的 tick，不改写历史
		return BarUpdate{Kind: UpdateStale}
	}
}

// OnServerCandle 服务端推送的聚合 K 线无条件覆盖同桶的 tick 聚合结果
// candle.BucketTime 必须已经对齐
func (agg *CandleAggregator) OnServerCandle(candle model.Bar) BarUpdate {
	open := agg.state.OpenBar

	var finalized *model.Bar
	kind := UpdateReplaced

	switch {
	case open != nil && candle.BucketTime < open.BucketTime:
		return BarUpdate{Kind: UpdateStale}
	case open == nil && agg.state.HasCommitted && candle.BucketTime < agg.state.LastCommittedBucketTime:
		return BarUpdate{Kind: UpdateStale}
	case open != nil && candle.BucketTime > open.BucketTime:
		f := agg.commit()
		finalized = &f
		kind = UpdateOpened
	case open == nil && !(agg.state.HasCommitted && candle.BucketTime == agg.state.LastCommittedBucketTime):
		kind = UpdateOpened
	}

	bar := normalize(candle)
	agg.state.OpenBar = &bar
	agg.state.LastClosePrice = bar.Close
	agg.state.HasLastClose = true
	agg.state.LastCommittedBucketTime = bar.BucketTime
	agg.state.HasCommitted = true
	agg.seeded = nil

	return BarUpdate{Kind: kind, Bar: bar, Finalized: finalized}
}

// commit 完成当前 K 线，返回其副本
func (agg *CandleAggregator) commit() model.Bar {
	finalized := *agg.state.OpenBar
	agg.state.LastClosePrice = finalized.Close
	agg.state.HasLastClose = true
	agg.state.LastCommittedBucketTime = finalized.BucketTime
	agg.state.HasCommitted = true
	return finalized
}

// openBar 新 K 线的开盘价取上一根 K 线的收盘价，没有时取 tick 价格
func (agg *CandleAggregator) openBar(bucket int64, price float64, finalized *model.Bar) BarUpdate {
	open := price
	if agg.state.HasLastClose {
		open = agg.state.LastClosePrice
	}

	bar := model.Bar{
		BucketTime: bucket,
		Open:       open,
		High:       price,
		Low:        price,
		Close:      price,
	}
	if agg.openInRange {
		bar = normalize(bar)
	}
	agg.state.OpenBar = &bar
	agg.seeded = nil
	return BarUpdate{Kind: UpdateOpened, Bar: bar, Finalized: finalized}
}

func (agg *CandleAggregator) fold(price float64) BarUpdate {
	bar := agg.state.OpenBar
	bar.Close = price
	bar.High = math.Max(bar.High, price)
	bar.Low = math.Min(bar.Low, price)
	return BarUpdate{Kind: UpdateInPlace, Bar: *bar}
}

// normalize 保证 High/Low 包住 Open/Close
func normalize(b model.Bar) model.Bar {
	b.High = math.Max(b.High, math.Max(b.Open, b.Close))
	b.Low = math.Min(b.Low, math.Min(b.Open, b.Close))
	return b
}
