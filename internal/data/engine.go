package data

import (
	"go.uber.org/zap"

	"market-dashboard/internal/model"
	"market-dashboard/internal/service"
	"market-dashboard/pkg/ta"
	"market-dashboard/pkg/timegrid"
)

// 序列名称，与图表面板上的 series key 一一对应
const (
	SeriesPrice       = "price"
	SeriesSMA         = "sma"
	SeriesVolume      = "volume"
	SeriesCallVolume  = "call_volume"
	SeriesPutVolume   = "put_volume"
	SeriesVolumeDelta = "volume_delta"
	SeriesIV          = "iv"
)

// 成交量柱颜色
const (
	ColorVolume   = "blue"
	ColorCall     = "#26a69a"
	ColorPut      = "#ef5350"
	ColorPositive = "green"
	ColorNegative = "red"
)

// Sink 接收每一次序列变更，对应图表引擎的 update(singlePoint)
type Sink interface {
	Push(key string, p model.Point)
}

// EngineConfig DataEngine 的参数
type EngineConfig struct {
	Granularity int64 // 秒
	TZOffset    int64 // 秒，西区为正
	SMAPeriod   int
	OpenInRange bool
}

// DataEngine 负责单个标的：接收实时消息，聚合 K 线，写入各序列并通知 Sink
// 所有方法只应由一个消息处理路径调用
type DataEngine struct {
	symbol     string
	cfg        EngineConfig
	aggregator *CandleAggregator
	overlay    *ta.SMAOverlay
	sink       Sink
	logger     *zap.Logger

	Price       *Store[model.Bar]
	SMA         *Store[model.ValuePoint]
	Volume      *Store[model.ValuePoint]
	CallVolume  *Store[model.ValuePoint]
	PutVolume   *Store[model.ValuePoint]
	VolumeDelta *Store[model.ValuePoint]
	IV          *Store[model.ValuePoint]
}

// NewDataEngine 创建并初始化 DataEngine
func NewDataEngine(symbol string, cfg EngineConfig, sink Sink) *DataEngine {
	if cfg.Granularity <= 0 {
		cfg.Granularity = timegrid.DefaultGranularity
	}

	var opts []AggregatorOption
	if cfg.OpenInRange {
		opts = append(opts, WithOpenInRange())
	}

	return &DataEngine{
		symbol:      symbol,
		cfg:         cfg,
		aggregator:  NewCandleAggregator(symbol, cfg.Granularity, cfg.TZOffset, opts...),
		overlay:     ta.NewSMAOverlay(cfg.SMAPeriod),
		sink:        sink,
		logger:      service.Logger.With(zap.String("Symbol", symbol)),
		Price:       NewStore[model.Bar](SeriesPrice),
		SMA:         NewStore[model.ValuePoint](SeriesSMA),
		Volume:      NewStore[model.ValuePoint](SeriesVolume),
		CallVolume:  NewStore[model.ValuePoint](SeriesCallVolume),
		PutVolume:   NewStore[model.ValuePoint](SeriesPutVolume),
		VolumeDelta: NewStore[model.ValuePoint](SeriesVolumeDelta),
		IV:          NewStore[model.ValuePoint](SeriesIV),
	}
}

func (de *DataEngine) Symbol() string { return de.symbol }

// Aggregator 返回内部聚合器 (只读使用)
func (de *DataEngine) Aggregator() *CandleAggregator { return de.aggregator }

// Source 是图表面板读取序列的只读视图
type Source interface {
	Snapshot() []model.Point
	NearestPoint(bucketTime int64) (model.Point, bool)
}

// Sources 返回每个序列名对应的存储，供图表面板初始化
func (de *DataEngine) Sources() map[string]Source {
	return map[string]Source{
		SeriesPrice:       de.Price,
		SeriesSMA:         de.SMA,
		SeriesVolume:      de.Volume,
		SeriesCallVolume:  de.CallVolume,
		SeriesPutVolume:   de.PutVolume,
		SeriesVolumeDelta: de.VolumeDelta,
		SeriesIV:          de.IV,
	}
}

// Align 把后端 epoch 秒对齐到图表时间
func (de *DataEngine) Align(epochSeconds int64) int64 {
	return timegrid.AlignSeconds(epochSeconds, de.cfg.Granularity, de.cfg.TZOffset)
}

// Seed 使用历史快照初始化全部序列
// 快照行的 time 减去时区偏移后写入；同桶重复的行以后到的为准
func (de *DataEngine) Seed(rows []model.CandleRow) error {
	bars := make([]model.Bar, 0, len(rows))
	volume := make([]model.ValuePoint, 0, len(rows))
	calls := make([]model.ValuePoint, 0, len(rows))
	puts := make([]model.ValuePoint, 0, len(rows))
	deltas := make([]model.ValuePoint, 0, len(rows))
	ivs := make([]model.ValuePoint, 0, len(rows))

	for _, row := range rows {
		t := de.Align(row.Time)
		if n := len(bars); n > 0 && t <= bars[n-1].BucketTime {
			if t < bars[n-1].BucketTime {
				de.logger.Warn("Snapshot row out of order, skipped", zap.Int64("Time", row.Time))
				continue
			}
			// 同桶：覆盖最后一行
			bars, volume, calls, puts, deltas, ivs = bars[:n-1], volume[:n-1], calls[:n-1], puts[:n-1], deltas[:n-1], ivs[:n-1]
		}

		bars = append(bars, row.Bar(t))
		volume = append(volume, volumePoint(t, row))
		calls = append(calls, model.ValuePoint{BucketTime: t, Value: row.TotalCallVolume, Color: ColorCall})
		puts = append(puts, model.ValuePoint{BucketTime: t, Value: row.TotalPutVolume, Color: ColorPut})
		deltas = append(deltas, deltaPoint(t, row))
		ivs = append(ivs, model.ValuePoint{BucketTime: t, Value: row.OptionImpliedVolatility})
	}

	if err := de.Price.SetData(bars); err != nil {
		return err
	}
	for store, points := range map[*Store[model.ValuePoint]][]model.ValuePoint{
		de.Volume:      volume,
		de.CallVolume:  calls,
		de.PutVolume:   puts,
		de.VolumeDelta: deltas,
		de.IV:          ivs,
	} {
		if err := store.SetData(points); err != nil {
			return err
		}
	}

	if de.overlay != nil {
		if err := de.SMA.SetData(de.overlay.Seed(bars)); err != nil {
			return err
		}
	}

	de.aggregator.Seed(bars)
	de.logger.Info("Data Engine seeded", zap.Int("Bars", len(bars)))
	return nil
}

// Accepts 判断消息是否属于本引擎，用作实时通道订阅的 predicate
func (de *DataEngine) Accepts(msg model.Message) bool {
	return msg.Type == model.MessageTypeUnderlying && msg.Symbol() == de.symbol
}

// HandleMessage 处理一条实时消息：tick -> OnTick, candle -> OnServerCandle
// 未识别的类型直接忽略
func (de *DataEngine) HandleMessage(msg model.Message) {
	if !de.Accepts(msg) {
		return
	}

	payload := msg.Underlying
	if payload.Tick != nil {
		de.HandleTick(payload.Tick.Tick())
	}
	if payload.Candle != nil {
		de.HandleCandle(*payload.Candle)
	}
}

// HandleTick 把 tick 折叠进当前 K 线并写入价格序列
func (de *DataEngine) HandleTick(tick model.Tick) BarUpdate {
	update := de.aggregator.OnTick(tick)
	if update.Kind == UpdateStale {
		de.logger.Debug("Stale tick ignored", zap.Int64("TS", tick.EpochMillis))
		return update
	}
	de.applyBar(update)
	return update
}

// HandleCandle 服务端聚合 K 线覆盖 tick 聚合，并更新成交量 / IV 序列
func (de *DataEngine) HandleCandle(row model.CandleRow) BarUpdate {
	t := de.Align(row.Time)
	update := de.aggregator.OnServerCandle(row.Bar(t))
	if update.Kind == UpdateStale {
		de.logger.Debug("Stale server candle ignored", zap.Int64("Time", row.Time))
		return update
	}

	de.applyBar(update)
	de.upsert(de.Volume, volumePoint(t, row))
	de.upsert(de.CallVolume, model.ValuePoint{BucketTime: t, Value: row.TotalCallVolume, Color: ColorCall})
	de.upsert(de.PutVolume, model.ValuePoint{BucketTime: t, Value: row.TotalPutVolume, Color: ColorPut})
	de.upsert(de.VolumeDelta, deltaPoint(t, row))
	de.upsert(de.IV, model.ValuePoint{BucketTime: t, Value: row.OptionImpliedVolatility})
	return update
}

func (de *DataEngine) applyBar(update BarUpdate) {
	var err error
	switch update.Kind {
	case UpdateOpened:
		if update.Finalized != nil {
			// 已完成的 K 线此前一直是最后一个元素，这里再确认一次最终值
			if err = de.Price.UpdateLast(*update.Finalized); err != nil {
				de.contractViolation(SeriesPrice, err)
			}
		}
		err = de.Price.Append(update.Bar)
	case UpdateInPlace, UpdateReplaced:
		err = de.Price.UpdateLast(update.Bar)
	}
	if err != nil {
		de.contractViolation(SeriesPrice, err)
		return
	}
	de.push(SeriesPrice, update.Bar)

	if de.overlay != nil {
		if point, ok := de.overlay.Update(update.Bar); ok {
			de.upsert(de.SMA, point)
		}
	}
}

func (de *DataEngine) upsert(store *Store[model.ValuePoint], p model.ValuePoint) {
	if err := store.Upsert(p); err != nil {
		de.contractViolation(store.Name(), err)
		return
	}
	de.push(store.Name(), p)
}

func (de *DataEngine) push(key string, p model.Point) {
	if de.sink != nil {
		de.sink.Push(key, p)
	}
}

// contractViolation 开发环境直接 panic，生产环境只记录日志
func (de *DataEngine) contractViolation(series string, err error) {
	de.logger.DPanic("Series contract violation", zap.String("Series", series), zap.Error(err))
}

func volumePoint(t int64, row model.CandleRow) model.ValuePoint {
	return model.ValuePoint{BucketTime: t, Value: row.TotalVolume(), Color: ColorVolume}
}

func deltaPoint(t int64, row model.CandleRow) model.ValuePoint {
	color := ColorPositive
	if row.NetVolumeDelta() < 0 {
		color = ColorNegative
	}
	return model.ValuePoint{BucketTime: t, Value: row.NetVolumeDelta(), Color: color}
}
