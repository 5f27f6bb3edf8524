package model

// Point 是所有序列元素的公共接口，BucketTime 为对齐后的秒级时间戳
type Point interface {
	Time() int64
}

// Tick 代表实时通道推送的最小粒度价格 (成交或报价快照)，只用于更新当前 K 线，不存储
type Tick struct {
	EpochMillis int64   // 毫秒时间戳
	Price       float64 // 价格
}

// Bar 代表一个时间桶内的 OHLC K 线
// 不变量：Low <= min(Open, Close) <= max(Open, Close) <= High
type Bar struct {
	BucketTime int64   `json:"time"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
}

func (b Bar) Time() int64 { return b.BucketTime }

// Valid 检查 OHLC 不变量
func (b Bar) Valid() bool {
	return b.Low <= b.Open && b.Open <= b.High && b.Low <= b.Close && b.Close <= b.High
}

// ValuePoint 用于非 OHLC 序列 (成交量、隐含波动率、成交量差值)
type ValuePoint struct {
	BucketTime int64   `json:"time"`
	Value      float64 `json:"value"`
	Color      string  `json:"color,omitempty"`
}

func (v ValuePoint) Time() int64 { return v.BucketTime }

// CandleRow 是后端快照接口和实时 candle 消息共用的一行数据
// Time 为未经时区修正的 epoch 秒
type CandleRow struct {
	Time                    int64   `json:"time" csv:"time" parquet:"time"`
	Open                    float64 `json:"open" csv:"open" parquet:"open"`
	High                    float64 `json:"high" csv:"high" parquet:"high"`
	Low                     float64 `json:"low" csv:"low" parquet:"low"`
	Close                   float64 `json:"close" csv:"close" parquet:"close"`
	TotalCallVolume         float64 `json:"total_call_volume" csv:"total_call_volume" parquet:"total_call_volume"`
	TotalPutVolume          float64 `json:"total_put_volume" csv:"total_put_volume" parquet:"total_put_volume"`
	CallVolumeDelta         float64 `json:"call_volume_delta" csv:"call_volume_delta" parquet:"call_volume_delta"`
	PutVolumeDelta          float64 `json:"put_volume_delta" csv:"put_volume_delta" parquet:"put_volume_delta"`
	OptionImpliedVolatility float64 `json:"option_implied_volatility" csv:"option_implied_volatility" parquet:"option_implied_volatility"`
}

// Bar 按给定的对齐后时间生成 OHLC
func (r CandleRow) Bar(bucketTime int64) Bar {
	return Bar{
		BucketTime: bucketTime,
		Open:       r.Open,
		High:       r.High,
		Low:        r.Low,
		Close:      r.Close,
	}
}

// TotalVolume 看涨 + 看跌期权总成交量
func (r CandleRow) TotalVolume() float64 {
	return r.TotalCallVolume + r.TotalPutVolume
}

// NetVolumeDelta 看涨与看跌成交量差值之差
func (r CandleRow) NetVolumeDelta() float64 {
	return r.CallVolumeDelta - r.PutVolumeDelta
}
