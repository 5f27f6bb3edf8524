package ta

import (
	"github.com/markcheno/go-talib"

	"market-dashboard/internal/model"
)

// maxHistory 计算均线时保留的最大收盘价数量
const maxHistory = 500

// SMAOverlay 在价格面板上叠加简单移动平均线
// 输入与价格序列保持同样的追加 / 替换最后一根的节奏，输出同样遵守该约定
type SMAOverlay struct {
	Period int
	Color  string

	times  []int64
	closes []float64
}

// NewSMAOverlay period <= 1 时返回 nil (不绘制均线)
func NewSMAOverlay(period int) *SMAOverlay {
	if period <= 1 {
		return nil
	}
	return &SMAOverlay{
		Period: period,
		Color:  "#f5c542",
		times:  make([]int64, 0, maxHistory),
		closes: make([]float64, 0, maxHistory),
	}
}

// Seed 用历史 K 线计算完整的均线序列
// 历史不足 Period 根时返回空序列
func (o *SMAOverlay) Seed(bars []model.Bar) []model.ValuePoint {
	if len(bars) > maxHistory {
		bars = bars[len(bars)-maxHistory:]
	}
	o.times = o.times[:0]
	o.closes = o.closes[:0]
	for _, b := range bars {
		o.times = append(o.times, b.BucketTime)
		o.closes = append(o.closes, b.Close)
	}

	if len(o.closes) < o.Period {
		return nil
	}

	sma := talib.Sma(o.closes, o.Period)
	// talib 在回看期内输出 0，从第 Period 根开始才是有效值
	out := make([]model.ValuePoint, 0, len(sma)-o.Period+1)
	for i := o.Period - 1; i < len(sma); i++ {
		out = append(out, model.ValuePoint{BucketTime: o.times[i], Value: sma[i], Color: o.Color})
	}
	return out
}

// Update 处理价格序列的一次变更 (新 K 线或替换最后一根)
// 返回最新的均线点；历史不足时 ok 为 false
func (o *SMAOverlay) Update(bar model.Bar) (model.ValuePoint, bool) {
	n := len(o.times)
	switch {
	case n > 0 && o.times[n-1] == bar.BucketTime:
		o.closes[n-1] = bar.Close
	case n > 0 && bar.BucketTime < o.times[n-1]:
		return model.ValuePoint{}, false
	default:
		o.times = append(o.times, bar.BucketTime)
		o.closes = append(o.closes, bar.Close)
		if len(o.closes) > maxHistory {
			o.times = o.times[1:]
			o.closes = o.closes[1:]
		}
	}

	if len(o.closes) < o.Period {
		return model.ValuePoint{}, false
	}

	window := o.closes[len(o.closes)-o.Period:]
	sma := talib.Sma(window, o.Period)
	return model.ValuePoint{
		BucketTime: bar.BucketTime,
		Value:      sma[len(sma)-1],
		Color:      o.Color,
	}, true
}
