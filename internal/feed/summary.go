package feed

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"market-dashboard/internal/model"
)

// Summary 一组成交的汇总统计
type Summary struct {
	Count          int
	Calls          int
	Puts           int
	Bullish        int
	Bearish        int
	TotalCost      float64
	MedianQuantity float64
	P90Cost        float64
}

// Summarize 空输入返回零值
func Summarize(trades []model.OptionTrade) (Summary, error) {
	s := Summary{Count: len(trades)}
	if len(trades) == 0 {
		return s, nil
	}

	quantities := make(stats.Float64Data, 0, len(trades))
	costs := make(stats.Float64Data, 0, len(trades))
	for _, t := range trades {
		switch {
		case t.IsCall():
			s.Calls++
		case t.IsPut():
			s.Puts++
		}
		switch Classify(t).Sentiment {
		case Bullish:
			s.Bullish++
		case Bearish:
			s.Bearish++
		}
		quantities = append(quantities, float64(t.Quantity))
		costs = append(costs, t.TotalCost)
	}

	var err error
	if s.TotalCost, err = stats.Sum(costs); err != nil {
		return Summary{}, fmt.Errorf("failed to calculate total cost: %w", err)
	}
	if s.MedianQuantity, err = stats.Median(quantities); err != nil {
		return Summary{}, fmt.Errorf("failed to calculate median quantity: %w", err)
	}
	if s.P90Cost, err = stats.Percentile(costs, 90); err != nil {
		return Summary{}, fmt.Errorf("failed to calculate cost percentile: %w", err)
	}
	return s, nil
}

func (s Summary) String() string {
	return fmt.Sprintf("%d trades (%d calls / %d puts, %d bullish / %d bearish), total $%.2f, median qty %.1f, p90 cost $%.2f",
		s.Count, s.Calls, s.Puts, s.Bullish, s.Bearish, s.TotalCost, s.MedianQuantity, s.P90Cost)
}
