package feed

import (
	"strconv"

	"market-dashboard/internal/model"
)

// TradedAt 成交价相对买卖盘的位置
type TradedAt string

const (
	AboveAsk TradedAt = "Above Ask"
	AtAsk    TradedAt = "At Ask"
	AtBid    TradedAt = "At Bid"
	BelowBid TradedAt = "Below Bid"
	Mid      TradedAt = "Mid"
)

type Sentiment string

const (
	Bullish Sentiment = "bullish"
	Bearish Sentiment = "bearish"
	Neutral Sentiment = "neutral"
)

// Classification 单笔成交的展示信息
type Classification struct {
	TradedAt  TradedAt
	Sentiment Sentiment
	Moneyness string // ITM / OTM
	Spread    string // bid-ask，负的 bid 按 0 显示
}

// Classify 按顺序判断 Above Ask、At Ask、At Bid、Below Bid，其余为 Mid
func Classify(t model.OptionTrade) Classification {
	var at TradedAt
	switch {
	case t.Price > t.CurrentAsk:
		at = AboveAsk
	case t.Price == t.CurrentAsk:
		at = AtAsk
	case t.Price == t.CurrentBid:
		at = AtBid
	case t.Price < t.CurrentBid:
		at = BelowBid
	default:
		at = Mid
	}

	bid := t.CurrentBid
	if bid < 0 {
		bid = 0
	}

	moneyness := "OTM"
	if t.InTheMoney() {
		moneyness = "ITM"
	}

	return Classification{
		TradedAt:  at,
		Sentiment: sentimentOf(t, at),
		Moneyness: moneyness,
		Spread:    formatNumber(bid) + "-" + formatNumber(t.CurrentAsk),
	}
}

// 买入 put / 卖出 call 偏空，反之偏多
func sentimentOf(t model.OptionTrade, at TradedAt) Sentiment {
	bought := at == AboveAsk || at == AtAsk
	sold := at == BelowBid || at == AtBid

	switch {
	case t.IsPut() && bought, t.IsCall() && sold:
		return Bearish
	case t.IsPut() && sold, t.IsCall() && bought:
		return Bullish
	default:
		return Neutral
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
