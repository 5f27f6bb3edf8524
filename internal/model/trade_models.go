package model

import "strings"

// 期权方向
const (
	RightCall = "C"
	RightPut  = "P"
)

// OptionTrade 是实时成交流中的一笔期权成交
type OptionTrade struct {
	ID         int     `json:"id"`
	Timestamp  int64   `json:"timestamp"` // 毫秒时间戳
	Strike     float64 `json:"strike"`
	Right      string  `json:"right"` // C 或 P
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	CurrentBid float64 `json:"current_bid"`
	CurrentAsk float64 `json:"current_ask"`
	CurrentRTM string  `json:"current_rtm"` // 相对行权价描述，如 "3 ITM"
	TotalCost  float64 `json:"total_cost"`
}

func (t OptionTrade) IsCall() bool { return strings.EqualFold(t.Right, RightCall) }

func (t OptionTrade) IsPut() bool { return strings.EqualFold(t.Right, RightPut) }

// InTheMoney 后端在 current_rtm 中标注 ITM / OTM
func (t OptionTrade) InTheMoney() bool {
	return strings.Contains(t.CurrentRTM, "ITM")
}
