package model

// 实时通道消息类型
const (
	MessageTypeUnderlying = "underlying"
)

// Message 是实时通道的 JSON 信封
// {type: "underlying", underlying: {symbol, tick?, candle?}}
type Message struct {
	Type       string             `json:"type"`
	Underlying *UnderlyingPayload `json:"underlying,omitempty"`
}

type UnderlyingPayload struct {
	Symbol string     `json:"symbol"`
	Tick   *TickDTO   `json:"tick,omitempty"`
	Candle *CandleRow `json:"candle,omitempty"`
}

// TickDTO 对应消息中的 tick 字段，time 为毫秒
type TickDTO struct {
	Time  int64   `json:"time"`
	Price float64 `json:"price"`
}

func (t TickDTO) Tick() Tick {
	return Tick{EpochMillis: t.Time, Price: t.Price}
}

// Symbol 返回 underlying 消息的标的，其它类型返回空
func (m Message) Symbol() string {
	if m.Underlying == nil {
		return ""
	}
	return m.Underlying.Symbol
}
