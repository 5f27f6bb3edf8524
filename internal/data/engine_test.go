package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-dashboard/internal/model"
)

type pushed struct {
	key   string
	point model.Point
}

type recordingSink struct {
	pushes []pushed
}

func (s *recordingSink) Push(key string, p model.Point) {
	s.pushes = append(s.pushes, pushed{key, p})
}

func (s *recordingSink) keys() []string {
	out := make([]string, 0, len(s.pushes))
	for _, p := range s.pushes {
		out = append(out, p.key)
	}
	return out
}

func snapshotRows() []model.CandleRow {
	return []model.CandleRow{
		{Time: 18_540, Open: 98, High: 99, Low: 97, Close: 99, TotalCallVolume: 10, TotalPutVolume: 5, CallVolumeDelta: 3, PutVolumeDelta: 1, OptionImpliedVolatility: 0.21},
		{Time: 18_600, Open: 99, High: 100, Low: 98, Close: 100, TotalCallVolume: 4, TotalPutVolume: 6, CallVolumeDelta: 1, PutVolumeDelta: 2, OptionImpliedVolatility: 0.22},
	}
}

func newTestEngine(sink Sink) *DataEngine {
	return NewDataEngine("SPX", EngineConfig{Granularity: 60, TZOffset: 18_000}, sink)
}

func underlyingTick(symbol string, ms int64, price float64) model.Message {
	return model.Message{
		Type: model.MessageTypeUnderlying,
		Underlying: &model.UnderlyingPayload{
			Symbol: symbol,
			Tick:   &model.TickDTO{Time: ms, Price: price},
		},
	}
}

func underlyingCandle(symbol string, row model.CandleRow) model.Message {
	return model.Message{
		Type: model.MessageTypeUnderlying,
		Underlying: &model.UnderlyingPayload{
			Symbol: symbol,
			Candle: &row,
		},
	}
}

func TestDataEngine_Seed(t *testing.T) {
	de := newTestEngine(nil)

	require.NoError(t, de.Seed(snapshotRows()))

	bars := de.Price.Points()
	require.Len(t, bars, 2)
	assert.Equal(t, int64(540), bars[0].BucketTime)
	assert.Equal(t, int64(600), bars[1].BucketTime)

	vol := de.Volume.Points()
	assert.Equal(t, model.ValuePoint{BucketTime: 540, Value: 15, Color: ColorVolume}, vol[0])

	deltas := de.VolumeDelta.Points()
	assert.Equal(t, 2.0, deltas[0].Value)
	assert.Equal(t, ColorPositive, deltas[0].Color)
	assert.Equal(t, -1.0, deltas[1].Value)
	assert.Equal(t, ColorNegative, deltas[1].Color)

	assert.Equal(t, 0.22, de.IV.Points()[1].Value)

	st := de.Aggregator().State()
	assert.Equal(t, int64(600), st.LastCommittedBucketTime)
	assert.Equal(t, 100.0, st.LastClosePrice)
}

func TestDataEngine_SeedSkipsOutOfOrderRows(t *testing.T) {
	de := newTestEngine(nil)
	rows := snapshotRows()
	rows = append(rows, model.CandleRow{Time: 18_000, Open: 1, High: 1, Low: 1, Close: 1})
	rows = append(rows, model.CandleRow{Time: 18_610, Open: 5, High: 5, Low: 5, Close: 5})

	require.NoError(t, de.Seed(rows))

	bars := de.Price.Points()
	require.Len(t, bars, 2)
	// 同一分钟的后一行覆盖前一行
	assert.Equal(t, 5.0, bars[1].Close)
}

func TestDataEngine_TickFlow(t *testing.T) {
	sink := &recordingSink{}
	de := newTestEngine(sink)
	require.NoError(t, de.Seed(snapshotRows()))

	// 18_661s -> 660 after the 18_000s offset
	de.HandleMessage(underlyingTick("SPX", 18_661_000, 101))

	require.Equal(t, 3, de.Price.Len())
	last, _ := de.Price.Last()
	assert.Equal(t, model.Bar{BucketTime: 660, Open: 100, High: 101, Low: 101, Close: 101}, last)
	assert.Equal(t, []string{SeriesPrice}, sink.keys())

	de.HandleMessage(underlyingTick("SPX", 18_700_000, 102))
	last, _ = de.Price.Last()
	assert.Equal(t, 3, de.Price.Len())
	assert.Equal(t, 102.0, last.High)
	assert.Len(t, sink.pushes, 2)
}

func TestDataEngine_IgnoresOtherMessages(t *testing.T) {
	sink := &recordingSink{}
	de := newTestEngine(sink)
	require.NoError(t, de.Seed(snapshotRows()))

	de.HandleMessage(underlyingTick("NDX", 18_661_000, 101))
	de.HandleMessage(model.Message{Type: "news"})
	de.HandleMessage(model.Message{Type: model.MessageTypeUnderlying})

	assert.Equal(t, 2, de.Price.Len())
	assert.Empty(t, sink.pushes)
}

func TestDataEngine_StaleTickDoesNotMutate(t *testing.T) {
	sink := &recordingSink{}
	de := newTestEngine(sink)
	require.NoError(t, de.Seed(snapshotRows()))
	de.HandleMessage(underlyingTick("SPX", 18_661_000, 101))
	before := de.Price.Points()
	sink.pushes = nil

	update := de.HandleTick(model.Tick{EpochMillis: 18_550_000, Price: 50})

	assert.Equal(t, UpdateStale, update.Kind)
	assert.Equal(t, before, de.Price.Points())
	assert.Empty(t, sink.pushes)
}

func TestDataEngine_ServerCandleIsIdempotent(t *testing.T) {
	sink := &recordingSink{}
	de := newTestEngine(sink)
	require.NoError(t, de.Seed(snapshotRows()))
	de.HandleMessage(underlyingTick("SPX", 18_661_000, 101))

	row := model.CandleRow{Time: 18_660, Open: 100, High: 103, Low: 99, Close: 102, TotalCallVolume: 7, TotalPutVolume: 1, CallVolumeDelta: 2, PutVolumeDelta: 0, OptionImpliedVolatility: 0.25}
	de.HandleMessage(underlyingCandle("SPX", row))

	lastBar, _ := de.Price.Last()
	lastVol, _ := de.Volume.Last()
	assert.Equal(t, 3, de.Price.Len())
	assert.Equal(t, model.Bar{BucketTime: 660, Open: 100, High: 103, Low: 99, Close: 102}, lastBar)
	assert.Equal(t, 3, de.Volume.Len())
	assert.Equal(t, 8.0, lastVol.Value)

	de.HandleMessage(underlyingCandle("SPX", row))

	again, _ := de.Price.Last()
	assert.Equal(t, lastBar, again)
	assert.Equal(t, 3, de.Price.Len())
	assert.Equal(t, 3, de.Volume.Len())
	assert.Equal(t, 3, de.IV.Len())
}

func TestDataEngine_SMAOverlay(t *testing.T) {
	de := NewDataEngine("SPX", EngineConfig{Granularity: 60, SMAPeriod: 2}, nil)
	require.NoError(t, de.Seed([]model.CandleRow{
		{Time: 60, Open: 1, High: 1, Low: 1, Close: 1},
		{Time: 120, Open: 3, High: 3, Low: 3, Close: 3},
	}))

	sma := de.SMA.Points()
	require.Len(t, sma, 1)
	assert.InDelta(t, 2.0, sma[0].Value, 1e-9)

	de.HandleTick(model.Tick{EpochMillis: 180_000, Price: 5})
	sma = de.SMA.Points()
	require.Len(t, sma, 2)
	assert.Equal(t, int64(180), sma[1].BucketTime)
	assert.InDelta(t, 4.0, sma[1].Value, 1e-9)

	de.HandleTick(model.Tick{EpochMillis: 190_000, Price: 7})
	sma = de.SMA.Points()
	require.Len(t, sma, 2)
	assert.InDelta(t, 5.0, sma[1].Value, 1e-9)
}
