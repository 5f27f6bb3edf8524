package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-dashboard/internal/model"
)

func TestCandleAggregator_SeedThenTickOpensBar(t *testing.T) {
	agg := NewCandleAggregator("SPX", 60, 0)
	agg.Seed([]model.Bar{{BucketTime: 600, Open: 99, High: 100, Low: 98, Close: 100}})

	update := agg.OnTick(model.Tick{EpochMillis: 661_000, Price: 101})

	assert.Equal(t, UpdateOpened, update.Kind)
	assert.Nil(t, update.Finalized)
	assert.Equal(t, model.Bar{BucketTime: 660, Open: 100, High: 101, Low: 101, Close: 101}, update.Bar)

	st := agg.State()
	require.NotNil(t, st.OpenBar)
	assert.Equal(t, int64(660), st.OpenBar.BucketTime)
	assert.Equal(t, int64(600), st.LastCommittedBucketTime)
	assert.Equal(t, 100.0, st.LastClosePrice)
}

func TestCandleAggregator_FirstTickWithoutHistory(t *testing.T) {
	agg := NewCandleAggregator("SPX", 60, 0)

	update := agg.OnTick(model.Tick{EpochMillis: 61_500, Price: 42})

	assert.Equal(t, UpdateOpened, update.Kind)
	assert.Equal(t, model.Bar{BucketTime: 60, Open: 42, High: 42, Low: 42, Close: 42}, update.Bar)
}

func TestCandleAggregator_UpdateInPlace(t *testing.T) {
	agg := NewCandleAggregator("SPX", 60, 0)
	agg.OnTick(model.Tick{EpochMillis: 60_000, Price: 10})

	for _, price := range []float64{12, 9, 11} {
		update := agg.OnTick(model.Tick{EpochMillis: 90_000, Price: price})
		assert.Equal(t, UpdateInPlace, update.Kind)
	}

	st := agg.State()
	assert.Equal(t, model.Bar{BucketTime: 60, Open: 10, High: 12, Low: 9, Close: 11}, *st.OpenBar)
	assert.False(t, st.HasCommitted)
}

func TestCandleAggregator_FinalizesEachBucketInOrder(t *testing.T) {
	agg := NewCandleAggregator("SPX", 60, 0)

	var finalized []int64
	// 桶 60, 120, 300 (跳过 180 / 240)
	for _, ms := range []int64{60_000, 70_000, 120_000, 130_000, 300_000, 301_000} {
		update := agg.OnTick(model.Tick{EpochMillis: ms, Price: float64(ms) / 1000})
		if update.Finalized != nil {
			finalized = append(finalized, update.Finalized.BucketTime)
		}
	}

	// 空桶不会被补齐
	assert.Equal(t, []int64{60, 120}, finalized)
	assert.Equal(t, int64(300), agg.State().OpenBar.BucketTime)
	assert.Equal(t, int64(120), agg.State().LastCommittedBucketTime)
}

func TestCandleAggregator_NewBarOpensAtPreviousClose(t *testing.T) {
	agg := NewCandleAggregator("SPX", 60, 0)
	agg.OnTick(model.Tick{EpochMillis: 60_000, Price: 10})
	agg.OnTick(model.Tick{EpochMillis: 61_000, Price: 13})

	update := agg.OnTick(model.Tick{EpochMillis: 120_000, Price: 12})

	require.NotNil(t, update.Finalized)
	assert.Equal(t, 13.0, update.Finalized.Close)
	assert.Equal(t, 13.0, update.Bar.Open)
	assert.Equal(t, 13.0, agg.State().LastClosePrice)
}

func TestCandleAggregator_StaleTick(t *testing.T) {
	agg := NewCandleAggregator("SPX", 60, 0)
	agg.OnTick(model.Tick{EpochMillis: 120_000, Price: 10})
	before := agg.State()

	update := agg.OnTick(model.Tick{EpochMillis: 59_000, Price: 1})

	assert.Equal(t, UpdateStale, update.Kind)
	assert.Equal(t, before, agg.State())
}

func TestCandleAggregator_StaleTickBeforeSeed(t *testing.T) {
	agg := NewCandleAggregator("SPX", 60, 0)
	agg.Seed([]model.Bar{{BucketTime: 600, Open: 1, High: 1, Low: 1, Close: 1}})

	update := agg.OnTick(model.Tick{EpochMillis: 540_000, Price: 5})

	assert.Equal(t, UpdateStale, update.Kind)
	assert.Nil(t, agg.State().OpenBar)
}

func TestCandleAggregator_TickInSeededBucketContinuesBar(t *testing.T) {
	agg := NewCandleAggregator("SPX", 60, 0)
	agg.Seed([]model.Bar{{BucketTime: 600, Open: 99, High: 100, Low: 98, Close: 100}})

	update := agg.OnTick(model.Tick{EpochMillis: 630_000, Price: 103})

	assert.Equal(t, UpdateInPlace, update.Kind)
	assert.Equal(t, model.Bar{BucketTime: 600, Open: 99, High: 103, Low: 98, Close: 103}, update.Bar)
}

func TestCandleAggregator_TimezoneAlignment(t *testing.T) {
	agg := NewCandleAggregator("SPX", 60, 18_000)

	update := agg.OnTick(model.Tick{EpochMillis: 661_000, Price: 1})

	assert.Equal(t, int64(660-18_000), update.Bar.BucketTime)
}

func TestCandleAggregator_ServerCandleReplacesOpenBar(t *testing.T) {
	agg := NewCandleAggregator("SPX", 60, 0)
	agg.OnTick(model.Tick{EpochMillis: 60_000, Price: 10})
	agg.OnTick(model.Tick{EpochMillis: 61_000, Price: 11})

	server := model.Bar{BucketTime: 60, Open: 9, High: 15, Low: 8, Close: 14}
	update := agg.OnServerCandle(server)

	assert.Equal(t, UpdateReplaced, update.Kind)
	assert.Equal(t, server, update.Bar)
	st := agg.State()
	assert.Equal(t, server, *st.OpenBar)
	assert.Equal(t, 14.0, st.LastClosePrice)
	assert.Equal(t, int64(60), st.LastCommittedBucketTime)

	// 重复推送同一 candle 仍然是替换
	again := agg.OnServerCandle(server)
	assert.Equal(t, UpdateReplaced, again.Kind)
	assert.Equal(t, server, again.Bar)
}

func TestCandleAggregator_ServerCandleForNewBucket(t *testing.T) {
	agg := NewCandleAggregator("SPX", 60, 0)
	agg.OnTick(model.Tick{EpochMillis: 60_000, Price: 10})

	update := agg.OnServerCandle(model.Bar{BucketTime: 120, Open: 10, High: 12, Low: 10, Close: 11})

	assert.Equal(t, UpdateOpened, update.Kind)
	require.NotNil(t, update.Finalized)
	assert.Equal(t, int64(60), update.Finalized.BucketTime)

	// 更早的 candle 不改写历史
	stale := agg.OnServerCandle(model.Bar{BucketTime: 60, Open: 1, High: 1, Low: 1, Close: 1})
	assert.Equal(t, UpdateStale, stale.Kind)
}

func TestCandleAggregator_ServerCandleOnSeededBucket(t *testing.T) {
	agg := NewCandleAggregator("SPX", 60, 0)
	agg.Seed([]model.Bar{{BucketTime: 600, Open: 1, High: 2, Low: 1, Close: 2}})

	update := agg.OnServerCandle(model.Bar{BucketTime: 600, Open: 1, High: 3, Low: 1, Close: 3})
	assert.Equal(t, UpdateReplaced, update.Kind)

	next := agg.OnTick(model.Tick{EpochMillis: 660_000, Price: 4})
	assert.Equal(t, UpdateOpened, next.Kind)
	assert.Equal(t, 3.0, next.Bar.Open)
}

func TestCandleAggregator_BarInvariant(t *testing.T) {
	prices := []float64{100, 101.5, 99.2, 100.1, 98, 104, 103, 97.5, 99, 100}

	t.Run("high and low always bound close", func(t *testing.T) {
		agg := NewCandleAggregator("SPX", 60, 0)
		for i, price := range prices {
			update := agg.OnTick(model.Tick{EpochMillis: int64(i) * 25_000, Price: price})
			bar := update.Bar
			assert.LessOrEqual(t, bar.Low, bar.Close)
			assert.LessOrEqual(t, bar.Close, bar.High)
		}
	})

	t.Run("open in range keeps full OHLC invariant", func(t *testing.T) {
		agg := NewCandleAggregator("SPX", 60, 0, WithOpenInRange())
		for i, price := range prices {
			update := agg.OnTick(model.Tick{EpochMillis: int64(i) * 25_000, Price: price})
			assert.True(t, update.Bar.Valid(), "bar %+v", update.Bar)
			if update.Finalized != nil {
				assert.True(t, update.Finalized.Valid(), "finalized %+v", *update.Finalized)
			}
		}
	})

	t.Run("server candle is normalized", func(t *testing.T) {
		agg := NewCandleAggregator("SPX", 60, 0)
		update := agg.OnServerCandle(model.Bar{BucketTime: 60, Open: 10, High: 9, Low: 11, Close: 10.5})
		assert.True(t, update.Bar.Valid())
	})
}

func TestUpdateKind_String(t *testing.T) {
	assert.Equal(t, "opened", UpdateOpened.String())
	assert.Equal(t, "in_place", UpdateInPlace.String())
	assert.Equal(t, "replaced", UpdateReplaced.String())
	assert.Equal(t, "stale", UpdateStale.String())
}
