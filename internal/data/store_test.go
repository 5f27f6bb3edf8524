package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-dashboard/internal/model"
)

func vp(t int64, v float64) model.ValuePoint {
	return model.ValuePoint{BucketTime: t, Value: v}
}

func TestStore_Append(t *testing.T) {
	s := NewStore[model.ValuePoint]("volume")

	require.NoError(t, s.Append(vp(60, 1)))
	require.NoError(t, s.Append(vp(120, 2)))

	t.Run("equal bucket rejected", func(t *testing.T) {
		err := s.Append(vp(120, 3))
		assert.ErrorIs(t, err, ErrOrderViolation)
	})

	t.Run("earlier bucket rejected", func(t *testing.T) {
		err := s.Append(vp(60, 3))
		assert.ErrorIs(t, err, ErrOrderViolation)
	})

	assert.Equal(t, []model.ValuePoint{vp(60, 1), vp(120, 2)}, s.Points())
}

func TestStore_UpdateLast(t *testing.T) {
	s := NewStore[model.ValuePoint]("iv")

	err := s.UpdateLast(vp(60, 1))
	assert.ErrorIs(t, err, ErrEmptySeries)

	require.NoError(t, s.Append(vp(60, 1)))
	require.NoError(t, s.Append(vp(120, 2)))

	err = s.UpdateLast(vp(60, 5))
	assert.ErrorIs(t, err, ErrBucketMismatch)

	require.NoError(t, s.UpdateLast(vp(120, 7)))
	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, vp(120, 7), last)
	assert.Equal(t, vp(60, 1), s.Points()[0], "history must stay untouched")
}

func TestStore_Upsert(t *testing.T) {
	s := NewStore[model.ValuePoint]("delta")

	require.NoError(t, s.Upsert(vp(60, 1)))
	require.NoError(t, s.Upsert(vp(60, 2)))
	require.NoError(t, s.Upsert(vp(120, 3)))
	assert.ErrorIs(t, s.Upsert(vp(60, 4)), ErrOrderViolation)

	assert.Equal(t, []model.ValuePoint{vp(60, 2), vp(120, 3)}, s.Points())
}

func TestStore_SetData(t *testing.T) {
	s := NewStore[model.ValuePoint]("volume")

	err := s.SetData([]model.ValuePoint{vp(60, 1), vp(60, 2)})
	assert.ErrorIs(t, err, ErrOrderViolation)
	assert.Equal(t, 0, s.Len())

	input := []model.ValuePoint{vp(60, 1), vp(120, 2)}
	require.NoError(t, s.SetData(input))
	input[0].Value = 99
	assert.Equal(t, 1.0, s.Points()[0].Value, "store keeps its own copy")
	assert.Len(t, s.Snapshot(), 2)
}

func TestStore_Nearest(t *testing.T) {
	s := NewStore[model.ValuePoint]("price")

	_, ok := s.Nearest(100)
	assert.False(t, ok)

	require.NoError(t, s.SetData([]model.ValuePoint{vp(60, 1), vp(120, 2), vp(300, 3)}))

	tests := []struct {
		at   int64
		want int64
	}{
		{0, 60},
		{60, 60},
		{90, 60}, // 距离相同取较早的
		{91, 120},
		{200, 120},
		{211, 300},
		{1000, 300},
	}
	for _, tt := range tests {
		p, ok := s.Nearest(tt.at)
		require.True(t, ok)
		assert.Equal(t, tt.want, p.BucketTime, "nearest to %d", tt.at)
	}

	p, ok := s.NearestPoint(125)
	require.True(t, ok)
	assert.Equal(t, int64(120), p.Time())
}
