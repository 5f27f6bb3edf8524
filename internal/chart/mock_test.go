package chart

import (
	"github.com/stretchr/testify/mock"

	"market-dashboard/internal/model"
)

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) AddSeries(key string, kind SeriesKind) (SeriesHandle, error) {
	args := m.Called(key, kind)
	h, _ := args.Get(0).(SeriesHandle)
	return h, args.Error(1)
}

func (m *mockRenderer) RemoveSeries(h SeriesHandle) { m.Called(h) }

func (m *mockRenderer) SetVisibleLogicalRange(r LogicalRange) { m.Called(r) }

func (m *mockRenderer) SetCrosshairPosition(value float64, bucketTime int64, h SeriesHandle) {
	m.Called(value, bucketTime, h)
}

func (m *mockRenderer) ClearCrosshairPosition() { m.Called() }

func (m *mockRenderer) Resize(width, height int) { m.Called(width, height) }

func (m *mockRenderer) FitContent() { m.Called() }

func (m *mockRenderer) Remove() { m.Called() }

type mockHandle struct {
	mock.Mock
}

func (m *mockHandle) SetData(points []model.Point) { m.Called(points) }

func (m *mockHandle) Update(p model.Point) { m.Called(p) }

// expectDefaults 放在具体期望之后注册，作为兜底
func expectDefaults(r *mockRenderer, h *mockHandle) {
	h.On("SetData", mock.Anything).Return()
	h.On("Update", mock.Anything).Return()

	r.On("AddSeries", mock.Anything, mock.Anything).Return(h, nil)
	r.On("RemoveSeries", mock.Anything).Return()
	r.On("SetVisibleLogicalRange", mock.Anything).Return()
	r.On("SetCrosshairPosition", mock.Anything, mock.Anything, mock.Anything).Return()
	r.On("ClearCrosshairPosition").Return()
	r.On("Resize", mock.Anything, mock.Anything).Return()
	r.On("FitContent").Return()
	r.On("Remove").Return()
}

func newMockRenderer() (*mockRenderer, *mockHandle) {
	r, h := &mockRenderer{}, &mockHandle{}
	expectDefaults(r, h)
	return r, h
}
