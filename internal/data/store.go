package data

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"market-dashboard/internal/model"
)

var (
	// ErrOrderViolation 新元素的时间桶不严格大于最后一个元素
	ErrOrderViolation = errors.New("order violation")
	// ErrEmptySeries 对空序列执行 UpdateLast
	ErrEmptySeries = errors.New("empty series")
	// ErrBucketMismatch UpdateLast 的时间桶与最后一个元素不同
	ErrBucketMismatch = errors.New("bucket mismatch")
)

// Store 是单个逻辑序列的有序内存存储
// 只允许追加新元素或替换最后一个元素，与图表引擎的增量更新约定一致
type Store[P model.Point] struct {
	mu     sync.RWMutex
	name   string
	points []P
}

// NewStore 创建一个空序列
func NewStore[P model.Point](name string) *Store[P] {
	return &Store[P]{name: name}
}

func (s *Store[P]) Name() string { return s.name }

// SetData 用历史数据整体初始化序列，要求严格递增且无重复桶
func (s *Store[P]) SetData(points []P) error {
	for i := 1; i < len(points); i++ {
		if points[i].Time() <= points[i-1].Time() {
			return fmt.Errorf("%s: element %d at %d not after %d: %w",
				s.name, i, points[i].Time(), points[i-1].Time(), ErrOrderViolation)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(make([]P, 0, len(points)), points...)
	return nil
}

// Append 追加新的最后元素
func (s *Store[P]) Append(p P) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.points); n > 0 && p.Time() <= s.points[n-1].Time() {
		return fmt.Errorf("%s: append %d after %d: %w", s.name, p.Time(), s.points[n-1].Time(), ErrOrderViolation)
	}
	s.points = append(s.points, p)
	return nil
}

// UpdateLast 替换最后一个元素
func (s *Store[P]) UpdateLast(p P) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.points)
	if n == 0 {
		return fmt.Errorf("%s: %w", s.name, ErrEmptySeries)
	}
	if last := s.points[n-1].Time(); p.Time() != last {
		return fmt.Errorf("%s: update %d, last is %d: %w", s.name, p.Time(), last, ErrBucketMismatch)
	}
	s.points[n-1] = p
	return nil
}

// Upsert 同桶时替换最后元素，否则追加；与图表引擎 update(point) 的语义一致
func (s *Store[P]) Upsert(p P) error {
	if last, ok := s.Last(); ok && last.Time() == p.Time() {
		return s.UpdateLast(p)
	}
	return s.Append(p)
}

// Last 返回最后一个元素
func (s *Store[P]) Last() (P, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero P
	if len(s.points) == 0 {
		return zero, false
	}
	return s.points[len(s.points)-1], true
}

func (s *Store[P]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

// Points 返回序列的副本
func (s *Store[P]) Points() []P {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]P(nil), s.points...)
}

// Snapshot 以 model.Point 形式返回副本，供图表面板 SetData 使用
func (s *Store[P]) Snapshot() []model.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Point, len(s.points))
	for i, p := range s.points {
		out[i] = p
	}
	return out
}

// Nearest 查找距离 bucketTime 最近的元素，距离相同时取较早的
func (s *Store[P]) Nearest(bucketTime int64) (P, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero P
	n := len(s.points)
	if n == 0 {
		return zero, false
	}

	// 第一个 >= bucketTime 的位置
	i := sort.Search(n, func(i int) bool { return s.points[i].Time() >= bucketTime })
	switch {
	case i == 0:
		return s.points[0], true
	case i == n:
		return s.points[n-1], true
	}

	before, after := s.points[i-1], s.points[i]
	if after.Time()-bucketTime < bucketTime-before.Time() {
		return after, true
	}
	return before, true
}

// NearestPoint 是 Nearest 的非泛型版本
func (s *Store[P]) NearestPoint(bucketTime int64) (model.Point, bool) {
	p, ok := s.Nearest(bucketTime)
	if !ok {
		return nil, false
	}
	return p, true
}
