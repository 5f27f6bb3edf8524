package feed

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"market-dashboard/internal/model"
	"market-dashboard/internal/service"
)

// DefaultDisplayLimit 列表最多显示的成交数
const DefaultDisplayLimit = 1000

type Right string

const (
	RightAll   Right = "ALL"
	RightCalls Right = "CALLS"
	RightPuts  Right = "PUTS"
)

type Strikes string

const (
	StrikesAll Strikes = "ALL"
	StrikesITM Strikes = "ITM"
	StrikesOTM Strikes = "OTM"
)

type SortKey string

const (
	SortTime     SortKey = "time"
	SortQuantity SortKey = "quantity"
	SortCost     SortKey = "cost"
)

var ErrInvalidFilter = errors.New("invalid trade filter")

// Filter 成交流的过滤和排序条件，零值不过滤任何成交
type Filter struct {
	Right       Right
	Strikes     Strikes
	MinQuantity int
	MinCost     float64
	SortBy      SortKey
	Limit       int
}

// FilterFromConfig 从配置构造过滤条件，取值大小写不敏感
func FilterFromConfig(cfg service.FeedConfig) (Filter, error) {
	f := Filter{
		Right:       Right(strings.ToUpper(cfg.Right)),
		Strikes:     Strikes(strings.ToUpper(cfg.Strikes)),
		MinQuantity: cfg.MinQuantity,
		MinCost:     cfg.MinCost,
		SortBy:      SortKey(strings.ToLower(cfg.SortBy)),
		Limit:       cfg.DisplayLimit,
	}
	if err := f.Validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

func (f Filter) Validate() error {
	switch f.Right {
	case "", RightAll, RightCalls, RightPuts:
	default:
		return fmt.Errorf("%w: right %q", ErrInvalidFilter, f.Right)
	}
	switch f.Strikes {
	case "", StrikesAll, StrikesITM, StrikesOTM:
	default:
		return fmt.Errorf("%w: strikes %q", ErrInvalidFilter, f.Strikes)
	}
	switch f.SortBy {
	case "", SortTime, SortQuantity, SortCost:
	default:
		return fmt.Errorf("%w: sort %q", ErrInvalidFilter, f.SortBy)
	}
	if f.MinQuantity < 0 || f.MinCost < 0 || f.Limit < 0 {
		return fmt.Errorf("%w: negative threshold", ErrInvalidFilter)
	}
	return nil
}

// Match 判断单笔成交是否满足条件
func (f Filter) Match(t model.OptionTrade) bool {
	switch f.Right {
	case RightCalls:
		if !t.IsCall() {
			return false
		}
	case RightPuts:
		if !t.IsPut() {
			return false
		}
	}

	switch f.Strikes {
	case StrikesITM:
		if !t.InTheMoney() {
			return false
		}
	case StrikesOTM:
		if t.InTheMoney() {
			return false
		}
	}

	return t.Quantity >= f.MinQuantity && t.TotalCost >= f.MinCost
}

// Apply 过滤、排序 (降序，相同值保持原顺序) 并截断到 Limit，不修改输入
func (f Filter) Apply(trades []model.OptionTrade) []model.OptionTrade {
	out := make([]model.OptionTrade, 0, len(trades))
	for _, t := range trades {
		if f.Match(t) {
			out = append(out, t)
		}
	}

	slices.SortStableFunc(out, f.compare)

	limit := f.Limit
	if limit == 0 {
		limit = DefaultDisplayLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f Filter) compare(a, b model.OptionTrade) int {
	switch f.SortBy {
	case SortQuantity:
		return cmp.Compare(b.Quantity, a.Quantity)
	case SortCost:
		return cmp.Compare(b.TotalCost, a.TotalCost)
	default:
		return cmp.Compare(b.Timestamp, a.Timestamp)
	}
}

// AssignIDs 按获取顺序从 1 开始编号
func AssignIDs(trades []model.OptionTrade) []model.OptionTrade {
	out := make([]model.OptionTrade, len(trades))
	for i, t := range trades {
		t.ID = i + 1
		out[i] = t
	}
	return out
}
