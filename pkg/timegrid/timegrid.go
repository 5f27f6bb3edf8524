// Package timegrid 把 epoch 时间戳对齐到图表使用的固定时间网格
package timegrid

import (
	"time"
)

// DefaultGranularity 默认 K 线粒度 (秒)
const DefaultGranularity int64 = 60

// BucketOf 计算毫秒时间戳所属的桶：
// floor(floor(ms/1000)/g)*g - tzOffset
// tzOffset 为本地时区相对 UTC 的偏移 (西区为正)，整个会话内视为常量
func BucketOf(epochMillis, granularitySeconds, tzOffsetSeconds int64) int64 {
	return AlignSeconds(floorDiv(epochMillis, 1000), granularitySeconds, tzOffsetSeconds)
}

// AlignSeconds 与 BucketOf 相同，但输入已经是 epoch 秒 (快照接口的 time 字段)
func AlignSeconds(epochSeconds, granularitySeconds, tzOffsetSeconds int64) int64 {
	if granularitySeconds <= 0 {
		granularitySeconds = 1
	}
	return floorDiv(epochSeconds, granularitySeconds)*granularitySeconds - tzOffsetSeconds
}

// LocalOffsetSeconds 返回 now 所在时区相对 UTC 的偏移秒数，符号与浏览器
// getTimezoneOffset()*60 一致：UTC-5 返回 18000，UTC+8 返回 -28800
func LocalOffsetSeconds(now time.Time) int64 {
	_, offset := now.Zone()
	return -int64(offset)
}

// OffsetForZone 按时区名计算偏移，name 为空时使用本地时区
func OffsetForZone(name string, now time.Time) (int64, error) {
	if name == "" {
		return LocalOffsetSeconds(now.Local()), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return 0, err
	}
	return LocalOffsetSeconds(now.In(loc)), nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
