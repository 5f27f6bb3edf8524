package saver

import (
	"strings"

	"market-dashboard/internal/model"
)

// Saver 把一个标的的 K 线快照写入文件
type Saver interface {
	Save(rows []model.CandleRow, path string) error
	Extension() string
}

// NewSaver 按格式 (csv, parquet, json) 创建实现，不支持的格式返回 nil
func NewSaver(format string) Saver {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVSaver{}
	case "parquet":
		return ParquetSaver{}
	case "json":
		return JSONSaver{}
	default:
		return nil
	}
}
