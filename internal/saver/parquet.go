package saver

import (
	"github.com/parquet-go/parquet-go"

	"market-dashboard/internal/model"
)

type ParquetSaver struct{}

func (ParquetSaver) Extension() string { return "parquet" }

func (ParquetSaver) Save(rows []model.CandleRow, path string) error {
	return parquet.WriteFile(path, rows)
}
