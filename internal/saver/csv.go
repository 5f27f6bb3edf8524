package saver

import (
	"os"

	"github.com/gocarina/gocsv"

	"market-dashboard/internal/model"
)

// CSVSaver 表头取自 CandleRow 的 csv tag
type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

func (CSVSaver) Save(rows []model.CandleRow, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.MarshalFile(&rows, f)
}
