package saver

import (
	"encoding/json"
	"os"

	"market-dashboard/internal/model"
)

// JSONSaver 输出缩进的 JSON 数组，格式与快照接口相同
type JSONSaver struct{}

func (JSONSaver) Extension() string { return "json" }

func (JSONSaver) Save(rows []model.CandleRow, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
