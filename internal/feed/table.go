package feed

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"market-dashboard/internal/model"
)

// TableHeader 成交列表的列
var TableHeader = []string{"Time", "Strike/Right", "Price", "Qty", "Bid-Ask", "RTM", "TradedAt", "Cost"}

// Row 单笔成交在表格中的一行，时间按 loc 显示为 HH:mm:ss
func Row(t model.OptionTrade, loc *time.Location) []string {
	if loc == nil {
		loc = time.Local
	}
	c := Classify(t)
	return []string{
		time.UnixMilli(t.Timestamp).In(loc).Format("15:04:05"),
		formatNumber(t.Strike) + t.Right,
		formatNumber(t.Price),
		fmt.Sprintf("%d", t.Quantity),
		c.Spread,
		c.Moneyness,
		string(c.TradedAt),
		fmt.Sprintf("$%.2f", t.TotalCost),
	}
}

// RenderTable 把成交列表写成终端表格
func RenderTable(w io.Writer, trades []model.OptionTrade, loc *time.Location) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(TableHeader)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_CENTER)
	table.SetColumnSeparator("")

	for _, t := range trades {
		table.Append(Row(t, loc))
	}
	table.Render()
}
