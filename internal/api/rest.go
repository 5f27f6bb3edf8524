package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"market-dashboard/internal/model"
	"market-dashboard/internal/service"
)

const (
	underlyingCandlesPath = "/option-data/{ticker}/underlying/get-today-candles"
	tradesPath            = "/option-data/{ticker}/trades"
)

// ErrFetchFailure 历史数据请求失败或超时，不自动重试
var ErrFetchFailure = errors.New("fetch failure")

// Client 是后端 REST 接口的客户端
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient timeout <= 0 时不设置超时
func NewClient(baseURL string, timeout time.Duration) *Client {
	hc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		hc.SetTimeout(timeout)
	}
	return &Client{
		http:   hc,
		logger: service.Logger.With(zap.String("Component", "RESTClient")),
	}
}

// FetchUnderlyingCandles 获取标的当日的 1 分钟 K 线快照，按时间升序
func (c *Client) FetchUnderlyingCandles(ctx context.Context, symbol string) ([]model.CandleRow, error) {
	var rows []model.CandleRow
	if err := c.getJSON(ctx, underlyingCandlesPath, symbol, &rows); err != nil {
		return nil, err
	}
	c.logger.Info("Fetched underlying candles", zap.String("Symbol", symbol), zap.Int("Rows", len(rows)))
	return rows, nil
}

// FetchTrades 获取标的的期权成交记录
func (c *Client) FetchTrades(ctx context.Context, symbol string) ([]model.OptionTrade, error) {
	var trades []model.OptionTrade
	if err := c.getJSON(ctx, tradesPath, symbol, &trades); err != nil {
		return nil, err
	}
	c.logger.Info("Fetched option trades", zap.String("Symbol", symbol), zap.Int("Trades", len(trades)))
	return trades, nil
}

func (c *Client) getJSON(ctx context.Context, path, symbol string, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("ticker", symbol).
		Get(path)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", ErrFetchFailure, path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: GET %s: status %d: %s", ErrFetchFailure, resp.Request.URL, resp.StatusCode(), truncate(resp.Body(), 256))
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrFetchFailure, resp.Request.URL, err)
	}
	return nil
}
