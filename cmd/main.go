package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"market-dashboard/internal/api"
	"market-dashboard/internal/chart"
	"market-dashboard/internal/dashboard"
	"market-dashboard/internal/data"
	"market-dashboard/internal/feed"
	"market-dashboard/internal/saver"
	"market-dashboard/internal/service"
	"market-dashboard/pkg/timegrid"
)

var (
	configPath string
	cfg        *service.Config
)

var rootCmd = &cobra.Command{
	Use:           "dashboard",
	Short:         "Real-time option market dashboard",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := service.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if err := service.InitLogger(c.App.Environment, c.App.LogLevel); err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Stream live candles for each symbol into headless chart panes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if symbols, _ := cmd.Flags().GetStringSlice("symbols"); len(symbols) > 0 {
			cfg.Dashboard.Symbols = symbols
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runLive(ctx, cfg)
	},
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Print the filtered option trade feed for a symbol",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		symbol, _ := flags.GetString("symbol")
		if flags.Changed("right") {
			cfg.Feed.Right, _ = flags.GetString("right")
		}
		if flags.Changed("strikes") {
			cfg.Feed.Strikes, _ = flags.GetString("strikes")
		}
		if flags.Changed("min-qty") {
			cfg.Feed.MinQuantity, _ = flags.GetInt("min-qty")
		}
		if flags.Changed("min-cost") {
			cfg.Feed.MinCost, _ = flags.GetFloat64("min-cost")
		}
		if flags.Changed("sort") {
			cfg.Feed.SortBy, _ = flags.GetString("sort")
		}
		if flags.Changed("limit") {
			cfg.Feed.DisplayLimit, _ = flags.GetInt("limit")
		}
		watch, _ := flags.GetIntSlice("watch")
		return runFeed(cmd.Context(), cfg, symbol, watch)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export today's candle snapshot to csv, parquet or json",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		symbol, _ := flags.GetString("symbol")
		if flags.Changed("format") {
			cfg.Export.Format, _ = flags.GetString("format")
		}
		if flags.Changed("dir") {
			cfg.Export.Dir, _ = flags.GetString("dir")
		}
		return runExport(cmd.Context(), cfg, symbol)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config", "directory containing config.yaml")

	liveCmd.Flags().StringSlice("symbols", nil, "symbols to chart, overrides Dashboard.Symbols")

	feedCmd.Flags().String("symbol", "SPX", "underlying symbol")
	feedCmd.Flags().String("right", "ALL", "ALL, CALLS or PUTS")
	feedCmd.Flags().String("strikes", "ALL", "ALL, ITM or OTM")
	feedCmd.Flags().Int("min-qty", 0, "minimum trade quantity")
	feedCmd.Flags().Float64("min-cost", 0, "minimum total cost")
	feedCmd.Flags().String("sort", "time", "time, quantity or cost")
	feedCmd.Flags().Int("limit", feed.DefaultDisplayLimit, "maximum trades to display")
	feedCmd.Flags().IntSlice("watch", nil, "trade ids to add to the watchlist")

	exportCmd.Flags().String("symbol", "SPX", "underlying symbol")
	exportCmd.Flags().String("format", "csv", "csv, parquet or json")
	exportCmd.Flags().String("dir", "./export", "output directory")

	rootCmd.AddCommand(liveCmd, feedCmd, exportCmd)
}

func main() {
	err := rootCmd.Execute()
	_ = service.Logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// runLive 每个标的一个仪表盘，共用一个实时通道
func runLive(ctx context.Context, cfg *service.Config) error {
	// 1. 会话级参数：K 线周期和时区偏移在会话内保持不变
	granularity, err := service.IntervalSeconds(cfg.Dashboard.Interval)
	if err != nil {
		return err
	}
	tzOffset, err := timegrid.OffsetForZone(cfg.Dashboard.Timezone, time.Now())
	if err != nil {
		return err
	}
	service.Logger.Info("Session parameters",
		zap.Strings("Symbols", cfg.Dashboard.Symbols),
		zap.String("Interval", service.FormatInterval(time.Duration(granularity)*time.Second)),
		zap.Int64("TZOffset", tzOffset))

	// 2. 初始化 REST 客户端和实时通道
	client := api.NewClient(cfg.Server.RESTURL, cfg.Server.Timeout)
	connector := api.NewConnector(cfg.Server.WSURL, api.WithReconnect(cfg.Server.ReconnectDelay))
	if err := connector.Open(ctx); err != nil {
		return err
	}
	defer connector.Close()

	// 3. 为每个标的启动一个独立的仪表盘
	opts := dashboard.Options{
		Engine: data.EngineConfig{
			Granularity: granularity,
			TZOffset:    tzOffset,
			SMAPeriod:   cfg.Dashboard.SMAPeriod,
		},
		PaneHeight: cfg.Dashboard.PaneHeight,
	}

	var (
		wg         sync.WaitGroup
		dashboards []*dashboard.Dashboard
	)
	for _, symbol := range cfg.Dashboard.Symbols {
		d, err := dashboard.New(symbol, client, connector, chart.NewLogRenderer, opts)
		if err != nil {
			return err
		}
		dashboards = append(dashboards, d)

		wg.Add(1)
		go func(d *dashboard.Dashboard) {
			defer wg.Done()
			// 加载失败只影响该标的，错误状态保留在仪表盘上
			if err := d.Start(ctx); err != nil && !errors.Is(err, dashboard.ErrClosed) {
				service.Logger.Error("Dashboard unavailable", zap.String("Symbol", d.Symbol()), zap.Error(err))
			}
		}(d)
	}

	// 4. 等待退出信号或通道断开
	select {
	case <-ctx.Done():
		service.Logger.Info("Shutting down")
	case <-connector.Done():
		service.Logger.Warn("Live channel disconnected")
	}

	for _, d := range dashboards {
		d.Close()
	}
	wg.Wait()
	return nil
}

func runFeed(ctx context.Context, cfg *service.Config, symbol string, watch []int) error {
	filter, err := feed.FilterFromConfig(cfg.Feed)
	if err != nil {
		return err
	}
	loc, err := zoneOf(cfg.Dashboard.Timezone)
	if err != nil {
		return err
	}

	client := api.NewClient(cfg.Server.RESTURL, cfg.Server.Timeout)
	trades, err := client.FetchTrades(ctx, symbol)
	if err != nil {
		return err
	}
	trades = feed.AssignIDs(trades)
	shown := filter.Apply(trades)

	feed.RenderTable(os.Stdout, shown, loc)

	summary, err := feed.Summarize(shown)
	if err != nil {
		return err
	}
	fmt.Println(summary)

	if len(watch) > 0 {
		wl := feed.NewWatchlist()
		byID := make(map[int]int, len(trades))
		for i, t := range trades {
			byID[t.ID] = i
		}
		for _, id := range watch {
			if i, ok := byID[id]; ok {
				wl.Add(trades[i])
			}
		}
		fmt.Println("Watchlist:")
		fmt.Println(strings.Join(wl.Lines(), "\n"))
	}
	return nil
}

func runExport(ctx context.Context, cfg *service.Config, symbol string) error {
	s := saver.NewSaver(cfg.Export.Format)
	if s == nil {
		return fmt.Errorf("unsupported export format %q", cfg.Export.Format)
	}

	client := api.NewClient(cfg.Server.RESTURL, cfg.Server.Timeout)
	rows, err := client.FetchUnderlyingCandles(ctx, symbol)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Export.Dir, 0755); err != nil {
		return fmt.Errorf("cannot create export dir: %w", err)
	}
	path := filepath.Join(cfg.Export.Dir, symbol+"."+s.Extension())
	if err := s.Save(rows, path); err != nil {
		return fmt.Errorf("export %s: %w", symbol, err)
	}
	service.Logger.Info("Snapshot exported", zap.String("Symbol", symbol), zap.String("Path", path), zap.Int("Rows", len(rows)))
	fmt.Println("Exported", len(rows), "rows to", path)
	return nil
}

func zoneOf(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}
