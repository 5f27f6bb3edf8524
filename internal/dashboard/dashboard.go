package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"market-dashboard/internal/api"
	"market-dashboard/internal/chart"
	"market-dashboard/internal/data"
	"market-dashboard/internal/model"
	"market-dashboard/internal/service"
)

// 面板名称
const (
	PanePrice  = "price"
	PaneVolume = "volume"
	PaneIV     = "iv"
)

// State 仪表盘会话状态
type State string

const (
	StateIdle    State = "IDLE"
	StateLoading State = "LOADING"
	StateReady   State = "READY"
	StateFailed  State = "FAILED"
	StateClosed  State = "CLOSED"
)

var (
	ErrClosed         = errors.New("dashboard closed")
	ErrAlreadyStarted = errors.New("dashboard already started")
)

// SnapshotFetcher 获取历史快照，*api.Client 实现了该接口
type SnapshotFetcher interface {
	FetchUnderlyingCandles(ctx context.Context, symbol string) ([]model.CandleRow, error)
}

// Channel 实时数据通道，*api.Connector 实现了该接口
type Channel interface {
	Subscribe(pred api.Predicate, handler api.Handler) func()
}

// Options 仪表盘参数
type Options struct {
	Engine     data.EngineConfig
	Width      int
	PaneHeight int
}

// Dashboard 是单个标的的图表会话：价格、成交量、隐含波动率三个面板共享一个同步组
type Dashboard struct {
	symbol  string
	fetcher SnapshotFetcher
	channel Channel
	engine  *data.DataEngine
	group   *chart.Group
	panes   []*chart.Pane
	// 序列名 -> 所在面板，创建后不再修改
	routes map[string]*chart.Pane

	// mu 同时串行化实时消息处理，Close 之后不再有消息修改会话状态
	mu          sync.Mutex
	state       State
	err         error
	unsubscribe func()

	logger *zap.Logger
}

// New 创建仪表盘，此时不发起任何请求
func New(symbol string, fetcher SnapshotFetcher, channel Channel, renderers chart.RendererFactory, opts Options) (*Dashboard, error) {
	d := &Dashboard{
		symbol:  symbol,
		fetcher: fetcher,
		channel: channel,
		routes:  make(map[string]*chart.Pane),
		state:   StateIdle,
		logger:  service.Logger.With(zap.String("Symbol", symbol)),
	}
	d.engine = data.NewDataEngine(symbol, opts.Engine, d)
	sources := d.engine.Sources()

	layout := []struct {
		pane   string
		series []string
		kinds  []chart.SeriesKind
	}{
		{PanePrice, []string{data.SeriesPrice}, []chart.SeriesKind{chart.KindCandlestick}},
		{PaneVolume,
			[]string{data.SeriesVolume, data.SeriesCallVolume, data.SeriesPutVolume, data.SeriesVolumeDelta},
			[]chart.SeriesKind{chart.KindHistogram, chart.KindHistogram, chart.KindHistogram, chart.KindHistogram}},
		{PaneIV, []string{data.SeriesIV}, []chart.SeriesKind{chart.KindLine}},
	}
	if opts.Engine.SMAPeriod > 1 {
		layout[0].series = append(layout[0].series, data.SeriesSMA)
		layout[0].kinds = append(layout[0].kinds, chart.KindLine)
	}

	d.group = chart.NewGroup(len(layout))
	for _, l := range layout {
		pane := chart.NewPane(symbol+"/"+l.pane, renderers(symbol+"/"+l.pane), chart.WithSize(opts.Width, opts.PaneHeight))
		for i, key := range l.series {
			if err := pane.AddSeries(key, l.kinds[i], sources[key]); err != nil {
				return nil, err
			}
			d.routes[key] = pane
		}
		if err := d.group.Register(pane); err != nil {
			return nil, err
		}
		d.panes = append(d.panes, pane)
	}
	return d, nil
}

func (d *Dashboard) Symbol() string { return d.symbol }

func (d *Dashboard) Engine() *data.DataEngine { return d.engine }

func (d *Dashboard) Group() *chart.Group { return d.group }

// Panes 按价格、成交量、隐含波动率的顺序返回
func (d *Dashboard) Panes() []*chart.Pane {
	return append([]*chart.Pane(nil), d.panes...)
}

func (d *Dashboard) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Err 加载失败的原因，可以直接展示给用户
func (d *Dashboard) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Start 获取快照、初始化序列、挂载面板并订阅实时通道
// 快照获取失败时进入 Failed，不重试；获取期间被 Close 时丢弃结果并返回 ErrClosed
func (d *Dashboard) Start(ctx context.Context) error {
	d.mu.Lock()
	switch d.state {
	case StateClosed:
		d.mu.Unlock()
		return ErrClosed
	case StateIdle:
	default:
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	d.state = StateLoading
	d.mu.Unlock()

	d.logger.Info("Loading snapshot")
	rows, err := d.fetcher.FetchUnderlyingCandles(ctx, d.symbol)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateClosed {
		d.logger.Info("Dashboard closed while loading, snapshot discarded")
		return ErrClosed
	}
	if err != nil {
		if !errors.Is(err, api.ErrFetchFailure) {
			err = fmt.Errorf("%w: %v", api.ErrFetchFailure, err)
		}
		return d.failLocked(err)
	}
	if err := d.engine.Seed(rows); err != nil {
		return d.failLocked(fmt.Errorf("seed %s: %w", d.symbol, err))
	}

	for _, pane := range d.panes {
		if err := pane.Mount(); err != nil {
			return d.failLocked(fmt.Errorf("mount %s: %w", pane.Name, err))
		}
	}
	select {
	case <-d.group.Ready():
	default:
		return d.failLocked(fmt.Errorf("chart group not active: %s", d.group.State()))
	}

	d.unsubscribe = d.channel.Subscribe(d.engine.Accepts, d.handle)
	d.state = StateReady
	d.logger.Info("Dashboard ready", zap.Int("Bars", d.engine.Price.Len()))
	return nil
}

func (d *Dashboard) failLocked(err error) error {
	d.state = StateFailed
	d.err = err
	d.logger.Error("Dashboard failed to load", zap.Error(err))
	return err
}

// handle 在通道的读 goroutine 上调用
func (d *Dashboard) handle(msg model.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateReady {
		return
	}
	d.engine.HandleMessage(msg)
}

// Push 实现 data.Sink，把序列变更路由到对应面板
func (d *Dashboard) Push(key string, p model.Point) {
	pane, ok := d.routes[key]
	if !ok {
		return
	}
	if err := pane.Push(key, p); err != nil {
		d.logger.Debug("Push dropped", zap.String("Series", key), zap.Error(err))
	}
}

// Resize 调整全部面板的尺寸
func (d *Dashboard) Resize(width, paneHeight int) {
	for _, pane := range d.panes {
		pane.Resize(width, paneHeight)
	}
}

// Close 取消订阅并卸载面板，可重复调用；不能在实时消息回调中调用
func (d *Dashboard) Close() {
	d.mu.Lock()
	if d.state == StateClosed {
		d.mu.Unlock()
		return
	}
	d.state = StateClosed
	unsubscribe := d.unsubscribe
	d.unsubscribe = nil
	d.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	for _, pane := range d.panes {
		pane.Unmount()
	}
	d.group.Close()
	d.logger.Info("Dashboard closed")
}
