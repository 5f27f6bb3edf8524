package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"market-dashboard/internal/model"
	"market-dashboard/internal/service"
)

// maxReconnectBackoff 重连退避的上限
const maxReconnectBackoff = 30 * time.Second

var (
	ErrMalformedMessage = errors.New("malformed live message")
	ErrConnectorClosed  = errors.New("connector closed")
)

// Predicate 决定一条消息是否交给订阅者
type Predicate func(msg model.Message) bool

// Handler 处理一条实时消息，在读 goroutine 上按到达顺序调用
type Handler func(msg model.Message)

type subscription struct {
	id      string
	pred    Predicate
	handler Handler
}

// Connector 是实时数据通道：一个 WebSocket 连接，多个显式订阅者
// 生命周期 Open -> Subscribe... -> Close
type Connector struct {
	wsURL          string
	dialer         *websocket.Dialer
	reconnectDelay time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	subs   []*subscription
	opened bool
	closed bool
	cancel context.CancelFunc
	// stopWatch 注销 ctx 结束时关闭连接的回调
	stopWatch func() bool
	done      chan struct{}

	logger *zap.Logger
}

// ConnectorOption 配置 Connector
type ConnectorOption func(*Connector)

// WithReconnect 断线后以 delay 为初始间隔重连，每次翻倍，最长 30s；delay <= 0 表示不重连
func WithReconnect(delay time.Duration) ConnectorOption {
	return func(c *Connector) { c.reconnectDelay = delay }
}

// WithDialer 替换默认的 websocket.Dialer
func WithDialer(d *websocket.Dialer) ConnectorOption {
	return func(c *Connector) { c.dialer = d }
}

// NewConnector 创建未连接的实时通道
func NewConnector(wsURL string, opts ...ConnectorOption) *Connector {
	c := &Connector{
		wsURL:  wsURL,
		dialer: websocket.DefaultDialer,
		done:   make(chan struct{}),
		logger: service.Logger.With(zap.String("Component", "Connector")),
	}
	for _, opt := range opts {
		opt(c)
	}
	service.Logger.Info("Connector initialized", zap.String("URL", wsURL), zap.Duration("ReconnectDelay", c.reconnectDelay))
	return c
}

// Open 建立连接并启动读循环；ctx 取消等同于 Close
func (c *Connector) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnectorClosed
	}
	if c.opened {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.wsURL, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		_ = conn.Close()
		return ErrConnectorClosed
	}
	c.conn = conn
	c.opened = true
	c.cancel = cancel
	c.stopWatch = context.AfterFunc(ctx, c.closeConn)
	c.mu.Unlock()

	c.logger.Info("Live channel connected", zap.String("URL", c.wsURL))

	go c.readLoop(ctx, conn)
	return nil
}

// Subscribe 注册订阅者，返回的函数取消订阅 (可重复调用)
func (c *Connector) Subscribe(pred Predicate, handler Handler) func() {
	sub := &subscription{id: uuid.NewString(), pred: pred, handler: handler}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()

	c.logger.Debug("Subscriber added", zap.String("SubscriptionID", sub.id))

	var once sync.Once
	return func() {
		once.Do(func() { c.unsubscribe(sub.id) })
	}
}

func (c *Connector) unsubscribe(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, sub := range c.subs {
		if sub.id == id {
			c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
			break
		}
	}
}

// Subscribers 当前订阅者数量
func (c *Connector) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Done 在读循环退出后被关闭
func (c *Connector) Done() <-chan struct{} {
	return c.done
}

// Close 关闭连接并等待读循环退出
func (c *Connector) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	opened := c.opened
	cancel := c.cancel
	c.mu.Unlock()

	if !opened {
		close(c.done)
		return nil
	}
	cancel()
	<-c.done
	c.logger.Info("Live channel closed")
	return nil
}

func (c *Connector) release() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	cancel()
}

func (c *Connector) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Connector) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer close(c.done)
	// 读循环退出时释放 ctx，不再依赖 Close
	defer c.release()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Error reading WS message", zap.Error(err))
			if c.reconnectDelay <= 0 {
				return
			}
			if conn = c.reconnect(ctx); conn == nil {
				return
			}
			continue
		}

		msgs, err := DecodeFrame(frame)
		if err != nil {
			// 丢弃该帧，连接保持
			c.logger.Warn("Dropping live message", zap.Error(err), zap.ByteString("Frame", truncate(frame, 256)))
			continue
		}
		for _, msg := range msgs {
			c.dispatch(msg)
		}
	}
}

// reconnect 按退避策略重连，ctx 取消时返回 nil
func (c *Connector) reconnect(ctx context.Context) *websocket.Conn {
	backoff := c.reconnectDelay
	for attempt := 1; ; attempt++ {
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		conn, _, err := c.dialer.DialContext(ctx, c.wsURL, nil)
		if err == nil {
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
			if ctx.Err() != nil {
				_ = conn.Close()
				return nil
			}
			c.logger.Info("Live channel reconnected", zap.Int("Attempt", attempt))
			return conn
		}

		c.logger.Warn("Reconnect failed", zap.Int("Attempt", attempt), zap.Duration("Backoff", backoff), zap.Error(err))
		backoff *= 2
		if backoff > maxReconnectBackoff {
			backoff = maxReconnectBackoff
		}
	}
}

func (c *Connector) dispatch(msg model.Message) {
	c.mu.Lock()
	subs := append([]*subscription(nil), c.subs...)
	c.mu.Unlock()

	for _, sub := range subs {
		if sub.pred == nil || sub.pred(msg) {
			sub.handler(msg)
		}
	}
}

// DecodeFrame 解析一个 WebSocket 帧，帧可以是单个 JSON 对象或对象数组
func DecodeFrame(frame []byte) ([]model.Message, error) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformedMessage)
	}

	if trimmed[0] == '[' {
		var msgs []model.Message
		if err := json.Unmarshal(trimmed, &msgs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return msgs, nil
	}

	var msg model.Message
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return []model.Message{msg}, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
