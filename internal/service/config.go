// internal/service/config.go
package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 是仪表盘进程的全部配置
type Config struct {
	App       AppConfig       `mapstructure:"App"`
	Server    ServerConfig    `mapstructure:"Server"`
	Dashboard DashboardConfig `mapstructure:"Dashboard"`
	Feed      FeedConfig      `mapstructure:"Feed"`
	Export    ExportConfig    `mapstructure:"Export"`
}

type AppConfig struct {
	Environment string // development 或 production
	LogLevel    string
}

// ServerConfig 定义了后端 REST / WebSocket 的连接信息
type ServerConfig struct {
	RESTURL        string
	WSURL          string
	Timeout        time.Duration
	ReconnectDelay time.Duration // 0 表示断线后不重连
}

// DashboardConfig 定义了图表面板参数
type DashboardConfig struct {
	Symbols    []string
	Interval   string // K 线周期，如 "1m"
	Timezone   string // 为空时使用本地时区
	SMAPeriod  int    // 0 表示不绘制均线
	PaneHeight int
}

// FeedConfig 定义了成交流的默认过滤条件
type FeedConfig struct {
	Right        string
	Strikes      string
	MinQuantity  int
	MinCost      float64
	SortBy       string
	DisplayLimit int
}

type ExportConfig struct {
	Format string
	Dir    string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("App.Environment", "production")
	v.SetDefault("App.LogLevel", "info")

	v.SetDefault("Server.RESTURL", "http://localhost:8000")
	v.SetDefault("Server.WSURL", "ws://localhost:8000/hf-data/ws")
	v.SetDefault("Server.Timeout", 10*time.Second)
	v.SetDefault("Server.ReconnectDelay", time.Duration(0))

	v.SetDefault("Dashboard.Symbols", []string{"SPX"})
	v.SetDefault("Dashboard.Interval", "1m")
	v.SetDefault("Dashboard.Timezone", "")
	v.SetDefault("Dashboard.SMAPeriod", 20)
	v.SetDefault("Dashboard.PaneHeight", 400)

	v.SetDefault("Feed.Right", "ALL")
	v.SetDefault("Feed.Strikes", "ALL")
	v.SetDefault("Feed.MinQuantity", 0)
	v.SetDefault("Feed.MinCost", 0.0)
	v.SetDefault("Feed.SortBy", "time")
	v.SetDefault("Feed.DisplayLimit", 1000)

	v.SetDefault("Export.Format", "csv")
	v.SetDefault("Export.Dir", "./export")
}

// LoadConfig 读取并解析配置文件
// 查找顺序：默认值 < config.yaml < .env / DASH_ 前缀的环境变量
// 配置文件不存在时只使用默认值和环境变量
func LoadConfig(configPath string) (*Config, error) {
	// .env 文件可选
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config") // 文件名是 config
	v.SetConfigType("yaml")   // 文件类型是 yaml
	v.AddConfigPath(configPath)

	v.SetEnvPrefix("DASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if _, err := IntervalSeconds(cfg.Dashboard.Interval); err != nil {
		return nil, fmt.Errorf("invalid Dashboard.Interval: %w", err)
	}

	return &cfg, nil
}
