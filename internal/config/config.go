package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"workledger/pkg/config"
)

// EngineConfig 级联/结算引擎配置
type EngineConfig struct {
	// cron 表达式（带秒），驱动统计与进度对账任务
	ReconcileSchedule string `yaml:"reconcile_schedule"`
	// MQ 重投去重窗口
	DedupTTL time.Duration `yaml:"dedup_ttl"`
	// 消息最多处理次数，超过后丢弃
	MaxDeliveries int64 `yaml:"max_deliveries"`
	// 趋势统计默认周期：week / month / quarter / year
	DefaultTrendPeriod string `yaml:"default_trend_period"`
}

// OutboxConfig outbox 投递配置
type OutboxConfig struct {
	// 扫描 pending 事件的间隔
	Interval time.Duration `yaml:"interval"`
	// 单次扫描的最大事件数
	BatchSize int `yaml:"batch_size"`
	// 超过后事件标记为 failed，等待 /admin/outbox/replay
	MaxRetries int `yaml:"max_retries"`
}

type Config struct {
	DB        config.DBConfig        `yaml:"db"`
	MQ        config.MQConfig        `yaml:"mq"`
	Redis     config.RedisConfig     `yaml:"redis"`
	Server    config.ServerConfig    `yaml:"server"`
	Telemetry config.TelemetryConfig `yaml:"telemetry"`
	Engine    EngineConfig           `yaml:"engine"`
	Outbox    OutboxConfig           `yaml:"outbox"`
}

// Load 使用统一配置中心加载配置，失败时退出进程
func Load() *Config {
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfg, err := LoadFrom(env, configDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func LoadFrom(env, configDir string) (*Config, error) {
	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := config.Decode(cfgMap, &cfg); err != nil {
		return nil, err
	}

	// 环境变量覆盖（优先级最高）
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideTelemetryFromEnv(&cfg.Telemetry)
	overrideEngineFromEnv(&cfg.Engine)
	overrideOutboxFromEnv(&cfg.Outbox)

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func overrideEngineFromEnv(cfg *EngineConfig) {
	if schedule := os.Getenv("ENGINE_RECONCILE_SCHEDULE"); schedule != "" {
		cfg.ReconcileSchedule = schedule
	}
	if ttl := os.Getenv("ENGINE_DEDUP_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.DedupTTL = d
		}
	}
	if max := os.Getenv("ENGINE_MAX_DELIVERIES"); max != "" {
		if n, err := strconv.ParseInt(max, 10, 64); err == nil {
			cfg.MaxDeliveries = n
		}
	}
}

func overrideOutboxFromEnv(cfg *OutboxConfig) {
	if interval := os.Getenv("OUTBOX_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Interval = d
		}
	}
	if size := os.Getenv("OUTBOX_BATCH_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			cfg.BatchSize = n
		}
	}
	if retries := os.Getenv("OUTBOX_MAX_RETRIES"); retries != "" {
		if n, err := strconv.Atoi(retries); err == nil {
			cfg.MaxRetries = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8084"
	}
	if c.Engine.ReconcileSchedule == "" {
		c.Engine.ReconcileSchedule = "0 30 2 * * *"
	}
	if c.Engine.DedupTTL == 0 {
		c.Engine.DedupTTL = 24 * time.Hour
	}
	if c.Engine.MaxDeliveries == 0 {
		c.Engine.MaxDeliveries = 5
	}
	if c.Engine.DefaultTrendPeriod == "" {
		c.Engine.DefaultTrendPeriod = "month"
	}
	if c.Outbox.Interval == 0 {
		c.Outbox.Interval = time.Second
	}
	if c.Outbox.BatchSize == 0 {
		c.Outbox.BatchSize = 100
	}
	if c.Outbox.MaxRetries == 0 {
		c.Outbox.MaxRetries = 5
	}
}

func (c *Config) validate() error {
	if c.DB.Host == "" || c.DB.Name == "" {
		return fmt.Errorf("db.host and db.name are required")
	}
	if c.MQ.URL == "" {
		return fmt.Errorf("mq.url is required")
	}
	if c.Engine.DedupTTL < 0 {
		return fmt.Errorf("engine.dedup_ttl must not be negative")
	}
	if c.Outbox.Interval < 0 || c.Outbox.BatchSize < 0 || c.Outbox.MaxRetries < 0 {
		return fmt.Errorf("outbox settings must not be negative")
	}
	return nil
}
