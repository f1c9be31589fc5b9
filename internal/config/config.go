package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 服务端配置
type Config struct {
	Server ServerConfig `yaml:"server"`
	Redis  RedisConfig  `yaml:"redis"`
	Game   GameConfig   `yaml:"game"`
	Match  MatchConfig  `yaml:"match"`
	Oracle OracleConfig `yaml:"oracle"`
}

// ServerConfig WebSocket 服务器配置
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MaxConnections int    `yaml:"max_connections"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// GameConfig 对局配置
type GameConfig struct {
	ClockTickMs      int `yaml:"clock_tick_ms"`      // 棋钟扫描间隔（毫秒）
	FirstMoveTimeout int `yaml:"first_move_timeout"` // 首步超时（秒）
	DisconnectGrace  int `yaml:"disconnect_grace"`   // 断线等待重连时间（秒）
	RoomExpiration   int `yaml:"room_expiration"`    // 房间等待对手超时（分钟）
	AbandonedSweep   int `yaml:"abandoned_sweep"`    // 双方长期离线房间清扫阈值（分钟）
	DefaultMinutes   int `yaml:"default_minutes"`    // 默认每方时长（分钟）
}

// MatchConfig 匹配配置
type MatchConfig struct {
	BucketSize int `yaml:"bucket_size"` // 分桶宽度（积分）
	MaxDelta   int `yaml:"max_delta"`   // 最大搜索桶距
}

// OracleConfig 机器人走子来源配置
type OracleConfig struct {
	TimeoutMs  int `yaml:"timeout_ms"` // 外部走子查询超时（毫秒）
	Difficulty int `yaml:"difficulty"` // 默认难度 1-3
}

// ClockTickInterval 返回棋钟扫描间隔
func (c *GameConfig) ClockTickInterval() time.Duration {
	return time.Duration(c.ClockTickMs) * time.Millisecond
}

// FirstMoveTimeoutDuration 返回首步超时时长
func (c *GameConfig) FirstMoveTimeoutDuration() time.Duration {
	return time.Duration(c.FirstMoveTimeout) * time.Second
}

// DisconnectGraceDuration 返回断线等待时长
func (c *GameConfig) DisconnectGraceDuration() time.Duration {
	return time.Duration(c.DisconnectGrace) * time.Second
}

// RoomExpirationDuration 返回房间等待超时时长
func (c *GameConfig) RoomExpirationDuration() time.Duration {
	return time.Duration(c.RoomExpiration) * time.Minute
}

// AbandonedSweepDuration 返回双离线清扫阈值
func (c *GameConfig) AbandonedSweepDuration() time.Duration {
	return time.Duration(c.AbandonedSweep) * time.Minute
}

// OracleTimeout 返回外部走子查询超时
func (c *OracleConfig) OracleTimeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Load 加载配置文件
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// Default 返回默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults 填充缺省值
func (cfg *Config) applyDefaults() {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 1780
	}
	if cfg.Server.MaxConnections == 0 {
		cfg.Server.MaxConnections = 4096
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Game.ClockTickMs == 0 {
		cfg.Game.ClockTickMs = 500
	}
	if cfg.Game.FirstMoveTimeout == 0 {
		cfg.Game.FirstMoveTimeout = 30
	}
	if cfg.Game.DisconnectGrace == 0 {
		cfg.Game.DisconnectGrace = 60
	}
	if cfg.Game.RoomExpiration == 0 {
		cfg.Game.RoomExpiration = 10
	}
	if cfg.Game.AbandonedSweep == 0 {
		cfg.Game.AbandonedSweep = 60
	}
	if cfg.Game.DefaultMinutes == 0 {
		cfg.Game.DefaultMinutes = 5
	}
	if cfg.Match.BucketSize == 0 {
		cfg.Match.BucketSize = 100
	}
	if cfg.Match.MaxDelta == 0 {
		cfg.Match.MaxDelta = 8
	}
	if cfg.Oracle.TimeoutMs == 0 {
		cfg.Oracle.TimeoutMs = 3000
	}
	if cfg.Oracle.Difficulty == 0 {
		cfg.Oracle.Difficulty = 2
	}
}
