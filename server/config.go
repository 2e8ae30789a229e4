package server

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"webgame/logger"
	"webgame/store"
)

// Config 进程配置，对应 YAML 文件
type Config struct {
	Server ServerConfig `yaml:"server"`
	Game   GameConfig   `yaml:"game"`
	Store  StoreConfig  `yaml:"store"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	Workers      int           `yaml:"workers"`
	ReadLimit    int64         `yaml:"read_limit"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CloseTimeout time.Duration `yaml:"close_timeout"`
}

type GameConfig struct {
	Name         string        `yaml:"name"`
	TickDuration time.Duration `yaml:"tick_duration"`
}

type StoreConfig struct {
	Kind  string      `yaml:"kind"` // redis | memory
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:         2000,
			Workers:      runtime.NumCPU(),
			ReadLimit:    1 << 20, // 1MB
			WriteTimeout: 5 * time.Second,
			CloseTimeout: 10 * time.Second,
		},
		Game: GameConfig{
			Name:         "webgame",
			TickDuration: 100 * time.Millisecond,
		},
		Store: StoreConfig{
			Kind:  "redis",
			Redis: RedisConfig{Addr: "localhost:6379"},
		},
		Log: LogConfig{
			File:       "webgame.log",
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 7,
		},
	}
}

// LoadConfig 读取 YAML 配置，未给出的字段保留默认值。
// path 为空时读取环境变量 WEBGAME_CONFIG，仍为空则只用默认值与环境变量。
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv("WEBGAME_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// applyEnv 环境变量覆盖：WEBGAME_PORT、WEBGAME_REDIS_ADDR
func (c *Config) applyEnv() {
	if v := os.Getenv("WEBGAME_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("WEBGAME_REDIS_ADDR"); v != "" {
		c.Store.Redis.Addr = v
	}
}

// ApplyArgs 位置参数 [port [workers]]
func (c *Config) ApplyArgs(args []string) error {
	if len(args) > 2 {
		return fmt.Errorf("usage: webgame [port [workers]]")
	}
	if len(args) >= 1 {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad port %q: %w", args[0], err)
		}
		c.Server.Port = port
	}
	if len(args) == 2 {
		workers, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad worker count %q: %w", args[1], err)
		}
		c.Server.Workers = workers
	}
	return c.Validate()
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Server.Port)
	}
	if c.Server.Workers <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", c.Server.Workers)
	}
	if c.Game.TickDuration <= 0 {
		return fmt.Errorf("tick duration must be positive, got %s", c.Game.TickDuration)
	}
	if c.Server.CloseTimeout <= 0 {
		return fmt.Errorf("close timeout must be positive, got %s", c.Server.CloseTimeout)
	}
	switch c.Store.Kind {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}
	return nil
}

// Addr 监听地址
func (c *Config) Addr() string { return ":" + strconv.Itoa(c.Server.Port) }

// LoggerOptions 转为 logger.Init 参数
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		File:       c.Log.File,
		Level:      c.Log.Level,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Console:    true,
	}
}

// RedisOptions 转为 store.RedisOptions
func (c *Config) RedisOptions() store.RedisOptions {
	return store.RedisOptions{Addr: c.Store.Redis.Addr, Password: c.Store.Redis.Password, DB: c.Store.Redis.DB}
}

// ConnOptions 连接参数
func (c *Config) ConnOptions() ConnOptions {
	return ConnOptions{
		ReadLimit:    c.Server.ReadLimit,
		WriteTimeout: c.Server.WriteTimeout,
		CloseTimeout: c.Server.CloseTimeout,
	}
}
