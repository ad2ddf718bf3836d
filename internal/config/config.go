package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Program  ProgramConfig  `mapstructure:"program"`
	Business BusinessConfig `mapstructure:"business"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int    `mapstructure:"port"`
	AdminToken     string `mapstructure:"admin_token"`      // 空表示不开放 airdrop 接口
	PlayTTLSeconds int    `mapstructure:"play_ttl_seconds"` // play 签名 expires_at 最多领先当前时间多久
}

// DatabaseConfig driver 为 mysql 或 sqlite
type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
	LogLevel   string `mapstructure:"log_level"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"` // 0 使用客户端默认值
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	Events string `mapstructure:"events"`
}

// ProgramConfig 程序ID决定了所有记录地址的派生结果
type ProgramConfig struct {
	ID             string `mapstructure:"id"`
	HouseAuthority string `mapstructure:"house_authority"` // 允许从资金池提现的身份，空表示禁止提现
}

type BusinessConfig struct {
	MaxRetryCount            int `mapstructure:"max_retry_count"`
	LockTTLSeconds           int `mapstructure:"lock_ttl_seconds"`
	LockRetryIntervalMillis  int `mapstructure:"lock_retry_interval_millis"`
	LockMaxRetries           int `mapstructure:"lock_max_retries"`
	ReconcileIntervalSeconds int `mapstructure:"reconcile_interval_seconds"`
	OutboxIntervalMillis     int `mapstructure:"outbox_interval_millis"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // 空表示输出到 stderr
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

const DefaultProgramID = "CKWtwTziPzvp7VAVi8tbbBurWbSaG4Fx5icGdbs2n5ck"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.play_ttl_seconds", 300)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.sqlite_path", "escrow.db")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("kafka.topic.events", "escrow.events")
	v.SetDefault("program.id", DefaultProgramID)
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.lock_ttl_seconds", 30)
	v.SetDefault("business.lock_retry_interval_millis", 100)
	v.SetDefault("business.lock_max_retries", 30)
	v.SetDefault("business.reconcile_interval_seconds", 60)
	v.SetDefault("business.outbox_interval_millis", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
}

// LoadConfig 加载配置文件，环境变量 ESCROW_<SECTION>_<KEY> 可覆盖文件中的值
//
// configPath 为空时只使用默认值和环境变量
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("escrow")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %q", c.Database.Driver)
	}
	if c.Program.ID == "" {
		return fmt.Errorf("program.id 不能为空")
	}
	return nil
}
