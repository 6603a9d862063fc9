// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config 应用配置
type Config struct {
	App       AppConfig       `yaml:"app"`
	Engine    EngineConfig    `yaml:"engine"`
	Predictor PredictorConfig `yaml:"predictor"`
	Database  DatabaseConfig  `yaml:"database"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
}

// EngineConfig 生成引擎配置
type EngineConfig struct {
	HighConfidence      float64 `yaml:"high_confidence"`   // 高置信度阈值
	MediumConfidence    float64 `yaml:"medium_confidence"` // 中置信度阈值
	MaxPipelinePasses   int     `yaml:"max_pipeline_passes"`
	MaxRepairIterations int     `yaml:"max_repair_iterations"`
	ValidatorWorkers    int     `yaml:"validator_workers"`
}

// PredictorConfig 预测器配置
type PredictorConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "lunban"),
			Env:      getEnv("APP_ENV", "development"),
			LogLevel: getEnv("APP_LOG_LEVEL", "info"),
		},
		Engine: EngineConfig{
			HighConfidence:      getEnvFloat("ENGINE_HIGH_CONFIDENCE", 0.8),
			MediumConfidence:    getEnvFloat("ENGINE_MEDIUM_CONFIDENCE", 0.6),
			MaxPipelinePasses:   getEnvInt("ENGINE_MAX_PIPELINE_PASSES", 8),
			MaxRepairIterations: getEnvInt("ENGINE_MAX_REPAIR_ITERATIONS", 16),
			ValidatorWorkers:    getEnvInt("ENGINE_VALIDATOR_WORKERS", 4),
		},
		Predictor: PredictorConfig{
			Enabled: getEnvBool("PREDICTOR_ENABLED", false),
			Timeout: getEnvDuration("PREDICTOR_TIMEOUT", 5*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "lunban"),
			User:            getEnv("DB_USER", "lunban"),
			Password:        getEnv("DB_PASSWORD", "lunban123"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查引擎配置的合法性
func (c *Config) Validate() error {
	e := c.Engine
	if e.MediumConfidence <= 0 || e.MediumConfidence >= e.HighConfidence || e.HighConfidence > 1 {
		return fmt.Errorf("置信度阈值不合法: medium=%.2f high=%.2f", e.MediumConfidence, e.HighConfidence)
	}
	if e.MaxPipelinePasses < 1 {
		return fmt.Errorf("管线遍数必须为正: %d", e.MaxPipelinePasses)
	}
	if e.MaxRepairIterations < 1 {
		return fmt.Errorf("修复迭代上限必须为正: %d", e.MaxRepairIterations)
	}
	return nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsTest 检查是否为测试环境
func (c *Config) IsTest() bool {
	return c.App.Env == "test"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
