package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}

	if cfg.App.Name != "lunban" {
		t.Errorf("App.Name = %q, 期望 lunban", cfg.App.Name)
	}
	if cfg.Engine.HighConfidence != 0.8 || cfg.Engine.MediumConfidence != 0.6 {
		t.Errorf("置信度阈值 = (%.2f, %.2f), 期望 (0.80, 0.60)",
			cfg.Engine.HighConfidence, cfg.Engine.MediumConfidence)
	}
	if cfg.Engine.MaxPipelinePasses != 8 {
		t.Errorf("MaxPipelinePasses = %d, 期望 8", cfg.Engine.MaxPipelinePasses)
	}
	if cfg.Engine.MaxRepairIterations != 16 {
		t.Errorf("MaxRepairIterations = %d, 期望 16", cfg.Engine.MaxRepairIterations)
	}
	if cfg.Predictor.Enabled {
		t.Error("预测器默认应关闭")
	}
	if cfg.Predictor.Timeout != 5*time.Second {
		t.Errorf("Predictor.Timeout = %v, 期望 5s", cfg.Predictor.Timeout)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ENGINE_HIGH_CONFIDENCE", "0.9")
	t.Setenv("ENGINE_MEDIUM_CONFIDENCE", "0.5")
	t.Setenv("PREDICTOR_ENABLED", "true")
	t.Setenv("PREDICTOR_TIMEOUT", "2s")
	t.Setenv("DB_PORT", "5433")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}

	if cfg.Engine.HighConfidence != 0.9 || cfg.Engine.MediumConfidence != 0.5 {
		t.Errorf("置信度阈值 = (%.2f, %.2f), 期望 (0.90, 0.50)",
			cfg.Engine.HighConfidence, cfg.Engine.MediumConfidence)
	}
	if !cfg.Predictor.Enabled {
		t.Error("预测器应已开启")
	}
	if cfg.Predictor.Timeout != 2*time.Second {
		t.Errorf("Predictor.Timeout = %v, 期望 2s", cfg.Predictor.Timeout)
	}
	if cfg.Database.Port != 5433 {
		t.Errorf("Database.Port = %d, 期望 5433", cfg.Database.Port)
	}
}

func TestLoadRejectsInvalidThresholds(t *testing.T) {
	// 中阈值不得超过高阈值
	t.Setenv("ENGINE_HIGH_CONFIDENCE", "0.5")
	t.Setenv("ENGINE_MEDIUM_CONFIDENCE", "0.7")

	if _, err := Load(); err == nil {
		t.Error("阈值倒置应返回错误")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		engine  EngineConfig
		wantErr bool
	}{
		{"默认值", EngineConfig{HighConfidence: 0.8, MediumConfidence: 0.6, MaxPipelinePasses: 8, MaxRepairIterations: 16}, false},
		{"高阈值超过 1", EngineConfig{HighConfidence: 1.2, MediumConfidence: 0.6, MaxPipelinePasses: 8, MaxRepairIterations: 16}, true},
		{"中阈值为 0", EngineConfig{HighConfidence: 0.8, MediumConfidence: 0, MaxPipelinePasses: 8, MaxRepairIterations: 16}, true},
		{"管线遍数为 0", EngineConfig{HighConfidence: 0.8, MediumConfidence: 0.6, MaxPipelinePasses: 0, MaxRepairIterations: 16}, true},
		{"修复迭代为 0", EngineConfig{HighConfidence: 0.8, MediumConfidence: 0.6, MaxPipelinePasses: 8, MaxRepairIterations: 0}, true},
	}

	for _, tt := range tests {
		cfg := &Config{Engine: tt.engine}
		err := cfg.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{
		Host: "localhost", Port: 5432,
		Name: "lunban", User: "lunban", Password: "secret", SSLMode: "disable",
	}
	want := "host=localhost port=5432 user=lunban password=secret dbname=lunban sslmode=disable"
	if got := db.DSN(); got != want {
		t.Errorf("DSN() = %q, 期望 %q", got, want)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("LUNBAN_TEST_INT", "not-a-number")
	if got := getEnvInt("LUNBAN_TEST_INT", 7); got != 7 {
		t.Errorf("非法整数应回退默认值, 得到 %d", got)
	}

	t.Setenv("LUNBAN_TEST_ENV", "production")
	cfg := &Config{App: AppConfig{Env: getEnv("LUNBAN_TEST_ENV", "development")}}
	if !cfg.IsProduction() || cfg.IsDevelopment() {
		t.Error("环境判断不符")
	}
}
