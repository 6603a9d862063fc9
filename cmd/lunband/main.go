// LunBan 排班生成引擎
// 主程序入口

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/lunban/lunban/internal/config"
	"github.com/lunban/lunban/internal/constraints"
	"github.com/lunban/lunban/internal/database"
	"github.com/lunban/lunban/internal/metrics"
	"github.com/lunban/lunban/internal/snapshot"
	"github.com/lunban/lunban/pkg/audit"
	"github.com/lunban/lunban/pkg/engine"
	"github.com/lunban/lunban/pkg/engine/hybrid"
	"github.com/lunban/lunban/pkg/logger"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	requestPath := flag.String("request", "", "生成请求 JSON 文件路径")
	snapshotVersion := flag.Int("snapshot", -1, "用数据库快照覆盖请求内的约束集，0 表示最新版本，-1 表示不加载")
	showLibrary := flag.Bool("library", false, "输出约束目录后退出")
	metricsAddr := flag.String("metrics-addr", "", "指标端点监听地址，如 :9090")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: "console",
	})

	fmt.Printf("LunBan 排班生成引擎 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	if *showLibrary {
		out, _ := json.MarshalIndent(constraints.LibraryResponse{Library: constraints.GetLibrary()}, "", "  ")
		fmt.Println(string(out))
		return
	}

	if cfg.Metrics.Enabled && *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.WithError(err).Msg("指标端点退出")
			}
		}()
	}

	req, runStore, err := loadRequest(cfg, *requestPath, *snapshotVersion)
	if err != nil {
		logger.WithError(err).Msg("加载生成请求失败")
		os.Exit(1)
	}
	if runStore != nil {
		defer runStore.Close()
	}

	eng := engine.New(engine.Options{
		PredictorTimeout: cfg.Predictor.Timeout,
		Thresholds: hybrid.Thresholds{
			High:   cfg.Engine.HighConfidence,
			Medium: cfg.Engine.MediumConfidence,
		},
		MaxPipelinePasses:   cfg.Engine.MaxPipelinePasses,
		MaxRepairIterations: cfg.Engine.MaxRepairIterations,
		ValidatorWorkers:    cfg.Engine.ValidatorWorkers,
		Audit:               audit.NewMultiSink(audit.NewLogSink(), metrics.NewSink()),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	report, err := eng.Generate(ctx, req)
	metrics.RecordGenerationRun(methodLabel(report), err == nil, time.Since(start))
	if err != nil {
		logger.WithError(err).Msg("生成运行失败")
		os.Exit(1)
	}
	if report.Fairness != nil {
		metrics.SetFairnessGini(report.Fairness.OffDayGini)
	}
	if runStore != nil {
		if err := runStore.SaveRun(ctx, report); err != nil {
			logger.WithError(err).Msg("保存运行记录失败")
		}
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.WithError(err).Msg("报告序列化失败")
		os.Exit(1)
	}
	fmt.Println(string(out))
}

// runStore 打开数据库时保存快照版本与运行记录的落点
type runStore struct {
	db      *database.DB
	store   *snapshot.Store
	version int
}

// SaveRun 持久化运行摘要并上报连接池状态
func (r *runStore) SaveRun(ctx context.Context, report *engine.GenerationReport) error {
	err := r.store.SaveReport(ctx, report.RunID, r.version,
		report.Method, len(report.OpenViolations), report.Duration)
	r.db.ReportStats()
	return err
}

// Close 关闭数据库连接
func (r *runStore) Close() {
	r.db.Close()
}

// loadRequest 读取请求文件，按需用数据库快照覆盖约束集与日历指令
// version < 0 时不连接数据库，返回的 runStore 为 nil
func loadRequest(cfg *config.Config, path string, version int) (*engine.Request, *runStore, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("缺少 -request 参数")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("读取请求文件失败: %w", err)
	}
	var req engine.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, nil, fmt.Errorf("解析请求文件失败: %w", err)
	}

	if version < 0 {
		return &req, nil, nil
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	store := snapshot.NewStore(db)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	var snap *snapshot.Snapshot
	if version > 0 {
		snap, err = store.ByVersion(ctx, version)
	} else {
		snap, err = store.Latest(ctx)
	}
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	logger.Info().Int("version", snap.Version).Msg("使用数据库快照的约束集")
	req.Constraints = snap.Constraints
	req.Mandates = snap.Mandates
	return &req, &runStore{db: db, store: store, version: snap.Version}, nil
}

// methodLabel 报告可能为 nil 时的方法标签
func methodLabel(report *engine.GenerationReport) string {
	if report == nil {
		return "unknown"
	}
	return string(report.Method)
}
