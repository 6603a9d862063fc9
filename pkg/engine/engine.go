// Package engine 提供混合约束-优先级排班生成引擎
// 流程：预测适配 → 置信度分段决策 → 规则生成管线（锁定单元播种）→
// 校验 → 违规修复 → 复验 → 最终排班 + 报告。
// 强制约束在任何情况下不被违反，即使预测器给出相反建议。
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/lunban/lunban/pkg/audit"
	"github.com/lunban/lunban/pkg/engine/generator"
	"github.com/lunban/lunban/pkg/engine/hybrid"
	"github.com/lunban/lunban/pkg/engine/lock"
	"github.com/lunban/lunban/pkg/engine/predictor"
	"github.com/lunban/lunban/pkg/engine/registry"
	"github.com/lunban/lunban/pkg/engine/repair"
	"github.com/lunban/lunban/pkg/engine/validate"
	"github.com/lunban/lunban/pkg/errors"
	"github.com/lunban/lunban/pkg/logger"
	"github.com/lunban/lunban/pkg/model"
	"github.com/lunban/lunban/pkg/stats"
)

// Request 一次生成运行的入参
// 约束与指令是版本化只读快照，运行期间不得变更
type Request struct {
	Roster      []*model.Staff      `json:"roster"`
	DateRange   model.DateRange     `json:"date_range"`
	Constraints []*model.Constraint `json:"constraints"`
	Mandates    lock.Mandates       `json:"calendar_mandates"`
	Features    predictor.Features  `json:"predictor_features,omitempty"`
	RNGSeed     int64               `json:"rng_seed,omitempty"`
}

// GenerationReport 生成结果报告
// 与传输无关的记录，由外围同步/持久层原样消费
type GenerationReport struct {
	RunID               uuid.UUID              `json:"run_id"`
	Schedule            *model.Schedule        `json:"schedule"`
	Method              model.GenerationMethod `json:"method"`
	Band                hybrid.Band            `json:"band"`
	Confidence          float64                `json:"confidence"`
	Locked              []model.LockedCell     `json:"locked"`
	PreRepairViolations []model.Violation      `json:"pre_repair_violations"`
	Repair              *model.RepairSummary   `json:"repair"`
	OpenViolations      []model.Violation      `json:"open_violations"` // 修复后残留的软约束违反
	Fairness            *stats.FairnessMetrics `json:"fairness"`
	PipelinePasses      int                    `json:"pipeline_passes"`
	Duration            time.Duration          `json:"duration"`
}

// Options 引擎配置
type Options struct {
	Predictor           predictor.Predictor // 可为 nil：始终纯规则生成
	PredictorTimeout    time.Duration
	Thresholds          hybrid.Thresholds
	MaxPipelinePasses   int
	MaxRepairIterations int
	ValidatorWorkers    int
	Audit               audit.Sink // 可为 nil：不发审计事件
}

// Engine 排班生成引擎
// 注册表与校验器只读，可在并发运行之间共享；每次运行的排班表
// 与随机数状态由该运行独占
type Engine struct {
	opts      Options
	registry  *registry.Registry
	validator *validate.Validator
	repairer  *repair.Engine
	analyzer  *stats.Analyzer
	log       *logger.EngineLogger
}

// New 创建引擎
func New(opts Options) *Engine {
	reg := registry.Default()
	validator := validate.New(reg, opts.ValidatorWorkers)
	return &Engine{
		opts:      opts,
		registry:  reg,
		validator: validator,
		repairer:  repair.New(validator, opts.MaxRepairIterations),
		analyzer:  stats.NewAnalyzer(),
		log:       logger.NewEngineLogger(),
	}
}

// Registry 返回引擎使用的约束优先级注册表
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Generate 执行一次生成运行
// 返回完整报告，或携带约束ID与受影响单元的
// ConfigurationError / InvariantViolation
func (e *Engine) Generate(ctx context.Context, req *Request) (*GenerationReport, error) {
	start := time.Now()

	if err := e.validateRequest(req); err != nil {
		return nil, err
	}
	if err := e.checkConfiguration(req); err != nil {
		return nil, err
	}

	locks, err := lock.Compute(req.Roster, req.Mandates)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(req.RNGSeed))
	runID, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "生成运行ID失败")
	}
	dates := req.DateRange.Dates()

	// 预测阶段：任何失败都降级，绝不让运行失败
	prediction, predErr := predictor.PredictWithTimeout(ctx, e.opts.Predictor, e.opts.PredictorTimeout,
		req.Roster, req.DateRange, req.Features)
	if predErr != nil {
		if e.opts.Predictor != nil {
			e.log.PredictorFallback(runID.String(), predErr.Error())
		}
		prediction = nil
	}
	decision := hybrid.Decide(prediction, e.opts.Thresholds)

	e.log.RunStart(runID.String(), len(req.Roster), len(dates), string(decision.Method))
	audit.Emit(e.opts.Audit, audit.Event{
		RunID: runID.String(),
		Type:  audit.EventRunStart,
		Fields: map[string]interface{}{
			"method": decision.Method,
			"band":   decision.Band,
			"staff":  len(req.Roster),
			"days":   len(dates),
		},
	})
	if prediction != nil {
		audit.Emit(e.opts.Audit, audit.Event{
			RunID:  runID.String(),
			Type:   audit.EventPredictorUsed,
			Fields: map[string]interface{}{"confidence": prediction.Confidence},
		})
	}

	// 播种与规则管线
	staffIDs := make([]uuid.UUID, len(req.Roster))
	for i, s := range req.Roster {
		staffIDs[i] = s.ID
	}
	sched := model.NewSchedule(staffIDs, dates)
	gc := generator.NewContext(sched, req.Roster, dates, req.Constraints, locks, e.registry, rng)

	if decision.SeedFromPredictor {
		generator.SeedFromPrediction(gc, prediction)
	} else {
		generator.SeedBlank(gc)
	}

	passes := 0
	if decision.FullPipeline {
		pipeline := generator.NewPipeline(e.opts.MaxPipelinePasses)
		pipeline.SetObserver(func(stage string, changed int) {
			e.log.StageApplied(runID.String(), stage, changed)
			audit.Emit(e.opts.Audit, audit.Event{
				RunID:        runID.String(),
				Type:         audit.EventStageApplied,
				Stage:        stage,
				CellsChanged: changed,
			})
		})
		passes, err = pipeline.Run(ctx, gc)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeTimeout, "生成管线被取消")
		}
	}

	// 校验 → 修复 → 复验
	preViolations := e.validateFor(sched, req, decision.Tier1Only)
	for _, v := range preViolations {
		audit.Emit(e.opts.Audit, audit.Event{
			RunID: runID.String(),
			Type:  audit.EventViolationFound,
			Fields: map[string]interface{}{
				"constraint": v.ConstraintName,
				"tier":       v.Tier,
				"cells":      len(v.Cells),
			},
		})
	}

	repairSummary := e.repairer.Repair(runID.String(), sched, req.Roster, req.Constraints, locks, decision.Tier1Only)
	for _, a := range repairSummary.Actions {
		audit.Emit(e.opts.Audit, audit.Event{
			RunID: runID.String(),
			Type:  audit.EventRepairApplied,
			Fields: map[string]interface{}{
				"cell": a.Cell.String(),
				"from": a.From,
				"to":   a.To,
			},
		})
	}

	final := e.validateFor(sched, req, decision.Tier1Only)

	// 不变量检查：锁定单元未被篡改，且一级违反不得残留
	if broken := locks.Verify(sched); len(broken) > 0 {
		return nil, errors.InvariantViolation("锁定单元在生成过程中被篡改", cellStrings(broken))
	}
	var open []model.Violation
	for _, v := range final {
		if v.Tier == model.TierMandatory {
			return nil, errors.InvariantViolation(
				fmt.Sprintf("一级约束 '%s' 的违反在修复后仍然残留", v.ConstraintName),
				cellStrings(v.Cells)).WithField("constraint_id", v.ConstraintID.String())
		}
		open = append(open, v)
	}
	if !sched.Complete() {
		return nil, errors.InvariantViolation("生成结束后仍有单元未赋值", nil)
	}

	sched.Freeze()
	duration := time.Since(start)
	e.log.RunComplete(runID.String(), duration, len(open))
	audit.Emit(e.opts.Audit, audit.Event{
		RunID: runID.String(),
		Type:  audit.EventRunComplete,
		Fields: map[string]interface{}{
			"open_violations": len(open),
			"repaired":        repairSummary.Repaired(),
		},
	})

	return &GenerationReport{
		RunID:               runID,
		Schedule:            sched,
		Method:              decision.Method,
		Band:                decision.Band,
		Confidence:          decision.Confidence,
		Locked:              locks.Cells(),
		PreRepairViolations: preViolations,
		Repair:              repairSummary,
		OpenViolations:      open,
		Fairness:            e.analyzer.Analyze(sched, req.Roster, req.Constraints),
		PipelinePasses:      passes,
		Duration:            duration,
	}, nil
}

// validateFor 按决策模式校验
func (e *Engine) validateFor(sched *model.Schedule, req *Request, tier1Only bool) []model.Violation {
	if tier1Only {
		return e.validator.ValidateTier1(sched, req.Roster, req.Constraints)
	}
	return e.validator.Validate(sched, req.Roster, req.Constraints)
}

// validateRequest 基本入参检查
func (e *Engine) validateRequest(req *Request) error {
	if req == nil {
		return errors.InvalidInput("request", "不能为空")
	}
	if len(req.Roster) == 0 {
		return errors.InvalidInput("roster", "花名册为空")
	}
	seen := make(map[uuid.UUID]bool, len(req.Roster))
	for _, s := range req.Roster {
		if s == nil {
			return errors.InvalidInput("roster", "包含空员工")
		}
		if seen[s.ID] {
			return errors.InvalidInput("roster", fmt.Sprintf("员工ID %s 重复", s.ID))
		}
		seen[s.ID] = true
	}
	if err := req.DateRange.Validate(); err != nil {
		return errors.InvalidInput("date_range", err.Error())
	}
	return nil
}

// cellStrings 把单元列表转成可读标识
func cellStrings(cells []model.DateCell) []string {
	result := make([]string, len(cells))
	for i, c := range cells {
		result[i] = c.String()
	}
	return result
}
