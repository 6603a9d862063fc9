// Package repair 提供违规修复引擎
// 按层级升序、注册表优先级升序消费违反记录，对每条尝试最小安全变更：
// 重新赋值一个受影响单元，且不得新增一级违反、不得触碰锁定单元。
// 以有界不动点迭代运行，捕捉早期修复引入的二阶违反。
// 无法修复的软约束违反只记录，绝不作为错误抛出。
package repair

import (
	"github.com/lunban/lunban/pkg/engine/lock"
	"github.com/lunban/lunban/pkg/engine/validate"
	"github.com/lunban/lunban/pkg/logger"
	"github.com/lunban/lunban/pkg/model"
)

// candidateOrder 修复时的候选取值顺序
var candidateOrder = []model.ShiftValue{model.ShiftNormal, model.ShiftOff, model.ShiftEarly, model.ShiftLate}

// Engine 修复引擎
type Engine struct {
	validator     *validate.Validator
	maxIterations int
	log           *logger.EngineLogger
}

// New 创建修复引擎；maxIterations <= 0 时使用默认上限 16
func New(validator *validate.Validator, maxIterations int) *Engine {
	if maxIterations <= 0 {
		maxIterations = 16
	}
	return &Engine{
		validator:     validator,
		maxIterations: maxIterations,
		log:           logger.NewEngineLogger(),
	}
}

// Repair 修复排班中的违反，直到收敛或达到迭代上限
// tier1Only 为真时只处理一级约束（高置信度直采路径）。
// 返回修复汇总；残留的一级违反由调用方按引擎缺陷处理。
func (e *Engine) Repair(runID string, sched *model.Schedule, roster []*model.Staff,
	constraints []*model.Constraint, locks *lock.Set, tier1Only bool) *model.RepairSummary {

	summary := &model.RepairSummary{}
	staffByID := make(map[string]*model.Staff, len(roster))
	for _, s := range roster {
		staffByID[s.ID.String()] = s
	}

	for iter := 1; iter <= e.maxIterations; iter++ {
		summary.Iterations = iter
		violations := e.validateFor(sched, roster, constraints, tier1Only)
		if len(violations) == 0 {
			return summary
		}

		progress := false
		for i := range violations {
			if action, ok := e.repairOne(sched, roster, constraints, locks, staffByID, &violations[i], tier1Only); ok {
				summary.Actions = append(summary.Actions, action)
				e.log.RepairApplied(runID, violations[i].ConstraintName, 1)
				progress = true
			}
		}
		if !progress {
			break
		}
	}

	// 收尾：残留的软约束违反记入汇总
	for _, v := range e.validateFor(sched, roster, constraints, tier1Only) {
		if v.Tier != model.TierMandatory {
			summary.Unresolved = append(summary.Unresolved, v)
		}
	}
	return summary
}

// validateFor 按模式计算当前违反集合
func (e *Engine) validateFor(sched *model.Schedule, roster []*model.Staff,
	constraints []*model.Constraint, tier1Only bool) []model.Violation {
	if tier1Only {
		return e.validator.ValidateTier1(sched, roster, constraints)
	}
	return e.validator.Validate(sched, roster, constraints)
}

// repairOne 对单条违反尝试最小安全变更
// 依次尝试每个未锁定的受影响单元与每个候选取值，接受第一个
// 既消减该约束的违反又不新增一级违反的赋值。
func (e *Engine) repairOne(sched *model.Schedule, roster []*model.Staff, constraints []*model.Constraint,
	locks *lock.Set, staffByID map[string]*model.Staff, violation *model.Violation, tier1Only bool) (model.RepairAction, bool) {

	target := constraintByID(constraints, violation)
	if target == nil {
		return model.RepairAction{}, false
	}

	cells := make([]model.DateCell, len(violation.Cells))
	copy(cells, violation.Cells)
	model.SortCells(cells)

	baselineTier1 := len(e.validator.ValidateTier1(sched, roster, constraints))
	baselineOwn := e.countFor(sched, roster, constraints, target)

	for _, cell := range cells {
		if locks.IsLocked(cell) {
			continue
		}
		staff := staffByID[cell.StaffID.String()]
		if staff == nil {
			continue
		}
		current := sched.Value(cell)

		for _, v := range candidateOrder {
			if v == current || !staff.EligibleFor(v) {
				continue
			}
			sched.Set(cell, v)

			newTier1 := len(e.validator.ValidateTier1(sched, roster, constraints))
			newOwn := e.countFor(sched, roster, constraints, target)

			if newOwn < baselineOwn && newTier1 <= baselineTier1 {
				return model.RepairAction{
					Cell:         cell,
					From:         current,
					To:           v,
					ConstraintID: violation.ConstraintID,
				}, true
			}
			sched.Set(cell, current)
		}
	}
	return model.RepairAction{}, false
}

// countFor 统计某约束当前的违反数
func (e *Engine) countFor(sched *model.Schedule, roster []*model.Staff,
	constraints []*model.Constraint, target *model.Constraint) int {
	return len(e.validator.Validate(sched, roster, []*model.Constraint{target}))
}

// constraintByID 按违反记录查回约束实例
func constraintByID(constraints []*model.Constraint, v *model.Violation) *model.Constraint {
	for _, c := range constraints {
		if c.ID == v.ConstraintID {
			return c
		}
	}
	return nil
}
