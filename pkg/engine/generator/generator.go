// Package generator 提供规则生成管线
// 管线由一串阶段组成，每个阶段是 Schedule→Schedule 的全函数，绝不触碰
// 锁定单元。阶段在不动点处幂等，驱动器以有界迭代反复执行整个序列，
// 作为对覆写顺序缺陷的设计性防护。
package generator

import (
	"context"
	"math/rand"
	"sort"

	"github.com/google/uuid"
	"github.com/lunban/lunban/pkg/engine/lock"
	"github.com/lunban/lunban/pkg/engine/predictor"
	"github.com/lunban/lunban/pkg/engine/registry"
	"github.com/lunban/lunban/pkg/logger"
	"github.com/lunban/lunban/pkg/model"
)

// unclaimed 未被任何约束声明的单元的占位优先级
const unclaimed = 1 << 30

// fairnessPriority 公平分配阶段写入时使用的优先级，弱于所有登记约束
const fairnessPriority = 100

// replacementOrder 剥离某取值时的候选替换顺序
var replacementOrder = []model.ShiftValue{model.ShiftNormal, model.ShiftOff, model.ShiftEarly, model.ShiftLate}

// Context 一次生成运行的可变工作区
// 排班表与随机数状态由本次运行独占，约束快照只读
type Context struct {
	Schedule *model.Schedule
	Roster   []*model.Staff
	Dates    []string
	Locks    *lock.Set
	Registry *registry.Registry
	RNG      *rand.Rand

	staffByID map[uuid.UUID]*model.Staff
	groups    []*model.Constraint
	groupsByName map[string]*model.StaffGroupRule
	priorities []*model.Constraint // 按注册表优先级升序
	dailies    []*model.Constraint
	weeklies   []*model.Constraint
	monthlies  []*model.Constraint

	// claims 记录每个单元最近一次写入者的注册表优先级编号；
	// 编号更大（更弱）的写入者不得覆写
	claims map[model.DateCell]int

	log *logger.EngineLogger
}

// NewContext 构建生成上下文
func NewContext(sched *model.Schedule, roster []*model.Staff, dates []string,
	constraints []*model.Constraint, locks *lock.Set, reg *registry.Registry, rng *rand.Rand) *Context {

	gc := &Context{
		Schedule:     sched,
		Roster:       roster,
		Dates:        dates,
		Locks:        locks,
		Registry:     reg,
		RNG:          rng,
		staffByID:    make(map[uuid.UUID]*model.Staff, len(roster)),
		groupsByName: make(map[string]*model.StaffGroupRule),
		claims:       make(map[model.DateCell]int),
		log:          logger.NewEngineLogger(),
	}
	for _, s := range roster {
		gc.staffByID[s.ID] = s
	}
	for _, c := range constraints {
		switch c.Kind {
		case model.KindDailyLimit:
			gc.dailies = append(gc.dailies, c)
		case model.KindWeeklyLimit:
			gc.weeklies = append(gc.weeklies, c)
		case model.KindMonthlyLimit:
			gc.monthlies = append(gc.monthlies, c)
		case model.KindStaffGroup:
			gc.groups = append(gc.groups, c)
			if c.Group != nil {
				gc.groupsByName[c.Group.Name] = c.Group
			}
		case model.KindPriorityRule:
			gc.priorities = append(gc.priorities, c)
		}
	}
	// 优先规则按注册表优先级稳定排序，编号相同时保持声明顺序
	sort.SliceStable(gc.priorities, func(i, j int) bool {
		return reg.PriorityOf(gc.priorities[i]) < reg.PriorityOf(gc.priorities[j])
	})
	return gc
}

// Staff 按ID查询员工
func (gc *Context) Staff(id uuid.UUID) *model.Staff {
	return gc.staffByID[id]
}

// Groups 返回员工组规则索引
func (gc *Context) Groups() map[string]*model.StaffGroupRule {
	return gc.groupsByName
}

// Claim 以给定优先级声明单元而不改变取值（用于保护既有取值）
func (gc *Context) Claim(cell model.DateCell, priority int) {
	if cur, ok := gc.claims[cell]; !ok || priority < cur {
		gc.claims[cell] = priority
	}
}

// ClaimOf 返回单元当前声明的优先级
func (gc *Context) ClaimOf(cell model.DateCell) int {
	if p, ok := gc.claims[cell]; ok {
		return p
	}
	return unclaimed
}

// CanWrite 检查给定优先级的写入者能否写该单元
func (gc *Context) CanWrite(cell model.DateCell, priority int) bool {
	if gc.Locks.IsLocked(cell) {
		return false
	}
	return priority <= gc.ClaimOf(cell)
}

// Write 以给定优先级写入单元
// 锁定单元、更强声明的单元和资格不符的取值都会被拒绝。
// 取值相同时只收紧声明，不计为变更。返回取值是否实际改变。
func (gc *Context) Write(cell model.DateCell, v model.ShiftValue, priority int) bool {
	if !gc.CanWrite(cell, priority) {
		return false
	}
	staff := gc.staffByID[cell.StaffID]
	if staff == nil || !staff.EligibleFor(v) {
		return false
	}
	if gc.Schedule.Value(cell) == v {
		gc.Claim(cell, priority)
		return false
	}
	gc.Schedule.Set(cell, v)
	gc.Claim(cell, priority)
	return true
}

// PermittedByPriority 检查取值是否与该单元上更强的优先规则相容
// （不违反任何 AllowOnly 的允许集，也不等于任何 Avoid 规则的回避值）
func (gc *Context) PermittedByPriority(cell model.DateCell, v model.ShiftValue) bool {
	for _, c := range gc.priorities {
		rule := c.Priority
		if rule == nil || !rule.AppliesTo(cell.StaffID, cell.Date) {
			continue
		}
		switch rule.Kind {
		case model.PriorityAllowOnlyShifts:
			if !rule.Allows(v) {
				return false
			}
		case model.PriorityAvoidShift, model.PriorityAvoidShiftWithExceptions:
			for _, avoided := range rule.Shifts {
				if v == avoided {
					return false
				}
			}
		}
	}
	return true
}

// SeedBlank 空白播种：所有单元置为正常班，再套用锁定单元
func SeedBlank(gc *Context) {
	for _, s := range gc.Roster {
		for _, d := range gc.Dates {
			gc.Schedule.Set(model.DateCell{StaffID: s.ID, Date: d}, model.ShiftNormal)
		}
	}
	applyLocks(gc)
}

// SeedFromPrediction 预测播种：每个单元取分布的 argmax，
// 资格不符或缺失的单元回退为正常班，再套用锁定单元
func SeedFromPrediction(gc *Context, prediction *predictor.Prediction) {
	for _, s := range gc.Roster {
		for _, d := range gc.Dates {
			cell := model.DateCell{StaffID: s.ID, Date: d}
			value := model.ShiftNormal
			if dist, ok := prediction.PerCell[cell]; ok {
				if v := dist.ArgMax(); s.EligibleFor(v) {
					value = v
				}
			}
			gc.Schedule.Set(cell, value)
		}
	}
	applyLocks(gc)
}

// applyLocks 写入锁定取值并以日历指令优先级声明这些单元
func applyLocks(gc *Context) {
	mandate, _ := gc.Registry.LookupKey(registry.KeyCalendarMandate)
	for _, lc := range gc.Locks.Cells() {
		gc.Schedule.Set(lc.Cell, lc.Value)
		gc.Claim(lc.Cell, mandate.Priority)
	}
}

// Stage 生成阶段：对排班表的一次全量变换，返回变更单元数
type Stage interface {
	Name() string
	Apply(gc *Context) int
}

// Pipeline 阶段管线
type Pipeline struct {
	stages   []Stage
	maxPass  int
	log      *logger.EngineLogger
	observer func(stage string, changed int)
}

// NewPipeline 构建完整管线：组规则 → 优先规则 → 限额 → 优先规则复验 →
// 休息日公平分配 → 优先规则终验
func NewPipeline(maxPasses int) *Pipeline {
	if maxPasses <= 0 {
		maxPasses = 8
	}
	priority := &PriorityStage{}
	return &Pipeline{
		stages: []Stage{
			&GroupStage{},
			priority,
			&LimitStage{},
			priority, // 限额阶段可能覆写偏好，复验恢复可恢复的单元
			&FairnessStage{},
			priority,
		},
		maxPass: maxPasses,
		log:     logger.NewEngineLogger(),
	}
}

// SetObserver 设置阶段观察回调（审计用，回调内 panic 不影响运行）
func (p *Pipeline) SetObserver(fn func(stage string, changed int)) {
	p.observer = fn
}

// Run 执行管线直到不动点或达到迭代上限
// 取消在阶段边界协作响应；阶段内部不要求中断。
func (p *Pipeline) Run(ctx context.Context, gc *Context) (passes int, err error) {
	for pass := 1; pass <= p.maxPass; pass++ {
		changedInPass := 0
		for _, stage := range p.stages {
			if err := ctx.Err(); err != nil {
				return pass, err
			}
			changed := stage.Apply(gc)
			changedInPass += changed
			p.notify(stage.Name(), changed)
		}
		if changedInPass == 0 {
			return pass, nil
		}
	}
	return p.maxPass, nil
}

// notify 触发观察回调，吞掉回调内的 panic
func (p *Pipeline) notify(stage string, changed int) {
	if p.observer == nil {
		return
	}
	defer func() { _ = recover() }()
	p.observer(stage, changed)
}
