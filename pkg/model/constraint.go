// Package model 定义排班生成引擎的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// ConstraintKind 约束种类（封闭集合，不支持插件扩展）
type ConstraintKind string

const (
	KindDailyLimit   ConstraintKind = "daily_limit"
	KindWeeklyLimit  ConstraintKind = "weekly_limit"
	KindMonthlyLimit ConstraintKind = "monthly_limit"
	KindStaffGroup   ConstraintKind = "staff_group"
	KindPriorityRule ConstraintKind = "priority_rule"
)

// Tier 约束层级
type Tier int

const (
	TierMandatory  Tier = 1 // 强制约束，最终结果不得违反
	TierImportant  Tier = 2 // 重要软约束
	TierPreference Tier = 3 // 个人偏好
)

// ScopeType 约束作用域类型
type ScopeType string

const (
	ScopeAll   ScopeType = "all"   // 全员
	ScopeGroup ScopeType = "group" // 命名员工组
	ScopeStaff ScopeType = "staff" // 指定员工列表
)

// Scope 约束作用域
type Scope struct {
	Type      ScopeType   `json:"type"`
	GroupName string      `json:"group_name,omitempty"`
	StaffIDs  []uuid.UUID `json:"staff_ids,omitempty"`
}

// AllStaff 返回全员作用域
func AllStaff() Scope {
	return Scope{Type: ScopeAll}
}

// StaffScope 返回指定员工作用域
func StaffScope(ids ...uuid.UUID) Scope {
	return Scope{Type: ScopeStaff, StaffIDs: ids}
}

// DailyLimit 单日班次数约束：某日期取值为 Shift 的员工数落在 [Min, Max]
// Max < 0 表示无上限；Weekdays 为空表示适用所有日期
type DailyLimit struct {
	Shift    ShiftValue     `json:"shift"`
	Min      int            `json:"min"`
	Max      int            `json:"max"`
	Scope    Scope          `json:"scope"`
	Weekdays []time.Weekday `json:"weekdays,omitempty"`
}

// AppliesTo 检查约束是否适用于某日期
func (l *DailyLimit) AppliesTo(date string) bool {
	if len(l.Weekdays) == 0 {
		return true
	}
	wd, ok := Weekday(date)
	if !ok {
		return false
	}
	for _, w := range l.Weekdays {
		if w == wd {
			return true
		}
	}
	return false
}

// WeeklyLimit 滚动窗口班次数约束：单个员工在任意 WindowDays 天窗口内
// 取值为 Shift 的天数落在 [Min, Max]；WindowDays 默认 7
type WeeklyLimit struct {
	Shift      ShiftValue `json:"shift"`
	Min        int        `json:"min"`
	Max        int        `json:"max"`
	Scope      Scope      `json:"scope"`
	WindowDays int        `json:"window_days"`
}

// Window 返回窗口长度（天）
func (l *WeeklyLimit) Window() int {
	if l.WindowDays <= 0 {
		return 7
	}
	return l.WindowDays
}

// MonthlyLimit 自然月班次数约束：单个员工在一个自然月内
// 取值为 Shift 的天数落在 [Min, Max]
type MonthlyLimit struct {
	Shift ShiftValue `json:"shift"`
	Min   int        `json:"min"`
	Max   int        `json:"max"`
	Scope Scope      `json:"scope"`
}

// CoverageRule 顶班规则：组内成员休息时，替补员工必须承担指定班次
type CoverageRule struct {
	BackupID      uuid.UUID  `json:"backup_id"`
	RequiredShift ShiftValue `json:"required_shift"`
}

// ProximityPattern 邻近模式：触发员工休息时，目标员工必须在 ±MaxDistanceDays 天内休息
type ProximityPattern struct {
	TriggerID       uuid.UUID `json:"trigger_id"`
	TargetID        uuid.UUID `json:"target_id"`
	MaxDistanceDays int       `json:"max_distance_days"`
}

// StaffGroupRule 员工组规则：命名员工集合及其顶班/邻近子句
type StaffGroupRule struct {
	Name      string            `json:"name"`
	MemberIDs []uuid.UUID       `json:"member_ids"`
	Coverage  *CoverageRule     `json:"coverage,omitempty"`
	Proximity *ProximityPattern `json:"proximity,omitempty"`
}

// HasMember 检查员工是否属于该组
func (g *StaffGroupRule) HasMember(id uuid.UUID) bool {
	for _, m := range g.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}

// PriorityRuleKind 优先规则子类
type PriorityRuleKind string

const (
	PriorityAllowOnlyShifts          PriorityRuleKind = "allow_only_shifts"
	PriorityAvoidShiftWithExceptions PriorityRuleKind = "avoid_shift_with_exceptions"
	PriorityAvoidShift               PriorityRuleKind = "avoid_shift"
	PriorityPreferredShift           PriorityRuleKind = "preferred_shift"
	PriorityRequiredOff              PriorityRuleKind = "required_off"
)

// PriorityRule 优先规则
// 同一单元上多条规则冲突时的优先序：
// AllowOnlyShifts > AvoidShiftWithExceptions/AvoidShift > PreferredShift > RequiredOff
type PriorityRule struct {
	Kind       PriorityRuleKind `json:"kind"`
	StaffIDs   []uuid.UUID      `json:"staff_ids"`
	Weekdays   []time.Weekday   `json:"weekdays,omitempty"` // 空 = 每天
	Shifts     []ShiftValue     `json:"shifts"`             // 目标值（偏好/避免/允许集）
	Exceptions []ShiftValue     `json:"exceptions,omitempty"`
}

// AppliesTo 检查规则是否适用于 (员工, 日期)
func (p *PriorityRule) AppliesTo(staffID uuid.UUID, date string) bool {
	found := false
	for _, id := range p.StaffIDs {
		if id == staffID {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	if len(p.Weekdays) == 0 {
		return true
	}
	wd, ok := Weekday(date)
	if !ok {
		return false
	}
	for _, w := range p.Weekdays {
		if w == wd {
			return true
		}
	}
	return false
}

// Allows 检查取值是否在允许集内（仅 AllowOnlyShifts 有意义）
func (p *PriorityRule) Allows(v ShiftValue) bool {
	for _, s := range p.Shifts {
		if s == v {
			return true
		}
	}
	return false
}

// Constraint 约束（带标签的联合类型，每个实例只填充一个种类载荷）
// 每次运行加载后只读，引擎绝不修改
type Constraint struct {
	ID            uuid.UUID      `json:"id"`
	Name          string         `json:"name"`
	Kind          ConstraintKind `json:"kind"`
	Tier          Tier           `json:"tier"`
	Hard          bool           `json:"is_hard_constraint"`
	PenaltyWeight int            `json:"penalty_weight"`

	Daily    *DailyLimit     `json:"daily,omitempty"`
	Weekly   *WeeklyLimit    `json:"weekly,omitempty"`
	Monthly  *MonthlyLimit   `json:"monthly,omitempty"`
	Group    *StaffGroupRule `json:"group,omitempty"`
	Priority *PriorityRule   `json:"priority,omitempty"`
}

// NewDailyLimit 创建单日限制约束（强制层级，硬约束）
func NewDailyLimit(name string, limit DailyLimit) *Constraint {
	return &Constraint{
		ID:            uuid.New(),
		Name:          name,
		Kind:          KindDailyLimit,
		Tier:          TierMandatory,
		Hard:          true,
		PenaltyWeight: 100,
		Daily:         &limit,
	}
}

// NewWeeklyLimit 创建滚动窗口限制约束（强制层级，硬约束）
func NewWeeklyLimit(name string, limit WeeklyLimit) *Constraint {
	return &Constraint{
		ID:            uuid.New(),
		Name:          name,
		Kind:          KindWeeklyLimit,
		Tier:          TierMandatory,
		Hard:          true,
		PenaltyWeight: 100,
		Weekly:        &limit,
	}
}

// NewMonthlyLimit 创建月度限制约束（强制层级，硬约束）
func NewMonthlyLimit(name string, limit MonthlyLimit) *Constraint {
	return &Constraint{
		ID:            uuid.New(),
		Name:          name,
		Kind:          KindMonthlyLimit,
		Tier:          TierMandatory,
		Hard:          true,
		PenaltyWeight: 100,
		Monthly:       &limit,
	}
}

// NewStaffGroupRule 创建员工组约束（重要软约束）
func NewStaffGroupRule(name string, rule StaffGroupRule) *Constraint {
	return &Constraint{
		ID:            uuid.New(),
		Name:          name,
		Kind:          KindStaffGroup,
		Tier:          TierImportant,
		Hard:          false,
		PenaltyWeight: 50,
		Group:         &rule,
	}
}

// NewPriorityRule 创建优先规则约束（偏好层级）
func NewPriorityRule(name string, rule PriorityRule) *Constraint {
	tier := TierPreference
	if rule.Kind == PriorityAllowOnlyShifts {
		tier = TierImportant
	}
	return &Constraint{
		ID:            uuid.New(),
		Name:          name,
		Kind:          KindPriorityRule,
		Tier:          tier,
		Hard:          false,
		PenaltyWeight: 10,
		Priority:      &rule,
	}
}

// ResolveScope 将作用域解析为员工ID集合；组作用域由 groups 提供成员
func ResolveScope(scope Scope, roster []*Staff, groups map[string]*StaffGroupRule) map[uuid.UUID]bool {
	result := make(map[uuid.UUID]bool)
	switch scope.Type {
	case ScopeAll, "":
		for _, s := range roster {
			result[s.ID] = true
		}
	case ScopeGroup:
		if g, ok := groups[scope.GroupName]; ok {
			for _, id := range g.MemberIDs {
				result[id] = true
			}
		}
	case ScopeStaff:
		for _, id := range scope.StaffIDs {
			result[id] = true
		}
	}
	return result
}
