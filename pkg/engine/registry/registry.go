// Package registry 提供约束优先级注册表
// 注册表是静态目录：每个约束种类持有唯一优先级编号（数字越小优先级越高）、
// 层级与严重度。注册表不可变，可在并发运行之间共享。
package registry

import (
	"github.com/lunban/lunban/pkg/model"
)

// 约束种类键。优先规则按子类单独登记，因为同一单元上的
// 子类冲突需要独立的优先级编号来裁决。
const (
	KeyCalendarMandate          = "calendar_mandate"
	KeyDailyLimit               = "daily_limit"
	KeyWeeklyLimit              = "weekly_limit"
	KeyMonthlyLimit             = "monthly_limit"
	KeyGroupCoverage            = "group_coverage"
	KeyGroupProximity           = "group_proximity"
	KeyAllowOnlyShifts          = "allow_only_shifts"
	KeyAvoidShiftWithExceptions = "avoid_shift_with_exceptions"
	KeyAvoidShift               = "avoid_shift"
	KeyPreferredShift           = "preferred_shift"
	KeyRequiredOff              = "required_off"
)

// Entry 注册表条目
type Entry struct {
	Key      string     `json:"key"`
	Priority int        `json:"priority"` // 唯一编号，越小越优先
	Tier     model.Tier `json:"tier"`
	Hard     bool       `json:"hard"`
	Severity string     `json:"severity"` // error/warning
}

// Registry 约束优先级注册表（创建后只读）
type Registry struct {
	entries map[string]Entry
}

// Default 返回内置目录
func Default() *Registry {
	entries := []Entry{
		{Key: KeyCalendarMandate, Priority: 10, Tier: model.TierMandatory, Hard: true, Severity: "error"},
		{Key: KeyDailyLimit, Priority: 20, Tier: model.TierMandatory, Hard: true, Severity: "error"},
		{Key: KeyWeeklyLimit, Priority: 30, Tier: model.TierMandatory, Hard: true, Severity: "error"},
		{Key: KeyMonthlyLimit, Priority: 40, Tier: model.TierMandatory, Hard: true, Severity: "error"},
		{Key: KeyGroupCoverage, Priority: 50, Tier: model.TierImportant, Hard: false, Severity: "warning"},
		{Key: KeyGroupProximity, Priority: 60, Tier: model.TierImportant, Hard: false, Severity: "warning"},
		{Key: KeyAllowOnlyShifts, Priority: 70, Tier: model.TierImportant, Hard: false, Severity: "warning"},
		{Key: KeyAvoidShiftWithExceptions, Priority: 80, Tier: model.TierPreference, Hard: false, Severity: "warning"},
		{Key: KeyAvoidShift, Priority: 85, Tier: model.TierPreference, Hard: false, Severity: "warning"},
		{Key: KeyPreferredShift, Priority: 90, Tier: model.TierPreference, Hard: false, Severity: "warning"},
		{Key: KeyRequiredOff, Priority: 95, Tier: model.TierPreference, Hard: false, Severity: "warning"},
	}
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.Key] = e
	}
	return &Registry{entries: m}
}

// KeyFor 返回约束对应的注册表键
func KeyFor(c *model.Constraint) string {
	switch c.Kind {
	case model.KindDailyLimit:
		return KeyDailyLimit
	case model.KindWeeklyLimit:
		return KeyWeeklyLimit
	case model.KindMonthlyLimit:
		return KeyMonthlyLimit
	case model.KindStaffGroup:
		// 组规则的顶班子句优先于邻近子句
		if c.Group != nil && c.Group.Coverage != nil {
			return KeyGroupCoverage
		}
		return KeyGroupProximity
	case model.KindPriorityRule:
		if c.Priority == nil {
			return ""
		}
		switch c.Priority.Kind {
		case model.PriorityAllowOnlyShifts:
			return KeyAllowOnlyShifts
		case model.PriorityAvoidShiftWithExceptions:
			return KeyAvoidShiftWithExceptions
		case model.PriorityAvoidShift:
			return KeyAvoidShift
		case model.PriorityPreferredShift:
			return KeyPreferredShift
		case model.PriorityRequiredOff:
			return KeyRequiredOff
		}
	}
	return ""
}

// Lookup 查询约束对应的注册表条目
func (r *Registry) Lookup(c *model.Constraint) (Entry, bool) {
	e, ok := r.entries[KeyFor(c)]
	return e, ok
}

// LookupKey 按键查询条目
func (r *Registry) LookupKey(key string) (Entry, bool) {
	e, ok := r.entries[key]
	return e, ok
}

// PriorityOf 返回约束的优先级编号；未登记的种类排到最后
func (r *Registry) PriorityOf(c *model.Constraint) int {
	if e, ok := r.Lookup(c); ok {
		return e.Priority
	}
	return 1 << 30
}

// TierOf 返回约束种类的默认层级
func (r *Registry) TierOf(c *model.Constraint) model.Tier {
	if e, ok := r.Lookup(c); ok {
		return e.Tier
	}
	return model.TierPreference
}

// IsHardConstraint 纯查询：约束种类默认是否为硬约束
func (r *Registry) IsHardConstraint(c *model.Constraint) bool {
	if e, ok := r.Lookup(c); ok {
		return e.Hard
	}
	return false
}

// SeverityOf 纯查询：约束种类的严重度
func (r *Registry) SeverityOf(c *model.Constraint) string {
	if e, ok := r.Lookup(c); ok {
		return e.Severity
	}
	return "warning"
}

// Resolve 裁决同一单元上的多个违反：返回优先级编号最小的一个，
// 编号相同时按声明顺序取先出现者。violations 为空返回 nil。
func (r *Registry) Resolve(violations []*model.Violation, constraints map[string]*model.Constraint) *model.Violation {
	var best *model.Violation
	bestPriority := 1 << 30
	for _, v := range violations {
		c, ok := constraints[v.ConstraintID.String()]
		if !ok {
			continue
		}
		p := r.PriorityOf(c)
		if best == nil || p < bestPriority {
			best = v
			bestPriority = p
		}
	}
	return best
}
