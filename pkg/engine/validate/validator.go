// Package validate 提供排班校验器
// 校验是纯函数：计算候选排班的完整违反集合，绝不修改排班表。
// 每个约束种类提供自己的检查逻辑，结果经优先级注册表打标后聚合。
package validate

import (
	"sort"

	"github.com/lunban/lunban/pkg/engine/registry"
	"github.com/lunban/lunban/pkg/model"
)

// Validator 排班校验器（只读共享，可跨并发运行使用）
type Validator struct {
	reg     *registry.Registry
	workers int
}

// New 创建校验器；workers <= 1 时退化为单线程评估
func New(reg *registry.Registry, workers int) *Validator {
	if workers <= 0 {
		workers = 1
	}
	return &Validator{reg: reg, workers: workers}
}

// Validate 计算排班的全部约束违反，结果确定性排序：
// 层级升序 → 注册表优先级升序 → 约束ID → 首单元
func (v *Validator) Validate(sched *model.Schedule, roster []*model.Staff, constraints []*model.Constraint) []model.Violation {
	groups := groupIndex(constraints)
	perConstraint := v.evaluateAll(sched, roster, constraints, groups)

	var all []model.Violation
	for _, violations := range perConstraint {
		all = append(all, violations...)
	}
	v.Sort(all, constraints)
	return all
}

// ValidateTier1 只计算一级（强制）约束的违反
func (v *Validator) ValidateTier1(sched *model.Schedule, roster []*model.Staff, constraints []*model.Constraint) []model.Violation {
	var tier1 []*model.Constraint
	for _, c := range constraints {
		if c.Tier == model.TierMandatory {
			tier1 = append(tier1, c)
		}
	}
	return v.Validate(sched, roster, tier1)
}

// Sort 按层级、注册表优先级、约束ID与首单元确定性排序
func (v *Validator) Sort(violations []model.Violation, constraints []*model.Constraint) {
	byID := make(map[string]*model.Constraint, len(constraints))
	for _, c := range constraints {
		byID[c.ID.String()] = c
	}
	priorityOf := func(vio model.Violation) int {
		if c, ok := byID[vio.ConstraintID.String()]; ok {
			return v.reg.PriorityOf(c)
		}
		return 1 << 30
	}
	sort.SliceStable(violations, func(i, j int) bool {
		if violations[i].Tier != violations[j].Tier {
			return violations[i].Tier < violations[j].Tier
		}
		pi, pj := priorityOf(violations[i]), priorityOf(violations[j])
		if pi != pj {
			return pi < pj
		}
		if violations[i].ConstraintID != violations[j].ConstraintID {
			return violations[i].ConstraintID.String() < violations[j].ConstraintID.String()
		}
		ci, cj := firstCell(violations[i]), firstCell(violations[j])
		if ci.Date != cj.Date {
			return ci.Date < cj.Date
		}
		return ci.StaffID.String() < cj.StaffID.String()
	})
}

// firstCell 返回违反的首个受影响单元
func firstCell(v model.Violation) model.DateCell {
	if len(v.Cells) == 0 {
		return model.DateCell{}
	}
	return v.Cells[0]
}

// groupIndex 建立组名 → 组规则索引，供作用域解析使用
func groupIndex(constraints []*model.Constraint) map[string]*model.StaffGroupRule {
	groups := make(map[string]*model.StaffGroupRule)
	for _, c := range constraints {
		if c.Kind == model.KindStaffGroup && c.Group != nil {
			groups[c.Group.Name] = c.Group
		}
	}
	return groups
}

// newViolation 构造带注册表标签的违反记录
func (v *Validator) newViolation(c *model.Constraint, cells []model.DateCell, message string) model.Violation {
	return model.Violation{
		ConstraintID:   c.ID,
		ConstraintName: c.Name,
		Kind:           c.Kind,
		Tier:           c.Tier,
		Hard:           c.Hard,
		Cells:          cells,
		Message:        message,
		Severity:       v.reg.SeverityOf(c),
		Penalty:        c.PenaltyWeight,
	}
}
