package generator

import (
	"github.com/lunban/lunban/pkg/model"
)

// PriorityStage 优先规则阶段
// 对每个单元按完整优先序处理规则：AllowOnlyShifts > AvoidShiftWithExceptions >
// AvoidShift > PreferredShift > RequiredOff。弱规则的改写必须同时与该单元上
// 所有更强规则相容。阶段在不动点处幂等，可安全重复执行。
type PriorityStage struct{}

// Name 返回阶段名称
func (s *PriorityStage) Name() string { return "priority_rules" }

// Apply 按固定顺序（员工序 × 日期序）处理所有单元
func (s *PriorityStage) Apply(gc *Context) int {
	changed := 0
	for _, staff := range gc.Roster {
		for _, date := range gc.Dates {
			cell := model.DateCell{StaffID: staff.ID, Date: date}
			changed += s.enforceCell(gc, cell)
		}
	}
	return changed
}

// enforceCell 依优先序对单元执行每条适用规则
func (s *PriorityStage) enforceCell(gc *Context, cell model.DateCell) int {
	changed := 0
	// gc.priorities 已按注册表优先级升序排列
	for _, c := range gc.priorities {
		rule := c.Priority
		if rule == nil || !rule.AppliesTo(cell.StaffID, cell.Date) {
			continue
		}
		prio := gc.Registry.PriorityOf(c)
		current := gc.Schedule.Value(cell)

		switch rule.Kind {
		case model.PriorityAllowOnlyShifts:
			if rule.Allows(current) {
				gc.Claim(cell, prio)
				continue
			}
			if v, ok := s.firstWritable(gc, cell, rule.Shifts); ok {
				if gc.Write(cell, v, prio) {
					changed++
				}
			}

		case model.PriorityAvoidShiftWithExceptions:
			if !contains(rule.Shifts, current) {
				continue
			}
			// 例外表中均匀随机取替换值（由运行种子驱动，可确定性重放）
			candidates := s.permittedCandidates(gc, cell, rule.Exceptions)
			if len(candidates) == 0 {
				continue
			}
			pick := candidates[gc.RNG.Intn(len(candidates))]
			if gc.Write(cell, pick, prio) {
				changed++
			}

		case model.PriorityAvoidShift:
			if !contains(rule.Shifts, current) {
				continue
			}
			fallback := s.permittedCandidates(gc, cell, withoutValues(replacementOrder, rule.Shifts))
			if len(fallback) == 0 {
				continue
			}
			if gc.Write(cell, fallback[0], prio) {
				changed++
			}

		case model.PriorityPreferredShift:
			if v, ok := s.firstWritable(gc, cell, rule.Shifts); ok && current != v {
				if gc.Write(cell, v, prio) {
					changed++
				}
			}

		case model.PriorityRequiredOff:
			if current == model.ShiftOff {
				continue
			}
			if gc.PermittedByPriority(cell, model.ShiftOff) {
				if gc.Write(cell, model.ShiftOff, prio) {
					changed++
				}
			}
		}
	}
	return changed
}

// firstWritable 返回候选序列中第一个与更强规则相容且员工有资格的取值
func (s *PriorityStage) firstWritable(gc *Context, cell model.DateCell, values []model.ShiftValue) (model.ShiftValue, bool) {
	candidates := s.permittedCandidates(gc, cell, values)
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[0], true
}

// permittedCandidates 过滤出与更强规则相容且员工有资格的候选取值
func (s *PriorityStage) permittedCandidates(gc *Context, cell model.DateCell, values []model.ShiftValue) []model.ShiftValue {
	staff := gc.Staff(cell.StaffID)
	if staff == nil {
		return nil
	}
	var result []model.ShiftValue
	for _, v := range values {
		if !v.Valid() || !staff.EligibleFor(v) {
			continue
		}
		if !gc.PermittedByPriority(cell, v) {
			continue
		}
		result = append(result, v)
	}
	return result
}

// contains 检查取值是否在列表中
func contains(values []model.ShiftValue, v model.ShiftValue) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// withoutValues 从候选序列中剔除指定取值
func withoutValues(values, excluded []model.ShiftValue) []model.ShiftValue {
	var result []model.ShiftValue
	for _, v := range values {
		if !contains(excluded, v) {
			result = append(result, v)
		}
	}
	return result
}
