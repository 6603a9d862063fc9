package generator

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lunban/lunban/pkg/model"
)

// LimitStage 限额阶段：执行单日/滚动窗口/月度班次数约束
// 超额单元被重新分配到负载最低的合规员工或日期
type LimitStage struct{}

// Name 返回阶段名称
func (s *LimitStage) Name() string { return "limits" }

// Apply 依次执行单日、滚动窗口、月度限额
func (s *LimitStage) Apply(gc *Context) int {
	changed := 0
	for _, c := range gc.dailies {
		changed += s.applyDaily(gc, c)
	}
	for _, c := range gc.weeklies {
		changed += s.applyWeekly(gc, c)
	}
	for _, c := range gc.monthlies {
		changed += s.applyMonthly(gc, c)
	}
	return changed
}

// applyDaily 执行单日限额：每个适用日期上取值为目标班次的员工数落入 [Min, Max]
func (s *LimitStage) applyDaily(gc *Context, c *model.Constraint) int {
	limit := c.Daily
	if limit == nil {
		return 0
	}
	prio := gc.Registry.PriorityOf(c)
	scope := model.ResolveScope(limit.Scope, gc.Roster, gc.groupsByName)
	changed := 0

	for _, date := range gc.Dates {
		if !limit.AppliesTo(date) {
			continue
		}
		count := s.countOnDate(gc, scope, date, limit.Shift)

		// 超出上限：剥离超额单元并尽量改移到其他日期
		if limit.Max >= 0 {
			for count > limit.Max {
				cell, ok := s.pickStripCandidate(gc, scope, date, limit.Shift, prio)
				if !ok {
					break
				}
				if !s.stripCell(gc, c, cell, prio) {
					break
				}
				changed++
				count--
			}
		}

		// 低于下限：给负载最低的合规员工补上目标班次
		for count < limit.Min {
			cell, ok := s.pickFillCandidate(gc, scope, date, limit.Shift, prio)
			if !ok {
				break
			}
			if !gc.Write(cell, limit.Shift, prio) {
				break
			}
			changed++
			count++
		}
	}
	return changed
}

// countOnDate 统计某日期作用域内取值为 v 的员工数
func (s *LimitStage) countOnDate(gc *Context, scope map[uuid.UUID]bool, date string, v model.ShiftValue) int {
	count := 0
	for _, staff := range gc.Roster {
		if !scope[staff.ID] {
			continue
		}
		if gc.Schedule.Value(model.DateCell{StaffID: staff.ID, Date: date}) == v {
			count++
		}
	}
	return count
}

// pickStripCandidate 选择要剥离的单元：声明最弱者优先，
// 其次是该班次在整个范围内负载最高的员工，再按花名册顺序保证确定性
func (s *LimitStage) pickStripCandidate(gc *Context, scope map[uuid.UUID]bool, date string, v model.ShiftValue, prio int) (model.DateCell, bool) {
	type candidate struct {
		cell  model.DateCell
		claim int
		load  int
		index int
	}
	var candidates []candidate
	for i, staff := range gc.Roster {
		if !scope[staff.ID] {
			continue
		}
		cell := model.DateCell{StaffID: staff.ID, Date: date}
		if gc.Schedule.Value(cell) != v {
			continue
		}
		if !gc.CanWrite(cell, prio) {
			continue
		}
		candidates = append(candidates, candidate{
			cell:  cell,
			claim: gc.ClaimOf(cell),
			load:  gc.Schedule.CountForStaff(staff.ID, v, gc.Dates[0], gc.Dates[len(gc.Dates)-1]),
			index: i,
		})
	}
	if len(candidates) == 0 {
		return model.DateCell{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].claim != candidates[j].claim {
			return candidates[i].claim > candidates[j].claim // 声明弱者（编号大）在前
		}
		if candidates[i].load != candidates[j].load {
			return candidates[i].load > candidates[j].load
		}
		return candidates[i].index < candidates[j].index
	})
	return candidates[0].cell, true
}

// stripCell 剥离单元的目标班次
// 休息日尽量平移到同员工负载最低的其他日期，其余班次退为首个可行替换值
func (s *LimitStage) stripCell(gc *Context, c *model.Constraint, cell model.DateCell, prio int) bool {
	limit := c.Daily
	stripped := gc.Schedule.Value(cell)

	if stripped == model.ShiftOff {
		if target, ok := s.relocationTarget(gc, c, cell); ok {
			if gc.Write(target, model.ShiftOff, prio) {
				gc.Write(cell, model.ShiftNormal, prio)
				return true
			}
		}
	}

	for _, v := range replacementOrder {
		if v == stripped || (limit != nil && v == limit.Shift) {
			continue
		}
		staff := gc.Staff(cell.StaffID)
		if staff == nil || !staff.EligibleFor(v) {
			continue
		}
		if !gc.PermittedByPriority(cell, v) {
			continue
		}
		if gc.Write(cell, v, prio) {
			return true
		}
	}
	return false
}

// relocationTarget 为被剥离的休息日寻找迁移目标：
// 同员工在其他日期的正常班单元，目标日期的休息人数最少且未达上限
func (s *LimitStage) relocationTarget(gc *Context, c *model.Constraint, from model.DateCell) (model.DateCell, bool) {
	limit := c.Daily
	type target struct {
		cell model.DateCell
		load int
		date string
	}
	var targets []target
	for _, date := range gc.Dates {
		if date == from.Date {
			continue
		}
		cell := model.DateCell{StaffID: from.StaffID, Date: date}
		if gc.Schedule.Value(cell) != model.ShiftNormal {
			continue
		}
		if gc.ClaimOf(cell) != unclaimed {
			continue
		}
		if gc.Locks.IsLocked(cell) {
			continue
		}
		if !gc.PermittedByPriority(cell, model.ShiftOff) {
			continue
		}
		load := gc.Schedule.CountOnDate(date, model.ShiftOff)
		if limit != nil && limit.AppliesTo(date) && limit.Max >= 0 && load >= limit.Max {
			continue
		}
		targets = append(targets, target{cell: cell, load: load, date: date})
	}
	if len(targets) == 0 {
		return model.DateCell{}, false
	}
	sort.Slice(targets, func(i, j int) bool {
		if targets[i].load != targets[j].load {
			return targets[i].load < targets[j].load
		}
		return targets[i].date < targets[j].date
	})
	return targets[0].cell, true
}

// pickFillCandidate 选择补班员工：未声明的正常班单元优先，负载最低者在前
func (s *LimitStage) pickFillCandidate(gc *Context, scope map[uuid.UUID]bool, date string, v model.ShiftValue, prio int) (model.DateCell, bool) {
	type candidate struct {
		cell      model.DateCell
		unclaimed bool
		load      int
		index     int
	}
	var candidates []candidate
	for i, staff := range gc.Roster {
		if !scope[staff.ID] || !staff.EligibleFor(v) {
			continue
		}
		cell := model.DateCell{StaffID: staff.ID, Date: date}
		if gc.Schedule.Value(cell) == v {
			continue
		}
		if !gc.CanWrite(cell, prio) {
			continue
		}
		if !gc.PermittedByPriority(cell, v) {
			continue
		}
		candidates = append(candidates, candidate{
			cell:      cell,
			unclaimed: gc.ClaimOf(cell) == unclaimed,
			load:      gc.Schedule.CountForStaff(staff.ID, v, gc.Dates[0], gc.Dates[len(gc.Dates)-1]),
			index:     i,
		})
	}
	if len(candidates) == 0 {
		return model.DateCell{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].unclaimed != candidates[j].unclaimed {
			return candidates[i].unclaimed
		}
		if candidates[i].load != candidates[j].load {
			return candidates[i].load < candidates[j].load
		}
		return candidates[i].index < candidates[j].index
	})
	return candidates[0].cell, true
}

// applyWeekly 执行滚动窗口限额：单个员工在任意 W 天窗口内的目标班次天数
// 不超过 Max；完整窗口内不低于 Min
func (s *LimitStage) applyWeekly(gc *Context, c *model.Constraint) int {
	limit := c.Weekly
	if limit == nil {
		return 0
	}
	prio := gc.Registry.PriorityOf(c)
	scope := model.ResolveScope(limit.Scope, gc.Roster, gc.groupsByName)
	window := limit.Window()
	changed := 0

	for _, staff := range gc.Roster {
		if !scope[staff.ID] {
			continue
		}
		for i := 0; i < len(gc.Dates); i++ {
			end := i + window
			full := end <= len(gc.Dates)
			if end > len(gc.Dates) {
				end = len(gc.Dates)
			}
			windowDates := gc.Dates[i:end]
			changed += s.enforceStaffWindow(gc, c, staff.ID, windowDates, limit.Shift, limit.Min, limit.Max, full, prio)
		}
	}
	return changed
}

// applyMonthly 执行月度限额：单个员工在一个自然月内的目标班次天数
// 不超过 Max；仅当整月都在排班范围内时才执行 Min
func (s *LimitStage) applyMonthly(gc *Context, c *model.Constraint) int {
	limit := c.Monthly
	if limit == nil {
		return 0
	}
	prio := gc.Registry.PriorityOf(c)
	scope := model.ResolveScope(limit.Scope, gc.Roster, gc.groupsByName)
	changed := 0

	months := groupByMonth(gc.Dates)
	for _, staff := range gc.Roster {
		if !scope[staff.ID] {
			continue
		}
		for _, m := range months {
			full := len(m.dates) == daysInMonth(m.month)
			changed += s.enforceStaffWindow(gc, c, staff.ID, m.dates, limit.Shift, limit.Min, limit.Max, full, prio)
		}
	}
	return changed
}

// enforceStaffWindow 在一组日期上执行单员工的 [Min, Max] 班次天数约束
func (s *LimitStage) enforceStaffWindow(gc *Context, c *model.Constraint, staffID uuid.UUID,
	dates []string, shift model.ShiftValue, min, max int, enforceMin bool, prio int) int {

	changed := 0
	count := 0
	for _, d := range dates {
		if gc.Schedule.Value(model.DateCell{StaffID: staffID, Date: d}) == shift {
			count++
		}
	}

	// 超出上限：从窗口末尾往前剥离声明最弱的单元
	if max >= 0 && count > max {
		for i := len(dates) - 1; i >= 0 && count > max; i-- {
			cell := model.DateCell{StaffID: staffID, Date: dates[i]}
			if gc.Schedule.Value(cell) != shift {
				continue
			}
			if s.stripWindowCell(gc, cell, shift, prio) {
				changed++
				count--
			}
		}
	}

	// 低于下限：在窗口内未声明的正常班单元上补齐
	if enforceMin && count < min {
		for _, d := range dates {
			if count >= min {
				break
			}
			cell := model.DateCell{StaffID: staffID, Date: d}
			if gc.Schedule.Value(cell) == shift {
				continue
			}
			if gc.Schedule.Value(cell) != model.ShiftNormal || gc.ClaimOf(cell) != unclaimed {
				continue
			}
			if !gc.PermittedByPriority(cell, shift) {
				continue
			}
			if gc.Write(cell, shift, prio) {
				changed++
				count++
			}
		}
	}
	return changed
}

// stripWindowCell 将窗口内的超额单元退为首个可行替换值
func (s *LimitStage) stripWindowCell(gc *Context, cell model.DateCell, shift model.ShiftValue, prio int) bool {
	staff := gc.Staff(cell.StaffID)
	if staff == nil {
		return false
	}
	for _, v := range replacementOrder {
		if v == shift || !staff.EligibleFor(v) {
			continue
		}
		if !gc.PermittedByPriority(cell, v) {
			continue
		}
		if gc.Write(cell, v, prio) {
			return true
		}
	}
	return false
}

// monthGroup 一个自然月在排班范围内的日期
type monthGroup struct {
	month string
	dates []string
}

// groupByMonth 将日期序列按自然月分组，保持原有顺序
func groupByMonth(dates []string) []monthGroup {
	var groups []monthGroup
	index := make(map[string]int)
	for _, d := range dates {
		m := model.MonthOf(d)
		if i, ok := index[m]; ok {
			groups[i].dates = append(groups[i].dates, d)
		} else {
			index[m] = len(groups)
			groups = append(groups, monthGroup{month: m, dates: []string{d}})
		}
	}
	return groups
}

// daysInMonth 返回自然月的天数
func daysInMonth(month string) int {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return 0
	}
	return t.AddDate(0, 1, -1).Day()
}
