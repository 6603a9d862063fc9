package validate

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lunban/lunban/pkg/model"
)

// check 评估单个约束，返回其全部违反
func (v *Validator) check(c *model.Constraint, sched *model.Schedule, roster []*model.Staff,
	groups map[string]*model.StaffGroupRule) []model.Violation {

	switch c.Kind {
	case model.KindDailyLimit:
		return v.checkDaily(c, sched, roster, groups)
	case model.KindWeeklyLimit:
		return v.checkWeekly(c, sched, roster, groups)
	case model.KindMonthlyLimit:
		return v.checkMonthly(c, sched, roster, groups)
	case model.KindStaffGroup:
		return v.checkGroup(c, sched)
	case model.KindPriorityRule:
		return v.checkPriority(c, sched, roster)
	}
	return nil
}

// checkDaily 单日限额检查
func (v *Validator) checkDaily(c *model.Constraint, sched *model.Schedule, roster []*model.Staff,
	groups map[string]*model.StaffGroupRule) []model.Violation {

	limit := c.Daily
	if limit == nil {
		return nil
	}
	scope := model.ResolveScope(limit.Scope, roster, groups)
	var violations []model.Violation

	for _, date := range sched.Dates() {
		if !limit.AppliesTo(date) {
			continue
		}
		var holding, inScope []model.DateCell
		for _, id := range sched.StaffIDs() {
			if !scope[id] {
				continue
			}
			cell := model.DateCell{StaffID: id, Date: date}
			inScope = append(inScope, cell)
			if sched.Value(cell) == limit.Shift {
				holding = append(holding, cell)
			}
		}
		count := len(holding)
		if limit.Max >= 0 && count > limit.Max {
			violations = append(violations, v.newViolation(c, holding,
				fmt.Sprintf("%s 日 %s 班次 %d 人，超过上限 %d", date, limit.Shift, count, limit.Max)))
		}
		if count < limit.Min {
			violations = append(violations, v.newViolation(c, inScope,
				fmt.Sprintf("%s 日 %s 班次 %d 人，低于下限 %d", date, limit.Shift, count, limit.Min)))
		}
	}
	return violations
}

// checkWeekly 滚动窗口限额检查
// 同一员工只报告首个越界窗口；修复引擎会迭代复验，逐窗口收敛
func (v *Validator) checkWeekly(c *model.Constraint, sched *model.Schedule, roster []*model.Staff,
	groups map[string]*model.StaffGroupRule) []model.Violation {

	limit := c.Weekly
	if limit == nil {
		return nil
	}
	scope := model.ResolveScope(limit.Scope, roster, groups)
	window := limit.Window()
	dates := sched.Dates()
	var violations []model.Violation

	for _, id := range sched.StaffIDs() {
		if !scope[id] {
			continue
		}
		for i := 0; i < len(dates); i++ {
			end := i + window
			full := end <= len(dates)
			if end > len(dates) {
				end = len(dates)
			}
			win := dates[i:end]
			if vio, ok := v.windowViolation(c, sched, id, win, limit.Shift, limit.Min, limit.Max, full,
				fmt.Sprintf("%d 天窗口", window)); ok {
				violations = append(violations, vio)
				break
			}
		}
	}
	return violations
}

// checkMonthly 月度限额检查；不完整月份只检查上限
func (v *Validator) checkMonthly(c *model.Constraint, sched *model.Schedule, roster []*model.Staff,
	groups map[string]*model.StaffGroupRule) []model.Violation {

	limit := c.Monthly
	if limit == nil {
		return nil
	}
	scope := model.ResolveScope(limit.Scope, roster, groups)
	var violations []model.Violation

	byMonth := make(map[string][]string)
	var monthOrder []string
	for _, d := range sched.Dates() {
		m := model.MonthOf(d)
		if _, ok := byMonth[m]; !ok {
			monthOrder = append(monthOrder, m)
		}
		byMonth[m] = append(byMonth[m], d)
	}

	for _, id := range sched.StaffIDs() {
		if !scope[id] {
			continue
		}
		for _, m := range monthOrder {
			dates := byMonth[m]
			full := len(dates) == daysInMonth(m)
			if vio, ok := v.windowViolation(c, sched, id, dates, limit.Shift, limit.Min, limit.Max, full,
				fmt.Sprintf("%s 月", m)); ok {
				violations = append(violations, vio)
			}
		}
	}
	return violations
}

// windowViolation 检查单员工在一组日期上的 [Min, Max] 约束
func (v *Validator) windowViolation(c *model.Constraint, sched *model.Schedule, staffID uuid.UUID,
	dates []string, shift model.ShiftValue, min, max int, enforceMin bool, label string) (model.Violation, bool) {

	var holding []model.DateCell
	for _, d := range dates {
		cell := model.DateCell{StaffID: staffID, Date: d}
		if sched.Value(cell) == shift {
			holding = append(holding, cell)
		}
	}
	count := len(holding)

	if max >= 0 && count > max {
		return v.newViolation(c, holding,
			fmt.Sprintf("员工 %s 在%s内 %s 班次 %d 天，超过上限 %d", staffID, label, shift, count, max)), true
	}
	if enforceMin && count < min {
		cells := make([]model.DateCell, 0, len(dates))
		for _, d := range dates {
			cells = append(cells, model.DateCell{StaffID: staffID, Date: d})
		}
		return v.newViolation(c, cells,
			fmt.Sprintf("员工 %s 在%s内 %s 班次 %d 天，低于下限 %d", staffID, label, shift, count, min)), true
	}
	return model.Violation{}, false
}

// checkGroup 员工组规则检查（顶班 + 邻近）
func (v *Validator) checkGroup(c *model.Constraint, sched *model.Schedule) []model.Violation {
	rule := c.Group
	if rule == nil {
		return nil
	}
	var violations []model.Violation

	if cov := rule.Coverage; cov != nil {
		for _, date := range sched.Dates() {
			memberOff := false
			for _, id := range rule.MemberIDs {
				if id == cov.BackupID {
					continue
				}
				if sched.Value(model.DateCell{StaffID: id, Date: date}) == model.ShiftOff {
					memberOff = true
					break
				}
			}
			if !memberOff {
				continue
			}
			backup := model.DateCell{StaffID: cov.BackupID, Date: date}
			if sched.Value(backup) != cov.RequiredShift {
				violations = append(violations, v.newViolation(c, []model.DateCell{backup},
					fmt.Sprintf("%s 组内有成员休息，替补未承担 %s 班次 (%s)", rule.Name, cov.RequiredShift, date)))
			}
		}
	}

	if prox := rule.Proximity; prox != nil {
		for _, date := range sched.Dates() {
			trigger := model.DateCell{StaffID: prox.TriggerID, Date: date}
			if sched.Value(trigger) != model.ShiftOff {
				continue
			}
			if hasOffNear(sched, prox.TargetID, date, prox.MaxDistanceDays) {
				continue
			}
			target := model.DateCell{StaffID: prox.TargetID, Date: date}
			violations = append(violations, v.newViolation(c, []model.DateCell{trigger, target},
				fmt.Sprintf("%s 组邻近模式未满足：目标员工在 %s ±%d 天内没有休息日", rule.Name, date, prox.MaxDistanceDays)))
		}
	}
	return violations
}

// hasOffNear 检查员工在 date ±n 天（且在范围内）是否有休息日
func hasOffNear(sched *model.Schedule, staffID uuid.UUID, date string, n int) bool {
	for _, d := range sched.Dates() {
		if within(d, date, n) && sched.Value(model.DateCell{StaffID: staffID, Date: d}) == model.ShiftOff {
			return true
		}
	}
	return false
}

// within 检查日期 d 是否落在 center ±n 天内
func within(d, center string, n int) bool {
	td, err1 := time.Parse("2006-01-02", d)
	tc, err2 := time.Parse("2006-01-02", center)
	if err1 != nil || err2 != nil {
		return false
	}
	diff := int(td.Sub(tc).Hours() / 24)
	if diff < 0 {
		diff = -diff
	}
	return diff <= n
}

// daysInMonth 返回自然月 (YYYY-MM) 的天数
func daysInMonth(month string) int {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return 0
	}
	return t.AddDate(0, 1, -1).Day()
}

// checkPriority 优先规则检查
func (v *Validator) checkPriority(c *model.Constraint, sched *model.Schedule, roster []*model.Staff) []model.Violation {
	rule := c.Priority
	if rule == nil {
		return nil
	}
	var violations []model.Violation

	for _, staff := range roster {
		for _, date := range sched.Dates() {
			if !rule.AppliesTo(staff.ID, date) {
				continue
			}
			cell := model.DateCell{StaffID: staff.ID, Date: date}
			value := sched.Value(cell)

			switch rule.Kind {
			case model.PriorityAllowOnlyShifts:
				if !rule.Allows(value) {
					violations = append(violations, v.newViolation(c, []model.DateCell{cell},
						fmt.Sprintf("%s 不在允许班次集内 (%s)", value, date)))
				}
			case model.PriorityAvoidShift, model.PriorityAvoidShiftWithExceptions:
				for _, avoided := range rule.Shifts {
					if value == avoided {
						violations = append(violations, v.newViolation(c, []model.DateCell{cell},
							fmt.Sprintf("班次 %s 应被回避 (%s)", value, date)))
						break
					}
				}
			case model.PriorityPreferredShift:
				if len(rule.Shifts) > 0 && value != rule.Shifts[0] && staff.EligibleFor(rule.Shifts[0]) {
					violations = append(violations, v.newViolation(c, []model.DateCell{cell},
						fmt.Sprintf("偏好班次 %s 未被满足，当前为 %s (%s)", rule.Shifts[0], value, date)))
				}
			case model.PriorityRequiredOff:
				if value != model.ShiftOff {
					violations = append(violations, v.newViolation(c, []model.DateCell{cell},
						fmt.Sprintf("应安排休息日，当前为 %s (%s)", value, date)))
				}
			}
		}
	}
	return violations
}
