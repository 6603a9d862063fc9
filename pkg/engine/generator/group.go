package generator

import (
	"time"

	"github.com/google/uuid"
	"github.com/lunban/lunban/pkg/engine/registry"
	"github.com/lunban/lunban/pkg/model"
)

// GroupStage 员工组规则阶段：执行顶班与邻近子句
type GroupStage struct{}

// Name 返回阶段名称
func (s *GroupStage) Name() string { return "staff_group" }

// Apply 对每个员工组规则执行顶班与邻近修正
func (s *GroupStage) Apply(gc *Context) int {
	changed := 0
	for _, c := range gc.groups {
		rule := c.Group
		if rule == nil {
			continue
		}
		if rule.Coverage != nil {
			changed += s.applyCoverage(gc, rule)
		}
		if rule.Proximity != nil {
			changed += s.applyProximity(gc, rule.Proximity)
		}
	}
	return changed
}

// applyCoverage 组内成员休息的日期，替补员工必须承担指定班次
func (s *GroupStage) applyCoverage(gc *Context, rule *model.StaffGroupRule) int {
	entry, _ := gc.Registry.LookupKey(registry.KeyGroupCoverage)
	cov := rule.Coverage
	changed := 0

	for _, date := range gc.Dates {
		memberOff := false
		for _, id := range rule.MemberIDs {
			if id == cov.BackupID {
				continue
			}
			if gc.Schedule.Value(model.DateCell{StaffID: id, Date: date}) == model.ShiftOff {
				memberOff = true
				break
			}
		}
		if !memberOff {
			continue
		}
		backupCell := model.DateCell{StaffID: cov.BackupID, Date: date}
		if gc.Write(backupCell, cov.RequiredShift, entry.Priority) {
			changed++
		}
	}
	return changed
}

// applyProximity 触发员工休息时，确保目标员工在 ±N 天窗口内也有休息日
func (s *GroupStage) applyProximity(gc *Context, pattern *model.ProximityPattern) int {
	entry, _ := gc.Registry.LookupKey(registry.KeyGroupProximity)
	changed := 0

	for _, date := range gc.Dates {
		trigger := model.DateCell{StaffID: pattern.TriggerID, Date: date}
		if gc.Schedule.Value(trigger) != model.ShiftOff {
			continue
		}
		if s.hasOffInWindow(gc, pattern.TargetID, date, pattern.MaxDistanceDays) {
			continue
		}
		// 按距离由近及远尝试窗口内的日期：d, d-1, d+1, d-2, d+2 ...
		for _, candidate := range windowDates(date, pattern.MaxDistanceDays) {
			if !inHorizon(gc.Dates, candidate) {
				continue
			}
			cell := model.DateCell{StaffID: pattern.TargetID, Date: candidate}
			if !gc.PermittedByPriority(cell, model.ShiftOff) {
				continue
			}
			if gc.Write(cell, model.ShiftOff, entry.Priority) {
				changed++
				break
			}
		}
	}
	return changed
}

// hasOffInWindow 检查目标员工在 [date-n, date+n] ∩ 排班范围内是否已有休息日
func (s *GroupStage) hasOffInWindow(gc *Context, staffID uuid.UUID, date string, n int) bool {
	for _, d := range windowDates(date, n) {
		if !inHorizon(gc.Dates, d) {
			continue
		}
		if gc.Schedule.Value(model.DateCell{StaffID: staffID, Date: d}) == model.ShiftOff {
			return true
		}
	}
	return false
}

// windowDates 返回以 date 为中心、半径 n 天的日期序列，按距离升序
func windowDates(date string, n int) []string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil
	}
	dates := []string{date}
	for offset := 1; offset <= n; offset++ {
		dates = append(dates,
			t.AddDate(0, 0, -offset).Format("2006-01-02"),
			t.AddDate(0, 0, offset).Format("2006-01-02"))
	}
	return dates
}

// inHorizon 检查日期是否在排班范围内
func inHorizon(dates []string, date string) bool {
	for _, d := range dates {
		if d == date {
			return true
		}
	}
	return false
}
