package generator

import (
	"sort"

	"github.com/google/uuid"
	"github.com/lunban/lunban/pkg/model"
)

// FairnessStage 休息日公平分配阶段
// 按运行中的休息日欠账把剩余休息日分给落后的员工：只动未声明的
// 正常班单元，目标日期取当日休息人数最少者，绝不触碰锁定或已声明单元
type FairnessStage struct{}

// Name 返回阶段名称
func (s *FairnessStage) Name() string { return "off_day_fairness" }

// Apply 将低于人均下限的员工补齐休息日
func (s *FairnessStage) Apply(gc *Context) int {
	if len(gc.Roster) == 0 || len(gc.Dates) == 0 {
		return 0
	}

	first, last := gc.Dates[0], gc.Dates[len(gc.Dates)-1]
	offCounts := make(map[uuid.UUID]int, len(gc.Roster))
	total := 0
	for _, staff := range gc.Roster {
		n := gc.Schedule.CountForStaff(staff.ID, model.ShiftOff, first, last)
		offCounts[staff.ID] = n
		total += n
	}
	floor := total / len(gc.Roster)
	if floor == 0 {
		return 0
	}

	// 欠账大的员工先补，欠账相同按花名册顺序
	type debtor struct {
		staff *model.Staff
		debt  int
		index int
	}
	var debtors []debtor
	for i, staff := range gc.Roster {
		if d := floor - offCounts[staff.ID]; d > 0 {
			debtors = append(debtors, debtor{staff: staff, debt: d, index: i})
		}
	}
	sort.Slice(debtors, func(i, j int) bool {
		if debtors[i].debt != debtors[j].debt {
			return debtors[i].debt > debtors[j].debt
		}
		return debtors[i].index < debtors[j].index
	})

	changed := 0
	for _, d := range debtors {
		for need := d.debt; need > 0; need-- {
			cell, ok := s.pickOffTarget(gc, d.staff.ID)
			if !ok {
				break
			}
			if !gc.Write(cell, model.ShiftOff, fairnessPriority) {
				break
			}
			changed++
		}
	}
	return changed
}

// pickOffTarget 为员工选择补休日期：未声明的正常班单元中，
// 当日休息人数最少者优先，再按日期先后保证确定性
func (s *FairnessStage) pickOffTarget(gc *Context, staffID uuid.UUID) (model.DateCell, bool) {
	type target struct {
		cell model.DateCell
		load int
		date string
	}
	var targets []target
	for _, date := range gc.Dates {
		cell := model.DateCell{StaffID: staffID, Date: date}
		if gc.Schedule.Value(cell) != model.ShiftNormal {
			continue
		}
		if gc.ClaimOf(cell) != unclaimed || gc.Locks.IsLocked(cell) {
			continue
		}
		if !gc.PermittedByPriority(cell, model.ShiftOff) {
			continue
		}
		if s.breaksDailyOffLimit(gc, date) {
			continue
		}
		targets = append(targets, target{
			cell: cell,
			load: gc.Schedule.CountOnDate(date, model.ShiftOff),
			date: date,
		})
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

// breaksDailyOffLimit 检查在该日期再加一个休息日是否会顶破任何单日休息上限
func (s *FairnessStage) breaksDailyOffLimit(gc *Context, date string) bool {
	for _, c := range gc.dailies {
		limit := c.Daily
		if limit == nil || limit.Shift != model.ShiftOff || limit.Max < 0 {
			continue
		}
		if !limit.AppliesTo(date) {
			continue
		}
		if gc.Schedule.CountOnDate(date, model.ShiftOff)+1 > limit.Max {
			return true
		}
	}
	return false
}
