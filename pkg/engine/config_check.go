package engine

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/lunban/lunban/pkg/errors"
	"github.com/lunban/lunban/pkg/model"
)

// checkConfiguration 运行前的约束配置自洽检查
// 发现互相矛盾或不可满足的配置立即失败，不进入生成阶段
// 错误信息携带违规约束ID，便于外围系统定位
func (e *Engine) checkConfiguration(req *Request) error {
	rosterByID := make(map[uuid.UUID]*model.Staff, len(req.Roster))
	for _, s := range req.Roster {
		rosterByID[s.ID] = s
	}
	groups := make(map[string]*model.StaffGroupRule)
	for _, c := range req.Constraints {
		if c != nil && c.Kind == model.KindStaffGroup && c.Group != nil {
			groups[c.Group.Name] = c.Group
		}
	}

	for _, c := range req.Constraints {
		if c == nil {
			return errors.ConfigurationError("", "约束列表包含空项")
		}
		id := c.ID.String()
		switch c.Kind {
		case model.KindDailyLimit:
			if c.Daily == nil {
				return errors.ConfigurationError(id, "daily_limit 约束缺少参数")
			}
			if err := checkDaily(id, c.Daily, req.Roster, rosterByID, groups); err != nil {
				return err
			}
		case model.KindWeeklyLimit:
			if c.Weekly == nil {
				return errors.ConfigurationError(id, "weekly_limit 约束缺少参数")
			}
			if err := checkWindowLimit(id, c.Weekly.Min, c.Weekly.Max, c.Weekly.Window()); err != nil {
				return err
			}
		case model.KindMonthlyLimit:
			if c.Monthly == nil {
				return errors.ConfigurationError(id, "monthly_limit 约束缺少参数")
			}
			if err := checkWindowLimit(id, c.Monthly.Min, c.Monthly.Max, 31); err != nil {
				return err
			}
		case model.KindStaffGroup:
			if c.Group == nil {
				return errors.ConfigurationError(id, "staff_group 约束缺少参数")
			}
			if err := checkGroup(id, c.Group, rosterByID); err != nil {
				return err
			}
		case model.KindPriorityRule:
			if c.Priority == nil {
				return errors.ConfigurationError(id, "priority_rule 约束缺少参数")
			}
			if err := checkPriorityRule(id, c.Priority, rosterByID); err != nil {
				return err
			}
		default:
			return errors.ConfigurationError(id, fmt.Sprintf("未知约束类型 '%s'", c.Kind))
		}
	}
	return nil
}

// checkDaily 每日限制：下限不得超过上限，也不得超过范围内合格员工数
func checkDaily(id string, d *model.DailyLimit, roster []*model.Staff,
	byID map[uuid.UUID]*model.Staff, groups map[string]*model.StaffGroupRule) error {

	if d.Min < 0 {
		return errors.ConfigurationError(id, "每日下限不能为负")
	}
	if d.Max >= 0 && d.Min > d.Max {
		return errors.ConfigurationError(id, fmt.Sprintf("每日下限 %d 大于上限 %d", d.Min, d.Max))
	}
	if d.Scope.Type == model.ScopeGroup {
		if _, ok := groups[d.Scope.GroupName]; !ok {
			return errors.ConfigurationError(id, fmt.Sprintf("作用域引用了未定义的小组 '%s'", d.Scope.GroupName))
		}
	}
	eligible := 0
	for sid := range model.ResolveScope(d.Scope, roster, groups) {
		staff, ok := byID[sid]
		if !ok {
			return errors.ConfigurationError(id, fmt.Sprintf("作用域引用了花名册之外的员工 %s", sid))
		}
		if staff.EligibleFor(d.Shift) {
			eligible++
		}
	}
	if d.Min > eligible {
		return errors.ConfigurationError(id,
			fmt.Sprintf("每日下限 %d 超过作用域内可排 '%s' 的员工数 %d", d.Min, d.Shift, eligible))
	}
	return nil
}

// checkWindowLimit 滑动窗口/月度限制的界检查
func checkWindowLimit(id string, min, max, window int) error {
	if min < 0 {
		return errors.ConfigurationError(id, "下限不能为负")
	}
	if max >= 0 && min > max {
		return errors.ConfigurationError(id, fmt.Sprintf("下限 %d 大于上限 %d", min, max))
	}
	if min > window {
		return errors.ConfigurationError(id, fmt.Sprintf("下限 %d 超过窗口长度 %d", min, window))
	}
	return nil
}

// checkGroup 小组规则：成员必须在花名册内，覆盖替补必须能排所需班值
func checkGroup(id string, g *model.StaffGroupRule, byID map[uuid.UUID]*model.Staff) error {
	if g.Name == "" {
		return errors.ConfigurationError(id, "小组名称为空")
	}
	for _, m := range g.MemberIDs {
		if _, ok := byID[m]; !ok {
			return errors.ConfigurationError(id, fmt.Sprintf("小组 '%s' 引用了花名册之外的成员 %s", g.Name, m))
		}
	}
	if cov := g.Coverage; cov != nil {
		backup, ok := byID[cov.BackupID]
		if !ok {
			return errors.ConfigurationError(id, fmt.Sprintf("覆盖规则引用了花名册之外的替补 %s", cov.BackupID))
		}
		if !backup.EligibleFor(cov.RequiredShift) {
			return errors.ConfigurationError(id,
				fmt.Sprintf("替补 %s 不具备排 '%s' 的资格", backup.Name, cov.RequiredShift))
		}
	}
	if prox := g.Proximity; prox != nil {
		if _, ok := byID[prox.TriggerID]; !ok {
			return errors.ConfigurationError(id, fmt.Sprintf("邻近规则引用了花名册之外的触发员工 %s", prox.TriggerID))
		}
		if _, ok := byID[prox.TargetID]; !ok {
			return errors.ConfigurationError(id, fmt.Sprintf("邻近规则引用了花名册之外的目标员工 %s", prox.TargetID))
		}
		if prox.MaxDistanceDays < 0 {
			return errors.ConfigurationError(id, "邻近距离不能为负")
		}
	}
	return nil
}

// checkPriorityRule 优先级规则：白名单不得为空集，且目标员工至少能排其中一个值
func checkPriorityRule(id string, p *model.PriorityRule, byID map[uuid.UUID]*model.Staff) error {
	for _, sid := range p.StaffIDs {
		if _, ok := byID[sid]; !ok {
			return errors.ConfigurationError(id, fmt.Sprintf("规则引用了花名册之外的员工 %s", sid))
		}
	}
	switch p.Kind {
	case model.PriorityAllowOnlyShifts:
		if len(p.Shifts) == 0 {
			return errors.ConfigurationError(id, "allow_only_shifts 规则的白名单为空，所有赋值都将不可行")
		}
		for _, sid := range p.StaffIDs {
			staff := byID[sid]
			any := false
			for _, v := range p.Shifts {
				if staff.EligibleFor(v) {
					any = true
					break
				}
			}
			if !any {
				return errors.ConfigurationError(id,
					fmt.Sprintf("员工 %s 不具备白名单内任何班值的资格", staff.Name))
			}
		}
	case model.PriorityAvoidShift, model.PriorityPreferredShift:
		if len(p.Shifts) == 0 {
			return errors.ConfigurationError(id, "规则未指定班值")
		}
	case model.PriorityAvoidShiftWithExceptions:
		if len(p.Shifts) == 0 {
			return errors.ConfigurationError(id, "规则未指定回避班值")
		}
	case model.PriorityRequiredOff:
		// 无额外参数
	default:
		return errors.ConfigurationError(id, fmt.Sprintf("未知优先级规则类型 '%s'", p.Kind))
	}
	return nil
}
