// Package constraints 提供约束类型目录
// 供配置端展示可用约束及其参数，引擎本身不读取该目录
package constraints

import (
	"github.com/lunban/lunban/pkg/engine/registry"
	"github.com/lunban/lunban/pkg/model"
)

// ConstraintParam 约束参数定义
type ConstraintParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // int, string, bool, array
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
	Min         string `json:"min,omitempty"`
	Max         string `json:"max,omitempty"`
}

// ConstraintDefinition 约束定义
type ConstraintDefinition struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Kind        string            `json:"kind"`
	Tier        int               `json:"tier"` // 1 强制, 2 重要, 3 偏好
	Hard        bool              `json:"hard"`
	Priority    int               `json:"priority"` // 生成阶段写入优先级，小者强
	Description string            `json:"description"`
	Params      []ConstraintParam `json:"params"`
}

// LibraryResponse 约束目录响应
type LibraryResponse struct {
	Library []ConstraintDefinition `json:"library"`
}

// GetLibrary 获取完整的约束目录
func GetLibrary() []ConstraintDefinition {
	return []ConstraintDefinition{
		// =====================================================
		// 一级强制约束
		// =====================================================
		{
			Name:        registry.KeyCalendarMandate,
			DisplayName: "日历指令",
			Kind:        "calendar_mandate",
			Tier:        1,
			Hard:        true,
			Priority:    priorityOf(registry.KeyCalendarMandate),
			Description: "指定员工在指定日期必须上班或必须休息。生成前转为锁定单元，任何后续阶段不得改写。",
			Params: []ConstraintParam{
				{Name: "must_work", Type: "array", Description: "必须上班的 员工×日期 单元"},
				{Name: "must_off", Type: "array", Description: "必须休息的 员工×日期 单元"},
			},
		},
		{
			Name:        registry.KeyDailyLimit,
			DisplayName: "每日班值人数限制",
			Kind:        string(model.KindDailyLimit),
			Tier:        1,
			Hard:        true,
			Priority:    priorityOf(registry.KeyDailyLimit),
			Description: "限制作用域内每天排指定班值的人数，下限与上限都可配置。",
			Params: []ConstraintParam{
				{Name: "shift", Type: "string", Description: "班值 (early/late/off/normal)"},
				{Name: "min", Type: "int", Description: "每日下限", Default: "0", Min: "0"},
				{Name: "max", Type: "int", Description: "每日上限，-1 表示不限", Default: "-1"},
				{Name: "weekdays", Type: "array", Description: "生效的星期，空为每天"},
			},
		},
		{
			Name:        registry.KeyWeeklyLimit,
			DisplayName: "滚动窗口班值限制",
			Kind:        string(model.KindWeeklyLimit),
			Tier:        1,
			Hard:        true,
			Priority:    priorityOf(registry.KeyWeeklyLimit),
			Description: "限制每名员工在任意连续窗口内排指定班值的次数。",
			Params: []ConstraintParam{
				{Name: "shift", Type: "string", Description: "班值"},
				{Name: "min", Type: "int", Description: "窗口下限", Default: "0"},
				{Name: "max", Type: "int", Description: "窗口上限，-1 表示不限", Default: "-1"},
				{Name: "window_days", Type: "int", Description: "窗口长度(天)", Default: "7", Min: "2", Max: "31"},
			},
		},
		{
			Name:        registry.KeyMonthlyLimit,
			DisplayName: "月度班值限制",
			Kind:        string(model.KindMonthlyLimit),
			Tier:        1,
			Hard:        true,
			Priority:    priorityOf(registry.KeyMonthlyLimit),
			Description: "限制每名员工在一个自然月内排指定班值的次数，下限只对完整月份生效。",
			Params: []ConstraintParam{
				{Name: "shift", Type: "string", Description: "班值"},
				{Name: "min", Type: "int", Description: "月度下限", Default: "0"},
				{Name: "max", Type: "int", Description: "月度上限，-1 表示不限", Default: "-1"},
			},
		},
		// =====================================================
		// 二级重要约束
		// =====================================================
		{
			Name:        registry.KeyGroupCoverage,
			DisplayName: "小组覆盖规则",
			Kind:        string(model.KindStaffGroup),
			Tier:        2,
			Hard:        false,
			Priority:    priorityOf(registry.KeyGroupCoverage),
			Description: "小组成员休息的日期，指定替补必须排指定班值，保证岗位不空缺。",
			Params: []ConstraintParam{
				{Name: "members", Type: "array", Description: "小组成员"},
				{Name: "backup", Type: "string", Description: "替补员工"},
				{Name: "required_shift", Type: "string", Description: "替补当天的班值"},
			},
		},
		{
			Name:        registry.KeyGroupProximity,
			DisplayName: "小组邻近规则",
			Kind:        string(model.KindStaffGroup),
			Tier:        2,
			Hard:        false,
			Priority:    priorityOf(registry.KeyGroupProximity),
			Description: "触发员工休息时，目标员工须在给定天数内也有休息日。",
			Params: []ConstraintParam{
				{Name: "trigger", Type: "string", Description: "触发员工"},
				{Name: "target", Type: "string", Description: "目标员工"},
				{Name: "max_distance_days", Type: "int", Description: "最大间隔天数", Default: "1", Min: "0"},
			},
		},
		{
			Name:        registry.KeyAllowOnlyShifts,
			DisplayName: "班值白名单",
			Kind:        string(model.KindPriorityRule),
			Tier:        2,
			Hard:        false,
			Priority:    priorityOf(registry.KeyAllowOnlyShifts),
			Description: "指定员工只能被排进白名单内的班值。",
			Params: []ConstraintParam{
				{Name: "staff", Type: "array", Description: "目标员工"},
				{Name: "shifts", Type: "array", Description: "允许的班值集合，不得为空"},
			},
		},
		// =====================================================
		// 三级偏好约束
		// =====================================================
		{
			Name:        registry.KeyAvoidShiftWithExceptions,
			DisplayName: "带例外的班值回避",
			Kind:        string(model.KindPriorityRule),
			Tier:        3,
			Hard:        false,
			Priority:    priorityOf(registry.KeyAvoidShiftWithExceptions),
			Description: "指定员工回避某班值，冲突时从例外集合中随机挑选替代值。",
			Params: []ConstraintParam{
				{Name: "staff", Type: "array", Description: "目标员工"},
				{Name: "shifts", Type: "array", Description: "回避的班值"},
				{Name: "exceptions", Type: "array", Description: "允许的替代班值"},
			},
		},
		{
			Name:        registry.KeyAvoidShift,
			DisplayName: "班值回避",
			Kind:        string(model.KindPriorityRule),
			Tier:        3,
			Hard:        false,
			Priority:    priorityOf(registry.KeyAvoidShift),
			Description: "指定员工尽量不排某班值。",
			Params: []ConstraintParam{
				{Name: "staff", Type: "array", Description: "目标员工"},
				{Name: "shifts", Type: "array", Description: "回避的班值"},
				{Name: "weekdays", Type: "array", Description: "生效的星期，空为每天"},
			},
		},
		{
			Name:        registry.KeyPreferredShift,
			DisplayName: "偏好班值",
			Kind:        string(model.KindPriorityRule),
			Tier:        3,
			Hard:        false,
			Priority:    priorityOf(registry.KeyPreferredShift),
			Description: "指定员工在生效日期尽量排偏好班值，不与更强约束冲突时生效。",
			Params: []ConstraintParam{
				{Name: "staff", Type: "array", Description: "目标员工"},
				{Name: "shifts", Type: "array", Description: "偏好的班值"},
				{Name: "weekdays", Type: "array", Description: "生效的星期，空为每天"},
			},
		},
		{
			Name:        registry.KeyRequiredOff,
			DisplayName: "偏好休息日",
			Kind:        string(model.KindPriorityRule),
			Tier:        3,
			Hard:        false,
			Priority:    priorityOf(registry.KeyRequiredOff),
			Description: "指定员工在生效的星期尽量排休息。",
			Params: []ConstraintParam{
				{Name: "staff", Type: "array", Description: "目标员工"},
				{Name: "weekdays", Type: "array", Description: "生效的星期"},
			},
		},
	}
}

// GetDefinition 按名称查找约束定义
func GetDefinition(name string) (ConstraintDefinition, bool) {
	for _, def := range GetLibrary() {
		if def.Name == name {
			return def, true
		}
	}
	return ConstraintDefinition{}, false
}

// priorityOf 从注册表取生成阶段优先级
func priorityOf(key string) int {
	reg := registry.Default()
	if entry, ok := reg.LookupKey(key); ok {
		return entry.Priority
	}
	return 0
}
