// Package lock 提供生成前锁定器
// 根据日历指令计算在生成开始前就固定取值的 (员工, 日期) 单元集合。
// 锁定单元只能由锁定器写入，下游每次写排班表前都必须先查询锁定状态。
package lock

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/lunban/lunban/pkg/errors"
	"github.com/lunban/lunban/pkg/model"
)

// Mandates 日历指令
type Mandates struct {
	MustWork []model.DateCell `json:"must_work"`
	MustOff  []model.DateCell `json:"must_off"`
}

// Set 锁定单元集合（计算后只读）
type Set struct {
	values map[model.DateCell]model.ShiftValue
	order  []model.LockedCell
}

// Compute 由日历指令计算锁定集合
// 规则：must-work → 正常班；must-off → 无早班资格者锁 Off，
// 有早班资格者锁 Early（业务规则的非对称处理，保持原语义）。
// 同一单元同时出现在 must-work 与 must-off 中视为配置冲突。
// 对相同指令幂等：同一输入总是产出同一集合。
func Compute(roster []*model.Staff, mandates Mandates) (*Set, error) {
	staffByID := make(map[uuid.UUID]*model.Staff, len(roster))
	for _, s := range roster {
		staffByID[s.ID] = s
	}

	set := &Set{values: make(map[model.DateCell]model.ShiftValue)}
	seen := make(map[model.DateCell]string)

	for _, cell := range mandates.MustWork {
		if _, ok := staffByID[cell.StaffID]; !ok {
			return nil, errors.ConfigurationError("calendar_mandate",
				fmt.Sprintf("must-work 指令引用了花名册外的员工 %s", cell.StaffID))
		}
		if set.add(cell, model.ShiftNormal, "must_work") {
			seen[cell] = "must_work"
		}
	}

	for _, cell := range mandates.MustOff {
		staff, ok := staffByID[cell.StaffID]
		if !ok {
			return nil, errors.ConfigurationError("calendar_mandate",
				fmt.Sprintf("must-off 指令引用了花名册外的员工 %s", cell.StaffID))
		}
		if prev, dup := seen[cell]; dup && prev == "must_work" {
			return nil, errors.ConfigurationError("calendar_mandate",
				fmt.Sprintf("单元 %s 同时被 must-work 与 must-off 指令锁定", cell))
		}

		value := model.ShiftOff
		if staff.CanWorkEarly {
			value = model.ShiftEarly
		}
		if set.add(cell, value, "must_off") {
			seen[cell] = "must_off"
		}
	}

	return set, nil
}

// add 登记锁定单元；重复登记同一单元时保留首个取值
func (s *Set) add(cell model.DateCell, v model.ShiftValue, reason string) bool {
	if _, exists := s.values[cell]; exists {
		return false
	}
	s.values[cell] = v
	s.order = append(s.order, model.LockedCell{Cell: cell, Value: v, Reason: reason})
	return true
}

// IsLocked 检查单元是否被锁定
func (s *Set) IsLocked(cell model.DateCell) bool {
	if s == nil {
		return false
	}
	_, ok := s.values[cell]
	return ok
}

// Value 返回锁定取值
func (s *Set) Value(cell model.DateCell) (model.ShiftValue, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s.values[cell]
	return v, ok
}

// Cells 按登记顺序返回全部锁定单元
func (s *Set) Cells() []model.LockedCell {
	if s == nil {
		return nil
	}
	result := make([]model.LockedCell, len(s.order))
	copy(result, s.order)
	return result
}

// Len 返回锁定单元数
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// Apply 将锁定取值写入排班表
func (s *Set) Apply(sched *model.Schedule) {
	if s == nil {
		return
	}
	for _, lc := range s.order {
		sched.Set(lc.Cell, lc.Value)
	}
}

// Verify 校验排班表中每个锁定单元仍持有锁定取值；
// 返回被篡改的单元列表（应为空，否则是引擎缺陷）
func (s *Set) Verify(sched *model.Schedule) []model.DateCell {
	if s == nil {
		return nil
	}
	var broken []model.DateCell
	for _, lc := range s.order {
		if sched.Value(lc.Cell) != lc.Value {
			broken = append(broken, lc.Cell)
		}
	}
	return broken
}
