package registry

import (
	"testing"

	"github.com/lunban/lunban/pkg/model"
)

func TestDefaultPrioritiesUnique(t *testing.T) {
	reg := Default()
	keys := []string{
		KeyCalendarMandate, KeyDailyLimit, KeyWeeklyLimit, KeyMonthlyLimit,
		KeyGroupCoverage, KeyGroupProximity, KeyAllowOnlyShifts,
		KeyAvoidShiftWithExceptions, KeyAvoidShift, KeyPreferredShift, KeyRequiredOff,
	}

	seen := make(map[int]string)
	for _, key := range keys {
		entry, ok := reg.LookupKey(key)
		if !ok {
			t.Fatalf("键 %s 未登记", key)
		}
		if prev, dup := seen[entry.Priority]; dup {
			t.Errorf("优先级编号 %d 被 %s 与 %s 重复使用", entry.Priority, prev, key)
		}
		seen[entry.Priority] = key
	}
}

func TestTierOrdering(t *testing.T) {
	reg := Default()

	// 一级约束的编号必须全部小于二级，二级小于三级
	tierMax := map[model.Tier]int{}
	tierMin := map[model.Tier]int{1: 1 << 30, 2: 1 << 30, 3: 1 << 30}
	for _, key := range []string{
		KeyCalendarMandate, KeyDailyLimit, KeyWeeklyLimit, KeyMonthlyLimit,
		KeyGroupCoverage, KeyGroupProximity, KeyAllowOnlyShifts,
		KeyAvoidShiftWithExceptions, KeyAvoidShift, KeyPreferredShift, KeyRequiredOff,
	} {
		entry, _ := reg.LookupKey(key)
		if entry.Priority > tierMax[entry.Tier] {
			tierMax[entry.Tier] = entry.Priority
		}
		if entry.Priority < tierMin[entry.Tier] {
			tierMin[entry.Tier] = entry.Priority
		}
	}
	if tierMax[model.TierMandatory] >= tierMin[model.TierImportant] {
		t.Error("一级约束编号应全部小于二级")
	}
	if tierMax[model.TierImportant] >= tierMin[model.TierPreference] {
		t.Error("二级约束编号应全部小于三级")
	}
}

func TestKeyFor(t *testing.T) {
	coverage := model.NewStaffGroupRule("组", model.StaffGroupRule{
		Name:     "组",
		Coverage: &model.CoverageRule{RequiredShift: model.ShiftEarly},
	})
	if KeyFor(coverage) != KeyGroupCoverage {
		t.Errorf("带顶班子句的组规则应映射为 %s", KeyGroupCoverage)
	}

	proximity := model.NewStaffGroupRule("组", model.StaffGroupRule{
		Name:      "组",
		Proximity: &model.ProximityPattern{MaxDistanceDays: 1},
	})
	if KeyFor(proximity) != KeyGroupProximity {
		t.Errorf("只有邻近子句的组规则应映射为 %s", KeyGroupProximity)
	}

	pref := model.NewPriorityRule("偏好", model.PriorityRule{
		Kind:   model.PriorityPreferredShift,
		Shifts: []model.ShiftValue{model.ShiftEarly},
	})
	if KeyFor(pref) != KeyPreferredShift {
		t.Errorf("偏好规则应映射为 %s", KeyPreferredShift)
	}
}

func TestResolvePicksStrongest(t *testing.T) {
	reg := Default()

	daily := model.NewDailyLimit("每日早班", model.DailyLimit{Shift: model.ShiftEarly, Min: 1, Max: -1})
	pref := model.NewPriorityRule("偏好", model.PriorityRule{
		Kind:   model.PriorityPreferredShift,
		Shifts: []model.ShiftValue{model.ShiftOff},
	})
	constraints := map[string]*model.Constraint{
		daily.ID.String(): daily,
		pref.ID.String():  pref,
	}

	vDaily := &model.Violation{ConstraintID: daily.ID}
	vPref := &model.Violation{ConstraintID: pref.ID}

	// 顺序无关，总是裁决给编号更小的每日限制
	if got := reg.Resolve([]*model.Violation{vPref, vDaily}, constraints); got != vDaily {
		t.Error("裁决应选择每日限制的违反")
	}
	if got := reg.Resolve([]*model.Violation{vDaily, vPref}, constraints); got != vDaily {
		t.Error("裁决结果不应依赖输入顺序")
	}

	if got := reg.Resolve(nil, constraints); got != nil {
		t.Error("空违反列表应返回 nil")
	}
}

func TestPriorityOfUnknownKind(t *testing.T) {
	reg := Default()
	broken := &model.Constraint{Kind: "unknown"}
	if got := reg.PriorityOf(broken); got != 1<<30 {
		t.Errorf("未登记种类的优先级 = %d, 期望排到最后", got)
	}
}
