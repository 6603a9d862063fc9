package generator

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/lunban/lunban/pkg/engine/lock"
	"github.com/lunban/lunban/pkg/engine/predictor"
	"github.com/lunban/lunban/pkg/engine/registry"
	"github.com/lunban/lunban/pkg/model"
)

func newStaff(name string, canEarly, canLate bool) *model.Staff {
	return &model.Staff{
		BaseModel:    model.NewBaseModel(),
		Name:         name,
		Status:       "active",
		CanWorkEarly: canEarly,
		CanWorkLate:  canLate,
	}
}

func newContext(t *testing.T, roster []*model.Staff, dates []string,
	constraints []*model.Constraint, mandates lock.Mandates) *Context {

	t.Helper()
	locks, err := lock.Compute(roster, mandates)
	if err != nil {
		t.Fatalf("锁定计算失败: %v", err)
	}
	ids := make([]uuid.UUID, len(roster))
	for i, s := range roster {
		ids[i] = s.ID
	}
	sched := model.NewSchedule(ids, dates)
	return NewContext(sched, roster, dates, constraints, locks, registry.Default(), rand.New(rand.NewSource(42)))
}

func TestWriteClaimSemantics(t *testing.T) {
	a := newStaff("甲", true, true)
	gc := newContext(t, []*model.Staff{a}, []string{"2025-03-01"}, nil, lock.Mandates{})
	SeedBlank(gc)

	cell := model.DateCell{StaffID: a.ID, Date: "2025-03-01"}

	// 强写入者先声明单元
	if !gc.Write(cell, model.ShiftEarly, 20) {
		t.Fatal("未声明单元的写入应成功")
	}
	// 更弱的写入者不得覆写
	if gc.Write(cell, model.ShiftOff, 90) {
		t.Error("弱写入者不应覆写强声明")
	}
	if gc.Schedule.Value(cell) != model.ShiftEarly {
		t.Error("取值应保持强写入者的结果")
	}
	// 同级或更强可以覆写
	if !gc.Write(cell, model.ShiftOff, 10) {
		t.Error("更强写入者应能覆写")
	}
}

func TestWriteRejectsIneligible(t *testing.T) {
	a := newStaff("甲", false, true)
	gc := newContext(t, []*model.Staff{a}, []string{"2025-03-01"}, nil, lock.Mandates{})
	SeedBlank(gc)

	cell := model.DateCell{StaffID: a.ID, Date: "2025-03-01"}
	if gc.Write(cell, model.ShiftEarly, 20) {
		t.Error("无早班资格的员工不应被写入早班")
	}
}

func TestWriteNeverTouchesLocks(t *testing.T) {
	a := newStaff("甲", false, true)
	cell := model.DateCell{StaffID: a.ID, Date: "2025-03-01"}
	gc := newContext(t, []*model.Staff{a}, []string{"2025-03-01"}, nil,
		lock.Mandates{MustOff: []model.DateCell{cell}})
	SeedBlank(gc)

	// 最强优先级也不能写锁定单元
	if gc.Write(cell, model.ShiftNormal, 1) {
		t.Error("锁定单元不应被任何写入者改写")
	}
	if gc.Schedule.Value(cell) != model.ShiftOff {
		t.Error("锁定单元应保持锁定取值")
	}
}

func TestSeedFromPredictionFallsBackOnIneligible(t *testing.T) {
	a := newStaff("甲", false, true)
	gc := newContext(t, []*model.Staff{a}, []string{"2025-03-01"}, nil, lock.Mandates{})

	cell := model.DateCell{StaffID: a.ID, Date: "2025-03-01"}
	SeedFromPrediction(gc, predictionFor(cell, model.ShiftEarly))

	// 预测建议早班但员工无资格，回退为正常班
	if gc.Schedule.Value(cell) != model.ShiftNormal {
		t.Errorf("资格不符的预测应回退为 normal, 实际 %s", gc.Schedule.Value(cell))
	}
}

func TestPipelineReachesFixedPoint(t *testing.T) {
	a := newStaff("甲", true, true)
	b := newStaff("乙", true, true)
	roster := []*model.Staff{a, b}
	dates := model.DateRange{Start: "2025-03-03", End: "2025-03-09"}.Dates()

	pref := model.NewPriorityRule("甲偏好早班", model.PriorityRule{
		Kind:     model.PriorityPreferredShift,
		StaffIDs: []uuid.UUID{a.ID},
		Shifts:   []model.ShiftValue{model.ShiftEarly},
	})
	constraints := []*model.Constraint{pref}

	gc := newContext(t, roster, dates, constraints, lock.Mandates{})
	SeedBlank(gc)

	pipeline := NewPipeline(8)
	passes, err := pipeline.Run(context.Background(), gc)
	if err != nil {
		t.Fatalf("管线失败: %v", err)
	}
	if passes >= 8 {
		t.Errorf("简单输入应早于上限收敛, passes = %d", passes)
	}

	// 不动点：再执行一遍不应有任何变更
	snapshot := gc.Schedule.Clone()
	if _, err := pipeline.Run(context.Background(), gc); err != nil {
		t.Fatalf("复跑失败: %v", err)
	}
	if !gc.Schedule.Equal(snapshot) {
		t.Error("不动点后的复跑不应改变排班表")
	}
}

func TestCoverageBeatsPreference(t *testing.T) {
	// 组成员休息时替补必须排早班，替补本人的偏好不得推翻顶班结果
	// 组员无早班资格，must-off 指令落为锁定 Off，顶班在 03-03 触发
	member := newStaff("组员", false, true)
	backup := newStaff("替补", true, true)
	roster := []*model.Staff{member, backup}
	dates := []string{"2025-03-03", "2025-03-04"}

	group := model.NewStaffGroupRule("前台", model.StaffGroupRule{
		Name:      "前台",
		MemberIDs: []uuid.UUID{member.ID},
		Coverage:  &model.CoverageRule{BackupID: backup.ID, RequiredShift: model.ShiftEarly},
	})
	pref := model.NewPriorityRule("替补偏好休息", model.PriorityRule{
		Kind:     model.PriorityPreferredShift,
		StaffIDs: []uuid.UUID{backup.ID},
		Shifts:   []model.ShiftValue{model.ShiftOff},
	})
	constraints := []*model.Constraint{group, pref}

	memberOff := model.DateCell{StaffID: member.ID, Date: "2025-03-03"}
	gc := newContext(t, roster, dates, constraints, lock.Mandates{
		MustOff: []model.DateCell{memberOff},
	})
	SeedBlank(gc)

	pipeline := NewPipeline(8)
	if _, err := pipeline.Run(context.Background(), gc); err != nil {
		t.Fatalf("管线失败: %v", err)
	}

	got := gc.Schedule.Value(model.DateCell{StaffID: backup.ID, Date: "2025-03-03"})
	if got != model.ShiftEarly {
		t.Errorf("组员休息日替补取值 = %s, 期望 early（顶班强于偏好）", got)
	}
	// 无顶班触发的日期，偏好正常生效
	other := gc.Schedule.Value(model.DateCell{StaffID: backup.ID, Date: "2025-03-04"})
	if other != model.ShiftOff {
		t.Errorf("无顶班日替补取值 = %s, 期望偏好的 off", other)
	}
}

func TestAllowOnlyConstrainsWeakerRules(t *testing.T) {
	a := newStaff("甲", true, true)
	dates := []string{"2025-03-03"}

	allow := model.NewPriorityRule("只排正常与早班", model.PriorityRule{
		Kind:     model.PriorityAllowOnlyShifts,
		StaffIDs: []uuid.UUID{a.ID},
		Shifts:   []model.ShiftValue{model.ShiftNormal, model.ShiftEarly},
	})
	off := model.NewPriorityRule("偏好休息", model.PriorityRule{
		Kind:     model.PriorityRequiredOff,
		StaffIDs: []uuid.UUID{a.ID},
	})
	constraints := []*model.Constraint{off, allow} // 声明顺序故意颠倒

	gc := newContext(t, []*model.Staff{a}, dates, constraints, lock.Mandates{})
	SeedBlank(gc)

	pipeline := NewPipeline(8)
	if _, err := pipeline.Run(context.Background(), gc); err != nil {
		t.Fatalf("管线失败: %v", err)
	}

	got := gc.Schedule.Value(model.DateCell{StaffID: a.ID, Date: "2025-03-03"})
	if got == model.ShiftOff {
		t.Error("白名单外的休息偏好不应生效")
	}
}

func TestDeterministicAcrossRuns(t *testing.T) {
	a := newStaff("甲", true, true)
	b := newStaff("乙", false, true)
	roster := []*model.Staff{a, b}
	dates := model.DateRange{Start: "2025-03-03", End: "2025-03-16"}.Dates()

	avoid := model.NewPriorityRule("甲回避晚班", model.PriorityRule{
		Kind:       model.PriorityAvoidShiftWithExceptions,
		StaffIDs:   []uuid.UUID{a.ID},
		Shifts:     []model.ShiftValue{model.ShiftLate},
		Exceptions: []model.ShiftValue{model.ShiftEarly, model.ShiftNormal},
	})
	weekly := model.NewWeeklyLimit("每周至少休一天", model.WeeklyLimit{
		Shift: model.ShiftOff, Min: 1, Max: -1,
	})
	constraints := []*model.Constraint{avoid, weekly}

	run := func() *model.Schedule {
		gc := newContext(t, roster, dates, constraints, lock.Mandates{})
		SeedBlank(gc)
		if _, err := NewPipeline(8).Run(context.Background(), gc); err != nil {
			t.Fatalf("管线失败: %v", err)
		}
		return gc.Schedule
	}

	if !run().Equal(run()) {
		t.Error("相同输入与种子的两次运行应产出完全一致的排班表")
	}
}

func predictionFor(cell model.DateCell, v model.ShiftValue) *predictor.Prediction {
	return &predictor.Prediction{
		PerCell:    map[model.DateCell]predictor.Distribution{cell: {v: 1.0}},
		Confidence: 0.9,
	}
}
