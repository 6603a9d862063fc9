package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lunban/lunban/pkg/engine/hybrid"
	"github.com/lunban/lunban/pkg/engine/lock"
	"github.com/lunban/lunban/pkg/engine/predictor"
	"github.com/lunban/lunban/pkg/errors"
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

func newEngine(p predictor.Predictor) *Engine {
	return New(Options{
		Predictor:           p,
		PredictorTimeout:    time.Second,
		Thresholds:          hybrid.DefaultThresholds(),
		MaxPipelinePasses:   8,
		MaxRepairIterations: 16,
		ValidatorWorkers:    2,
	})
}

// fixedPredictor 返回固定预测
type fixedPredictor struct {
	prediction *predictor.Prediction
	err        error
}

func (f *fixedPredictor) Predict(ctx context.Context, roster []*model.Staff, dateRange model.DateRange, features predictor.Features) (*predictor.Prediction, error) {
	return f.prediction, f.err
}

func baseRequest(roster []*model.Staff, days int) *Request {
	start, _ := time.Parse("2006-01-02", "2025-03-03")
	end := start.AddDate(0, 0, days-1)
	return &Request{
		Roster: roster,
		DateRange: model.DateRange{
			Start: start.Format("2006-01-02"),
			End:   end.Format("2006-01-02"),
		},
		RNGSeed: 7,
	}
}

func TestGenerateRuleOnly(t *testing.T) {
	a := newStaff("甲", true, true)
	b := newStaff("乙", false, true)
	req := baseRequest([]*model.Staff{a, b}, 7)
	req.Constraints = []*model.Constraint{
		model.NewWeeklyLimit("每周至少休一天", model.WeeklyLimit{Shift: model.ShiftOff, Min: 1, Max: -1}),
	}

	report, err := newEngine(nil).Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}

	if report.Method != model.MethodRuleOnly {
		t.Errorf("无预测器时方法 = %s, 期望 rule_only", report.Method)
	}
	if !report.Schedule.Frozen() {
		t.Error("返回的排班表应已冻结")
	}
	if !report.Schedule.Complete() {
		t.Error("排班表应完整赋值")
	}
	if report.Fairness == nil {
		t.Error("报告应携带公平性指标")
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a := newStaff("甲", true, true)
	b := newStaff("乙", true, false)
	build := func() *Request {
		req := baseRequest([]*model.Staff{a, b}, 14)
		req.Constraints = []*model.Constraint{
			model.NewWeeklyLimit("每周至少休一天", model.WeeklyLimit{Shift: model.ShiftOff, Min: 1, Max: -1}),
			model.NewPriorityRule("甲回避晚班", model.PriorityRule{
				Kind:       model.PriorityAvoidShiftWithExceptions,
				StaffIDs:   []uuid.UUID{a.ID},
				Shifts:     []model.ShiftValue{model.ShiftLate},
				Exceptions: []model.ShiftValue{model.ShiftEarly, model.ShiftNormal},
			}),
		}
		return req
	}

	eng := newEngine(nil)
	r1, err1 := eng.Generate(context.Background(), build())
	r2, err2 := eng.Generate(context.Background(), build())
	if err1 != nil || err2 != nil {
		t.Fatalf("生成失败: %v %v", err1, err2)
	}

	if !r1.Schedule.Equal(r2.Schedule) {
		t.Error("相同请求与种子应产出完全一致的排班表")
	}
	if r1.RunID != r2.RunID {
		t.Error("运行ID由种子派生，两次运行应一致")
	}
	if len(r1.OpenViolations) != len(r2.OpenViolations) {
		t.Error("残留违反应一致")
	}
}

func TestGeneratePredictorFallback(t *testing.T) {
	a := newStaff("甲", true, true)
	req := baseRequest([]*model.Staff{a}, 7)

	failing := &fixedPredictor{err: fmt.Errorf("模型未训练")}
	report, err := newEngine(failing).Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("预测器失败不应导致运行失败: %v", err)
	}
	if report.Method != model.MethodRuleOnly {
		t.Errorf("预测失败应降级, 方法 = %s", report.Method)
	}
}

func TestGenerateHighConfidenceDirect(t *testing.T) {
	a := newStaff("甲", true, true)
	req := baseRequest([]*model.Staff{a}, 3)

	perCell := make(map[model.DateCell]predictor.Distribution)
	for _, d := range req.DateRange.Dates() {
		perCell[model.DateCell{StaffID: a.ID, Date: d}] = predictor.Distribution{model.ShiftEarly: 0.95}
	}
	p := &fixedPredictor{prediction: &predictor.Prediction{PerCell: perCell, Confidence: 0.9}}

	report, err := newEngine(p).Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}
	if report.Method != model.MethodPredictorDirect {
		t.Errorf("高置信度方法 = %s, 期望 predictor_direct", report.Method)
	}
	if report.PipelinePasses != 0 {
		t.Errorf("高置信度直采不应执行规则管线, passes = %d", report.PipelinePasses)
	}
	// 预测直接落盘
	for _, d := range req.DateRange.Dates() {
		if got := report.Schedule.Value(model.DateCell{StaffID: a.ID, Date: d}); got != model.ShiftEarly {
			t.Errorf("%s 取值 = %s, 期望预测的 early", d, got)
		}
	}
}

func TestGenerateMandatesAlwaysWin(t *testing.T) {
	a := newStaff("甲", false, true)
	req := baseRequest([]*model.Staff{a}, 3)
	cell := model.DateCell{StaffID: a.ID, Date: "2025-03-04"}
	req.Mandates = lock.Mandates{MustOff: []model.DateCell{cell}}

	// 预测坚持让甲上晚班，指令必须赢
	perCell := make(map[model.DateCell]predictor.Distribution)
	for _, d := range req.DateRange.Dates() {
		perCell[model.DateCell{StaffID: a.ID, Date: d}] = predictor.Distribution{model.ShiftLate: 0.99}
	}
	p := &fixedPredictor{prediction: &predictor.Prediction{PerCell: perCell, Confidence: 0.95}}

	report, err := newEngine(p).Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}
	if got := report.Schedule.Value(cell); got != model.ShiftOff {
		t.Errorf("must-off 单元取值 = %s, 期望 off（无早班资格）", got)
	}
	if len(report.Locked) != 1 {
		t.Errorf("报告应列出锁定单元, 实际 %d", len(report.Locked))
	}
}

func TestGenerateConfigurationError(t *testing.T) {
	a := newStaff("甲", false, true) // 无早班资格
	req := baseRequest([]*model.Staff{a}, 3)
	req.Constraints = []*model.Constraint{
		model.NewDailyLimit("早班下限", model.DailyLimit{Shift: model.ShiftEarly, Min: 1, Max: -1}),
	}

	_, err := newEngine(nil).Generate(context.Background(), req)
	if err == nil {
		t.Fatal("不可满足的每日下限应在生成前报配置错误")
	}
	appErr, ok := err.(*errors.AppError)
	if !ok || appErr.Code != errors.CodeConfigurationError {
		t.Errorf("错误码 = %v, 期望配置冲突", err)
	}
}

func TestGenerateMinMaxContradiction(t *testing.T) {
	a := newStaff("甲", true, true)
	req := baseRequest([]*model.Staff{a}, 3)
	req.Constraints = []*model.Constraint{
		model.NewDailyLimit("矛盾限额", model.DailyLimit{Shift: model.ShiftNormal, Min: 3, Max: 1}),
	}

	_, err := newEngine(nil).Generate(context.Background(), req)
	if err == nil {
		t.Fatal("下限大于上限应报配置错误")
	}
}

func TestGenerateEmptyAllowOnly(t *testing.T) {
	a := newStaff("甲", true, true)
	req := baseRequest([]*model.Staff{a}, 3)
	req.Constraints = []*model.Constraint{
		model.NewPriorityRule("空白名单", model.PriorityRule{
			Kind:     model.PriorityAllowOnlyShifts,
			StaffIDs: []uuid.UUID{a.ID},
		}),
	}

	_, err := newEngine(nil).Generate(context.Background(), req)
	if err == nil {
		t.Fatal("空白名单应报配置错误")
	}
}

func TestGenerateGroupConfigurationErrors(t *testing.T) {
	a := newStaff("甲", false, true) // 无早班资格
	b := newStaff("乙", true, true)
	outsider := newStaff("外人", true, true)

	// 覆盖替补不具备所需班值资格
	req := baseRequest([]*model.Staff{a, b}, 3)
	req.Constraints = []*model.Constraint{
		model.NewStaffGroupRule("前台组", model.StaffGroupRule{
			Name:      "前台组",
			MemberIDs: []uuid.UUID{a.ID, b.ID},
			Coverage: &model.CoverageRule{
				BackupID:      a.ID,
				RequiredShift: model.ShiftEarly,
			},
		}),
	}
	_, err := newEngine(nil).Generate(context.Background(), req)
	if !errors.Is(err, errors.CodeConfigurationError) {
		t.Errorf("替补资格不符错误码 = %v, 期望配置冲突", err)
	}

	// 邻近规则引用花名册之外的目标
	req = baseRequest([]*model.Staff{a, b}, 3)
	req.Constraints = []*model.Constraint{
		model.NewStaffGroupRule("诊室组", model.StaffGroupRule{
			Name:      "诊室组",
			MemberIDs: []uuid.UUID{a.ID, b.ID},
			Proximity: &model.ProximityPattern{
				TriggerID:       a.ID,
				TargetID:        outsider.ID,
				MaxDistanceDays: 1,
			},
		}),
	}
	if _, err := newEngine(nil).Generate(context.Background(), req); !errors.Is(err, errors.CodeConfigurationError) {
		t.Errorf("邻近目标越界错误码 = %v, 期望配置冲突", err)
	}

	// 合法的小组规则不应报错
	req = baseRequest([]*model.Staff{a, b}, 3)
	req.Constraints = []*model.Constraint{
		model.NewStaffGroupRule("前台组", model.StaffGroupRule{
			Name:      "前台组",
			MemberIDs: []uuid.UUID{a.ID, b.ID},
			Coverage: &model.CoverageRule{
				BackupID:      b.ID,
				RequiredShift: model.ShiftEarly,
			},
			Proximity: &model.ProximityPattern{
				TriggerID:       a.ID,
				TargetID:        b.ID,
				MaxDistanceDays: 1,
			},
		}),
	}
	if _, err := newEngine(nil).Generate(context.Background(), req); err != nil {
		t.Errorf("合法小组规则不应报错: %v", err)
	}
}

func TestGenerateInvalidRequest(t *testing.T) {
	eng := newEngine(nil)

	if _, err := eng.Generate(context.Background(), nil); err == nil {
		t.Error("空请求应报错")
	}
	if _, err := eng.Generate(context.Background(), &Request{}); err == nil {
		t.Error("空花名册应报错")
	}

	a := newStaff("甲", true, true)
	bad := baseRequest([]*model.Staff{a}, 3)
	bad.DateRange = model.DateRange{Start: "2025-03-10", End: "2025-03-01"}
	if _, err := eng.Generate(context.Background(), bad); err == nil {
		t.Error("倒置的日期范围应报错")
	}
}

func TestGenerateRepairsSeededViolations(t *testing.T) {
	// 中置信度：预测播种把两人都排成早班，与每日上限冲突，管线+修复必须纠正
	a := newStaff("甲", true, true)
	b := newStaff("乙", true, true)
	req := baseRequest([]*model.Staff{a, b}, 3)
	req.Constraints = []*model.Constraint{
		model.NewDailyLimit("早班上限", model.DailyLimit{Shift: model.ShiftEarly, Min: 0, Max: 1}),
	}

	perCell := make(map[model.DateCell]predictor.Distribution)
	for _, s := range req.Roster {
		for _, d := range req.DateRange.Dates() {
			perCell[model.DateCell{StaffID: s.ID, Date: d}] = predictor.Distribution{model.ShiftEarly: 0.7}
		}
	}
	p := &fixedPredictor{prediction: &predictor.Prediction{PerCell: perCell, Confidence: 0.7}}

	report, err := newEngine(p).Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}
	if report.Method != model.MethodHybrid {
		t.Errorf("方法 = %s, 期望 hybrid", report.Method)
	}
	for _, d := range req.DateRange.Dates() {
		if got := report.Schedule.CountOnDate(d, model.ShiftEarly); got > 1 {
			t.Errorf("%s 早班人数 = %d, 超过上限", d, got)
		}
	}
}
