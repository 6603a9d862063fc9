package lock

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lunban/lunban/pkg/errors"
	"github.com/lunban/lunban/pkg/model"
)

func newStaff(name string, canEarly bool) *model.Staff {
	return &model.Staff{
		BaseModel:    model.NewBaseModel(),
		Name:         name,
		Status:       "active",
		CanWorkEarly: canEarly,
		CanWorkLate:  true,
	}
}

func TestComputeMustWork(t *testing.T) {
	a := newStaff("甲", true)
	cell := model.DateCell{StaffID: a.ID, Date: "2025-03-03"}

	set, err := Compute([]*model.Staff{a}, Mandates{MustWork: []model.DateCell{cell}})
	if err != nil {
		t.Fatalf("Compute 失败: %v", err)
	}

	if !set.IsLocked(cell) {
		t.Fatal("must-work 单元应被锁定")
	}
	if v, _ := set.Value(cell); v != model.ShiftNormal {
		t.Errorf("must-work 锁定取值 = %s, 期望 normal", v)
	}
}

func TestComputeMustOffAsymmetry(t *testing.T) {
	// 无早班资格锁 Off，有早班资格锁 Early
	noEarly := newStaff("乙", false)
	withEarly := newStaff("丙", true)
	cellNo := model.DateCell{StaffID: noEarly.ID, Date: "2025-03-03"}
	cellWith := model.DateCell{StaffID: withEarly.ID, Date: "2025-03-03"}

	set, err := Compute([]*model.Staff{noEarly, withEarly}, Mandates{
		MustOff: []model.DateCell{cellNo, cellWith},
	})
	if err != nil {
		t.Fatalf("Compute 失败: %v", err)
	}

	if v, _ := set.Value(cellNo); v != model.ShiftOff {
		t.Errorf("无早班资格者锁定取值 = %s, 期望 off", v)
	}
	if v, _ := set.Value(cellWith); v != model.ShiftEarly {
		t.Errorf("有早班资格者锁定取值 = %s, 期望 early", v)
	}
}

func TestComputeConflict(t *testing.T) {
	a := newStaff("甲", true)
	cell := model.DateCell{StaffID: a.ID, Date: "2025-03-03"}

	_, err := Compute([]*model.Staff{a}, Mandates{
		MustWork: []model.DateCell{cell},
		MustOff:  []model.DateCell{cell},
	})
	if err == nil {
		t.Fatal("同一单元的双重指令应报配置冲突")
	}
	appErr, ok := err.(*errors.AppError)
	if !ok || appErr.Code != errors.CodeConfigurationError {
		t.Errorf("错误码 = %v, 期望配置冲突", err)
	}
}

func TestComputeUnknownStaff(t *testing.T) {
	a := newStaff("甲", true)
	ghost := newStaff("幽灵", true)
	cell := model.DateCell{StaffID: ghost.ID, Date: "2025-03-03"}

	_, err := Compute([]*model.Staff{a}, Mandates{MustOff: []model.DateCell{cell}})
	if err == nil {
		t.Fatal("花名册外员工的指令应报配置错误")
	}
}

func TestComputeIdempotent(t *testing.T) {
	a := newStaff("甲", false)
	b := newStaff("乙", true)
	mandates := Mandates{
		MustWork: []model.DateCell{{StaffID: a.ID, Date: "2025-03-04"}},
		MustOff:  []model.DateCell{{StaffID: b.ID, Date: "2025-03-05"}},
	}
	roster := []*model.Staff{a, b}

	s1, err1 := Compute(roster, mandates)
	s2, err2 := Compute(roster, mandates)
	if err1 != nil || err2 != nil {
		t.Fatalf("Compute 失败: %v %v", err1, err2)
	}

	c1, c2 := s1.Cells(), s2.Cells()
	if len(c1) != len(c2) {
		t.Fatalf("两次计算的锁定单元数不同: %d vs %d", len(c1), len(c2))
	}
	for i := range c1 {
		if c1[i] != c2[i] {
			t.Errorf("锁定单元 %d 不一致: %v vs %v", i, c1[i], c2[i])
		}
	}
}

func TestApplyAndVerify(t *testing.T) {
	a := newStaff("甲", false)
	cell := model.DateCell{StaffID: a.ID, Date: "2025-03-03"}
	set, err := Compute([]*model.Staff{a}, Mandates{MustOff: []model.DateCell{cell}})
	if err != nil {
		t.Fatalf("Compute 失败: %v", err)
	}

	sched := model.NewSchedule(staffIDs(a), []string{"2025-03-03"})
	set.Apply(sched)
	if broken := set.Verify(sched); len(broken) != 0 {
		t.Errorf("刚套用后不应有被篡改的单元: %v", broken)
	}

	sched.Set(cell, model.ShiftNormal)
	broken := set.Verify(sched)
	if len(broken) != 1 || broken[0] != cell {
		t.Errorf("改写锁定单元后应被检出: %v", broken)
	}
}

func staffIDs(staff ...*model.Staff) []uuid.UUID {
	ids := make([]uuid.UUID, len(staff))
	for i, s := range staff {
		ids[i] = s.ID
	}
	return ids
}
