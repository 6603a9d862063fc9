// Package model 定义排班生成引擎的核心数据模型
package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ShiftValue 班次取值
type ShiftValue string

const (
	ShiftEarly  ShiftValue = "early"  // 早班
	ShiftLate   ShiftValue = "late"   // 晚班
	ShiftOff    ShiftValue = "off"    // 休息
	ShiftNormal ShiftValue = "normal" // 正常班
)

// AllShiftValues 所有班次取值（规范顺序，用于确定性遍历）
var AllShiftValues = []ShiftValue{ShiftEarly, ShiftLate, ShiftOff, ShiftNormal}

// Valid 检查班次取值是否合法
func (v ShiftValue) Valid() bool {
	switch v {
	case ShiftEarly, ShiftLate, ShiftOff, ShiftNormal:
		return true
	}
	return false
}

// BaseModel 基础模型（包含通用字段）
type BaseModel struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewBaseModel 创建新的基础模型
func NewBaseModel() BaseModel {
	now := time.Now()
	return BaseModel{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Staff 员工（对引擎只读）
type Staff struct {
	BaseModel
	OrgID    uuid.UUID `json:"org_id" db:"org_id"`
	Name     string    `json:"name" db:"name"`
	Code     string    `json:"code" db:"code"`
	Category string    `json:"category" db:"category"` // full_time/part_time/temp
	Status   string    `json:"status" db:"status"`     // active/inactive/leave

	// 班次资格
	CanWorkEarly bool `json:"can_work_early" db:"can_work_early"`
	CanWorkLate  bool `json:"can_work_late" db:"can_work_late"`
}

// IsActive 检查员工是否在职
func (s *Staff) IsActive() bool {
	return s.Status == "active"
}

// EligibleFor 检查员工是否有资格承担某班次取值
func (s *Staff) EligibleFor(v ShiftValue) bool {
	switch v {
	case ShiftEarly:
		return s.CanWorkEarly
	case ShiftLate:
		return s.CanWorkLate
	default:
		return true
	}
}

// DateCell (员工, 日期) 单元，排班的原子分配单位
type DateCell struct {
	StaffID uuid.UUID `json:"staff_id"`
	Date    string    `json:"date"` // YYYY-MM-DD
}

// String 返回单元的可读标识
func (c DateCell) String() string {
	return fmt.Sprintf("%s@%s", c.StaffID, c.Date)
}

// LockedCell 由日历指令在生成前固定的单元
type LockedCell struct {
	Cell   DateCell   `json:"cell"`
	Value  ShiftValue `json:"value"`
	Reason string     `json:"reason"` // must_work/must_off
}

// DateRange 日期范围（闭区间）
type DateRange struct {
	Start string `json:"start"` // YYYY-MM-DD
	End   string `json:"end"`   // YYYY-MM-DD
}

// Validate 检查日期范围是否合法
func (r DateRange) Validate() error {
	start, err := time.Parse("2006-01-02", r.Start)
	if err != nil {
		return fmt.Errorf("起始日期无效: %w", err)
	}
	end, err := time.Parse("2006-01-02", r.End)
	if err != nil {
		return fmt.Errorf("结束日期无效: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("结束日期 %s 早于起始日期 %s", r.End, r.Start)
	}
	return nil
}

// Days 返回范围内的天数
func (r DateRange) Days() int {
	start, err1 := time.Parse("2006-01-02", r.Start)
	end, err2 := time.Parse("2006-01-02", r.End)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// Dates 展开范围内的全部日期（升序）
func (r DateRange) Dates() []string {
	start, err1 := time.Parse("2006-01-02", r.Start)
	end, err2 := time.Parse("2006-01-02", r.End)
	if err1 != nil || err2 != nil {
		return nil
	}
	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format("2006-01-02"))
	}
	return dates
}

// Contains 检查日期是否落在范围内
func (r DateRange) Contains(date string) bool {
	return date >= r.Start && date <= r.End
}

// Weekday 返回日期对应的星期
func Weekday(date string) (time.Weekday, bool) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Sunday, false
	}
	return t.Weekday(), true
}

// MonthOf 返回日期所属月份 (YYYY-MM)
func MonthOf(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

// Schedule 排班表：DateCell → ShiftValue 映射
// 生成期间可变，返回给调用方后冻结为只读
type Schedule struct {
	staffIDs []uuid.UUID
	dates    []string
	cells    map[DateCell]ShiftValue
	frozen   bool
}

// NewSchedule 创建空排班表；员工与日期的顺序决定所有遍历顺序
func NewSchedule(staffIDs []uuid.UUID, dates []string) *Schedule {
	ids := make([]uuid.UUID, len(staffIDs))
	copy(ids, staffIDs)
	ds := make([]string, len(dates))
	copy(ds, dates)
	return &Schedule{
		staffIDs: ids,
		dates:    ds,
		cells:    make(map[DateCell]ShiftValue, len(ids)*len(ds)),
	}
}

// StaffIDs 返回员工遍历顺序
func (s *Schedule) StaffIDs() []uuid.UUID {
	return s.staffIDs
}

// Dates 返回日期遍历顺序
func (s *Schedule) Dates() []string {
	return s.dates
}

// Get 读取单元取值
func (s *Schedule) Get(cell DateCell) (ShiftValue, bool) {
	v, ok := s.cells[cell]
	return v, ok
}

// Value 读取单元取值；未赋值时返回空串
func (s *Schedule) Value(cell DateCell) ShiftValue {
	return s.cells[cell]
}

// Set 写入单元取值；冻结后写入视为引擎缺陷
func (s *Schedule) Set(cell DateCell, v ShiftValue) {
	if s.frozen {
		panic(fmt.Sprintf("schedule is frozen: write to %s", cell))
	}
	s.cells[cell] = v
}

// Freeze 冻结排班表，此后任何写入都会 panic
func (s *Schedule) Freeze() {
	s.frozen = true
}

// Frozen 检查排班表是否已冻结
func (s *Schedule) Frozen() bool {
	return s.frozen
}

// Complete 检查是否每个单元都已赋值
func (s *Schedule) Complete() bool {
	for _, id := range s.staffIDs {
		for _, d := range s.dates {
			if _, ok := s.cells[DateCell{StaffID: id, Date: d}]; !ok {
				return false
			}
		}
	}
	return true
}

// ForEach 按固定顺序（员工序 × 日期序）遍历所有单元
func (s *Schedule) ForEach(fn func(cell DateCell, v ShiftValue)) {
	for _, id := range s.staffIDs {
		for _, d := range s.dates {
			cell := DateCell{StaffID: id, Date: d}
			fn(cell, s.cells[cell])
		}
	}
}

// MarshalJSON 按员工序输出行，每行按日期序输出取值
func (s *Schedule) MarshalJSON() ([]byte, error) {
	type row struct {
		StaffID uuid.UUID             `json:"staff_id"`
		Cells   map[string]ShiftValue `json:"cells"`
	}
	out := struct {
		Dates []string `json:"dates"`
		Rows  []row    `json:"rows"`
	}{Dates: s.dates}

	for _, id := range s.staffIDs {
		r := row{StaffID: id, Cells: make(map[string]ShiftValue, len(s.dates))}
		for _, d := range s.dates {
			if v, ok := s.cells[DateCell{StaffID: id, Date: d}]; ok {
				r.Cells[d] = v
			}
		}
		out.Rows = append(out.Rows, r)
	}
	return json.Marshal(out)
}

// CountOnDate 统计某日期取值为 v 的员工数
func (s *Schedule) CountOnDate(date string, v ShiftValue) int {
	count := 0
	for _, id := range s.staffIDs {
		if s.cells[DateCell{StaffID: id, Date: date}] == v {
			count++
		}
	}
	return count
}

// CountForStaff 统计员工在日期区间 [from, to] 内取值为 v 的天数
func (s *Schedule) CountForStaff(staffID uuid.UUID, v ShiftValue, from, to string) int {
	count := 0
	for _, d := range s.dates {
		if d < from || d > to {
			continue
		}
		if s.cells[DateCell{StaffID: staffID, Date: d}] == v {
			count++
		}
	}
	return count
}

// Clone 深拷贝排班表（拷贝总是未冻结的）
func (s *Schedule) Clone() *Schedule {
	clone := NewSchedule(s.staffIDs, s.dates)
	for cell, v := range s.cells {
		clone.cells[cell] = v
	}
	return clone
}

// Equal 检查两个排班表的单元取值是否完全一致
func (s *Schedule) Equal(other *Schedule) bool {
	if other == nil || len(s.cells) != len(other.cells) {
		return false
	}
	for cell, v := range s.cells {
		if other.cells[cell] != v {
			return false
		}
	}
	return true
}

// SortCells 将单元按 (日期, 员工ID) 排序，用于确定性输出
func SortCells(cells []DateCell) {
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Date != cells[j].Date {
			return cells[i].Date < cells[j].Date
		}
		return cells[i].StaffID.String() < cells[j].StaffID.String()
	})
}
