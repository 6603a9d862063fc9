// Package stats 提供排班公平性统计分析
package stats

import (
	"math"
	"sort"

	"github.com/lunban/lunban/pkg/model"
)

// StaffStat 单个员工的排班统计
type StaffStat struct {
	StaffID      string  `json:"staff_id"`
	StaffName    string  `json:"staff_name"`
	OffDays      int     `json:"off_days"`
	EarlyShifts  int     `json:"early_shifts"`
	LateShifts   int     `json:"late_shifts"`
	NormalShifts int     `json:"normal_shifts"`
	Deviation    float64 `json:"deviation"` // 休息日相对均值的偏差百分比
}

// FairnessMetrics 公平性指标
type FairnessMetrics struct {
	// 休息日公平性
	OffDayVariance float64 `json:"off_day_variance"` // 休息日方差
	OffDayStdDev   float64 `json:"off_day_std_dev"`  // 休息日标准差
	OffDayGini     float64 `json:"off_day_gini"`     // 休息日基尼系数 (0=完全公平)
	AvgOffDays     float64 `json:"avg_off_days"`     // 人均休息日
	MaxOffDays     int     `json:"max_off_days"`
	MinOffDays     int     `json:"min_off_days"`

	// 偏好满足率：PreferredShift 规则目标单元中实际命中的比例
	PreferredShiftHonorRate float64 `json:"preferred_shift_honor_rate"`

	// 员工级别统计
	StaffStats []StaffStat `json:"staff_stats"`

	// 综合公平性评分 (0-100)
	OverallFairnessScore float64 `json:"overall_fairness_score"`
}

// Analyzer 公平性分析器
type Analyzer struct{}

// NewAnalyzer 创建公平性分析器
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze 分析排班公平性
func (a *Analyzer) Analyze(sched *model.Schedule, roster []*model.Staff, constraints []*model.Constraint) *FairnessMetrics {
	if sched == nil || len(roster) == 0 {
		return &FairnessMetrics{OverallFairnessScore: 100}
	}

	dates := sched.Dates()
	if len(dates) == 0 {
		return &FairnessMetrics{OverallFairnessScore: 100}
	}
	first, last := dates[0], dates[len(dates)-1]

	stats := make([]StaffStat, 0, len(roster))
	offDays := make([]float64, 0, len(roster))
	for _, staff := range roster {
		stat := StaffStat{
			StaffID:      staff.ID.String(),
			StaffName:    staff.Name,
			OffDays:      sched.CountForStaff(staff.ID, model.ShiftOff, first, last),
			EarlyShifts:  sched.CountForStaff(staff.ID, model.ShiftEarly, first, last),
			LateShifts:   sched.CountForStaff(staff.ID, model.ShiftLate, first, last),
			NormalShifts: sched.CountForStaff(staff.ID, model.ShiftNormal, first, last),
		}
		stats = append(stats, stat)
		offDays = append(offDays, float64(stat.OffDays))
	}

	avg := mean(offDays)
	variance := varianceOf(offDays, avg)
	stdDev := math.Sqrt(variance)
	maxOff, minOff := rangeOf(offDays)

	for i := range stats {
		if avg > 0 {
			stats[i].Deviation = (float64(stats[i].OffDays) - avg) / avg * 100
		}
	}

	gini := giniOf(offDays)
	honorRate := a.preferredHonorRate(sched, roster, constraints)
	score := a.overallScore(gini, stdDev, avg, honorRate)

	return &FairnessMetrics{
		OffDayVariance:          variance,
		OffDayStdDev:            stdDev,
		OffDayGini:              gini,
		AvgOffDays:              avg,
		MaxOffDays:              int(maxOff),
		MinOffDays:              int(minOff),
		PreferredShiftHonorRate: honorRate,
		StaffStats:              stats,
		OverallFairnessScore:    score,
	}
}

// preferredHonorRate 计算 PreferredShift 规则目标单元的命中率
// 没有任何偏好规则时记为 1.0
func (a *Analyzer) preferredHonorRate(sched *model.Schedule, roster []*model.Staff, constraints []*model.Constraint) float64 {
	applicable := 0
	honored := 0
	for _, c := range constraints {
		rule := c.Priority
		if c.Kind != model.KindPriorityRule || rule == nil || rule.Kind != model.PriorityPreferredShift {
			continue
		}
		if len(rule.Shifts) == 0 {
			continue
		}
		preferred := rule.Shifts[0]
		for _, staff := range roster {
			for _, date := range sched.Dates() {
				if !rule.AppliesTo(staff.ID, date) {
					continue
				}
				applicable++
				if sched.Value(model.DateCell{StaffID: staff.ID, Date: date}) == preferred {
					honored++
				}
			}
		}
	}
	if applicable == 0 {
		return 1.0
	}
	return float64(honored) / float64(applicable)
}

// overallScore 计算综合公平性评分
// 基尼系数与相对离散度各占一半扣分，偏好满足率作为乘性折扣
func (a *Analyzer) overallScore(gini, stdDev, avg, honorRate float64) float64 {
	score := 100.0
	score -= gini * 50
	if avg > 0 {
		cv := stdDev / avg
		if cv > 1 {
			cv = 1
		}
		score -= cv * 25
	}
	score *= 0.75 + 0.25*honorRate
	if score < 0 {
		score = 0
	}
	return score
}

// mean 计算平均值
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// varianceOf 计算方差
func varianceOf(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

// rangeOf 计算极值
func rangeOf(values []float64) (max, min float64) {
	if len(values) == 0 {
		return 0, 0
	}
	max, min = values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return
}

// giniOf 计算基尼系数
func giniOf(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	weighted := 0.0
	for i, v := range sorted {
		sum += v
		weighted += float64(i+1) * v
	}
	if sum == 0 {
		return 0
	}
	return (2*weighted)/(float64(n)*sum) - float64(n+1)/float64(n)
}
