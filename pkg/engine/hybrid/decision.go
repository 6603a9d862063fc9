// Package hybrid 提供置信度分段决策
// 按整次运行（而非逐单元）的置信度选择生成策略，保证可审计与确定性。
package hybrid

import (
	"github.com/lunban/lunban/pkg/engine/predictor"
	"github.com/lunban/lunban/pkg/model"
)

// Band 置信度区间
type Band string

const (
	BandHigh   Band = "high"   // ≥ High 阈值：直接采用预测，仅跑一级校验/修复
	BandMedium Band = "medium" // [Medium, High)：预测播种 + 完整管线校正
	BandLow    Band = "low"    // < Medium 或不可用：丢弃预测，纯规则生成
)

// Thresholds 分段阈值
type Thresholds struct {
	High   float64 `json:"high"`
	Medium float64 `json:"medium"`
}

// DefaultThresholds 返回默认阈值
func DefaultThresholds() Thresholds {
	return Thresholds{High: 0.8, Medium: 0.6}
}

// Valid 检查阈值配置是否合法
func (t Thresholds) Valid() bool {
	return t.Medium > 0 && t.Medium < t.High && t.High <= 1
}

// Decision 本次运行的生成策略
type Decision struct {
	Band              Band                   `json:"band"`
	Method            model.GenerationMethod `json:"method"`
	Confidence        float64                `json:"confidence"`
	SeedFromPredictor bool                   `json:"seed_from_predictor"`
	FullPipeline      bool                   `json:"full_pipeline"`
	Tier1Only         bool                   `json:"tier1_only"` // 校验/修复只看一级约束
}

// Decide 由预测结果决定生成策略；prediction 为 nil 表示预测器不可用
func Decide(prediction *predictor.Prediction, th Thresholds) Decision {
	if !th.Valid() {
		th = DefaultThresholds()
	}

	if prediction == nil {
		return Decision{
			Band:         BandLow,
			Method:       model.MethodRuleOnly,
			FullPipeline: true,
		}
	}

	c := prediction.Confidence
	switch {
	case c >= th.High:
		return Decision{
			Band:              BandHigh,
			Method:            model.MethodPredictorDirect,
			Confidence:        c,
			SeedFromPredictor: true,
			Tier1Only:         true,
		}
	case c >= th.Medium:
		return Decision{
			Band:              BandMedium,
			Method:            model.MethodHybrid,
			Confidence:        c,
			SeedFromPredictor: true,
			FullPipeline:      true,
		}
	default:
		return Decision{
			Band:         BandLow,
			Method:       model.MethodRuleOnly,
			Confidence:   c,
			FullPipeline: true,
		}
	}
}
