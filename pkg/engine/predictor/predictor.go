// Package predictor 定义外部学习预测器的窄接口
// 预测器对引擎是黑盒：给定花名册、日期范围与历史特征，返回逐单元的
// 班次概率分布和一个整体置信度。不可用（未训练/输入异常/超时）绝不会
// 导致运行失败，只会降级为纯规则生成。
package predictor

import (
	"context"
	"time"

	"github.com/lunban/lunban/pkg/errors"
	"github.com/lunban/lunban/pkg/model"
)

// Distribution 单个单元上的班次概率分布
type Distribution map[model.ShiftValue]float64

// ArgMax 返回概率最高的班次；并列时按规范顺序取先出现者，保证确定性
func (d Distribution) ArgMax() model.ShiftValue {
	best := model.ShiftNormal
	bestProb := -1.0
	for _, v := range model.AllShiftValues {
		if p, ok := d[v]; ok && p > bestProb {
			best = v
			bestProb = p
		}
	}
	return best
}

// Features 历史特征，对引擎不透明，原样传递给预测器
type Features map[string]interface{}

// Prediction 预测结果
type Prediction struct {
	PerCell    map[model.DateCell]Distribution `json:"per_cell"`
	Confidence float64                         `json:"confidence"` // [0, 1]
}

// Valid 检查预测结果结构是否合法
func (p *Prediction) Valid() bool {
	if p == nil {
		return false
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return false
	}
	if len(p.PerCell) == 0 {
		return false
	}
	for _, dist := range p.PerCell {
		if len(dist) == 0 {
			return false
		}
		for v := range dist {
			if !v.Valid() {
				return false
			}
		}
	}
	return true
}

// Predictor 预测器契约
type Predictor interface {
	// Predict 返回逐单元分布与置信度；不可用时返回错误
	Predict(ctx context.Context, roster []*model.Staff, dateRange model.DateRange, features Features) (*Prediction, error)
}

// PredictWithTimeout 带超时调用预测器
// 任何错误、超时、panic 或结构异常的结果都折叠为"预测器不可用"，
// 调用方据此降级为规则生成，运行本身不会失败。
func PredictWithTimeout(ctx context.Context, p Predictor, timeout time.Duration,
	roster []*model.Staff, dateRange model.DateRange, features Features) (*Prediction, error) {

	if p == nil {
		return nil, errors.ErrPredictorUnavailable
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		prediction *Prediction
		err        error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: errors.ErrPredictorUnavailable}
			}
		}()
		pred, err := p.Predict(ctx, roster, dateRange, features)
		done <- outcome{prediction: pred, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), errors.CodePredictorUnavailable, "预测超时")
	case out := <-done:
		if out.err != nil {
			return nil, errors.Wrap(out.err, errors.CodePredictorUnavailable, "预测失败")
		}
		if !out.prediction.Valid() {
			return nil, errors.New(errors.CodePredictorUnavailable, "预测结果结构异常")
		}
		return out.prediction, nil
	}
}
