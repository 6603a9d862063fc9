// Package scenario 提供场景测试
package scenario

import (
	"context"
	"time"

	"github.com/lunban/lunban/pkg/engine"
	"github.com/lunban/lunban/pkg/engine/hybrid"
	"github.com/lunban/lunban/pkg/engine/predictor"
	"github.com/lunban/lunban/pkg/model"
)

func createStaff(name string, canEarly, canLate bool) *model.Staff {
	return &model.Staff{
		BaseModel:    model.NewBaseModel(),
		Name:         name,
		Status:       "active",
		CanWorkEarly: canEarly,
		CanWorkLate:  canLate,
	}
}

func createEngine(p predictor.Predictor) *engine.Engine {
	return engine.New(engine.Options{
		Predictor:           p,
		PredictorTimeout:    time.Second,
		Thresholds:          hybrid.DefaultThresholds(),
		MaxPipelinePasses:   8,
		MaxRepairIterations: 16,
		ValidatorWorkers:    2,
	})
}

func createRequest(roster []*model.Staff, startDate string, days int) *engine.Request {
	start, _ := time.Parse("2006-01-02", startDate)
	end := start.AddDate(0, 0, days-1)
	return &engine.Request{
		Roster: roster,
		DateRange: model.DateRange{
			Start: start.Format("2006-01-02"),
			End:   end.Format("2006-01-02"),
		},
		RNGSeed: 1,
	}
}

// stubPredictor 返回固定的预测结果
type stubPredictor struct {
	prediction *predictor.Prediction
	err        error
}

func (s *stubPredictor) Predict(ctx context.Context, roster []*model.Staff, dateRange model.DateRange, features predictor.Features) (*predictor.Prediction, error) {
	return s.prediction, s.err
}
