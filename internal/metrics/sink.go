package metrics

import (
	"fmt"

	"github.com/lunban/lunban/pkg/audit"
)

// Sink 把引擎审计事件转换成监控指标
// 挂在引擎的审计出口上，引擎本身不感知指标系统
type Sink struct{}

// NewSink 创建指标事件接收器
func NewSink() *Sink {
	return &Sink{}
}

// Emit 实现 audit.Sink
func (s *Sink) Emit(e audit.Event) {
	registry := GetRegistry()
	switch e.Type {
	case audit.EventStageApplied:
		if counter := registry.GetCounter("lunban_stage_cells_changed_total"); counter != nil {
			counter.Add(float64(e.CellsChanged), e.Stage)
		}
	case audit.EventViolationFound:
		if tier, ok := e.Fields["tier"]; ok {
			if counter := registry.GetCounter("lunban_violations_total"); counter != nil {
				counter.Inc(fmt.Sprintf("%v", tier))
			}
		}
	case audit.EventRepairApplied:
		if counter := registry.GetCounter("lunban_repair_actions_total"); counter != nil {
			counter.Inc()
		}
	case audit.EventPredictorUsed:
		RecordPredictorCall(true)
	case audit.EventRunComplete:
		if open, ok := e.Fields["open_violations"].(int); ok {
			SetOpenViolations(open)
		}
	}
}
