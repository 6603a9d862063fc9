// Package audit 提供审计事件下沉接口
// 审计协作方接收结构化的逐阶段事件（变更单元数、发现与修复的违反）。
// 事件发送是尽力而为：绝不阻塞、绝不让运行失败，下沉侧的 panic 被吞掉。
package audit

import (
	"time"

	"github.com/lunban/lunban/pkg/logger"
	"github.com/rs/zerolog"
)

// EventType 事件类型
type EventType string

const (
	EventRunStart       EventType = "run_start"
	EventPredictorUsed  EventType = "predictor_used"
	EventStageApplied   EventType = "stage_applied"
	EventViolationFound EventType = "violation_found"
	EventRepairApplied  EventType = "repair_applied"
	EventRunComplete    EventType = "run_complete"
)

// Event 单条审计事件
type Event struct {
	RunID        string                 `json:"run_id"`
	Type         EventType              `json:"type"`
	Stage        string                 `json:"stage,omitempty"`
	CellsChanged int                    `json:"cells_changed,omitempty"`
	Fields       map[string]interface{} `json:"fields,omitempty"`
	Time         time.Time              `json:"time"`
}

// Sink 审计事件下沉
type Sink interface {
	Emit(e Event)
}

// Emit 安全发送：给事件打时间戳并吞掉下沉侧 panic
// sink 为 nil 时直接丢弃
func Emit(sink Sink, e Event) {
	if sink == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	defer func() { _ = recover() }()
	sink.Emit(e)
}

// NopSink 丢弃全部事件
type NopSink struct{}

// Emit 实现 Sink
func (NopSink) Emit(Event) {}

// LogSink 把事件写入结构化日志
type LogSink struct {
	base *zerolog.Logger
}

// NewLogSink 创建日志下沉
func NewLogSink() *LogSink {
	l := logger.Get().With().Str("component", "audit").Logger()
	return &LogSink{base: &l}
}

// Emit 实现 Sink
func (s *LogSink) Emit(e Event) {
	s.base.Info().
		Str("run_id", e.RunID).
		Str("type", string(e.Type)).
		Str("stage", e.Stage).
		Int("cells_changed", e.CellsChanged).
		Interface("fields", e.Fields).
		Time("time", e.Time).
		Msg("审计事件")
}

// MultiSink 把事件扇出到多个下沉
// 每个下沉独立收到事件，nil 成员被跳过，单个下沉的 panic 不影响其余成员
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink 创建扇出下沉
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Emit 实现 Sink
func (s *MultiSink) Emit(e Event) {
	for _, inner := range s.sinks {
		Emit(inner, e)
	}
}

// AsyncSink 带缓冲的异步下沉
// 缓冲满时丢弃新事件而不是阻塞，保证发送方永不等待
type AsyncSink struct {
	inner  Sink
	events chan Event
	done   chan struct{}
}

// NewAsyncSink 创建异步下沉；buffer <= 0 时取默认 256
func NewAsyncSink(inner Sink, buffer int) *AsyncSink {
	if buffer <= 0 {
		buffer = 256
	}
	s := &AsyncSink{
		inner:  inner,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go s.drain()
	return s
}

// Emit 实现 Sink：非阻塞投递，缓冲满则丢弃
func (s *AsyncSink) Emit(e Event) {
	select {
	case s.events <- e:
	default:
	}
}

// drain 后台消费事件
func (s *AsyncSink) drain() {
	defer close(s.done)
	for e := range s.events {
		Emit(s.inner, e)
	}
}

// Close 停止接收并等待缓冲排空
func (s *AsyncSink) Close() {
	close(s.events)
	<-s.done
}
