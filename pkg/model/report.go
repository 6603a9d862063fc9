// Package model 定义排班生成引擎的核心数据模型
package model

import (
	"github.com/google/uuid"
)

// GenerationMethod 排班生成方式
type GenerationMethod string

const (
	MethodPredictorDirect GenerationMethod = "predictor_direct" // 高置信度：直接采用预测结果
	MethodHybrid          GenerationMethod = "hybrid"           // 中置信度：预测播种 + 规则管线校正
	MethodRuleOnly        GenerationMethod = "rule_only"        // 低置信度或预测器不可用：纯规则生成
)

// Violation 约束违反
type Violation struct {
	ConstraintID   uuid.UUID      `json:"constraint_id"`
	ConstraintName string         `json:"constraint_name"`
	Kind           ConstraintKind `json:"kind"`
	Tier           Tier           `json:"tier"`
	Hard           bool           `json:"hard"`
	Cells          []DateCell     `json:"cells"`
	Message        string         `json:"message"`
	Severity       string         `json:"severity"` // error/warning
	Penalty        int            `json:"penalty"`
}

// RepairAction 单次修复动作
type RepairAction struct {
	Cell         DateCell   `json:"cell"`
	From         ShiftValue `json:"from"`
	To           ShiftValue `json:"to"`
	ConstraintID uuid.UUID  `json:"constraint_id"`
}

// RepairSummary 修复过程汇总
type RepairSummary struct {
	Iterations int            `json:"iterations"`
	Actions    []RepairAction `json:"actions"`
	Unresolved []Violation    `json:"unresolved"` // 无法修复的软约束违反，只记录不报错
}

// Repaired 返回修复动作数
func (r *RepairSummary) Repaired() int {
	return len(r.Actions)
}
