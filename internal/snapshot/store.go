package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lunban/lunban/internal/database"
	"github.com/lunban/lunban/pkg/errors"
	"github.com/lunban/lunban/pkg/model"
)

// Store PostgreSQL 快照存储
// 约束集与日历指令以 JSONB 存储，版本号由事务内 max(version)+1 分配
type Store struct {
	db *database.DB
}

// NewStore 创建快照存储
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Latest 返回最新版本的快照
func (s *Store) Latest(ctx context.Context) (*Snapshot, error) {
	query := `
		SELECT id, version, constraints, mandates, created_at
		FROM constraint_snapshots
		ORDER BY version DESC
		LIMIT 1`

	return s.scanOne(s.db.QueryRowContext(ctx, query), "latest")
}

// ByVersion 返回指定版本的快照
func (s *Store) ByVersion(ctx context.Context, version int) (*Snapshot, error) {
	query := `
		SELECT id, version, constraints, mandates, created_at
		FROM constraint_snapshots
		WHERE version = $1`

	return s.scanOne(s.db.QueryRowContext(ctx, query, version), fmt.Sprintf("v%d", version))
}

// Save 保存新快照并分配递增版本号
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	constraintsJSON, err := json.Marshal(snap.Constraints)
	if err != nil {
		return fmt.Errorf("序列化约束集失败: %w", err)
	}
	mandatesJSON, err := json.Marshal(snap.Mandates)
	if err != nil {
		return fmt.Errorf("序列化日历指令失败: %w", err)
	}

	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) FROM constraint_snapshots`)
		var latest int
		if err := row.Scan(&latest); err != nil {
			return fmt.Errorf("查询最新版本失败: %w", err)
		}
		snap.Version = latest + 1

		_, err := tx.ExecContext(ctx, `
			INSERT INTO constraint_snapshots (id, version, constraints, mandates, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			snap.ID, snap.Version, constraintsJSON, mandatesJSON, snap.CreatedAt)
		if err != nil {
			return fmt.Errorf("插入快照失败: %w", err)
		}
		return nil
	})
}

// scanOne 扫描单行快照
func (s *Store) scanOne(row *sql.Row, label string) (*Snapshot, error) {
	var (
		snap            Snapshot
		constraintsJSON []byte
		mandatesJSON    []byte
	)
	err := row.Scan(&snap.ID, &snap.Version, &constraintsJSON, &mandatesJSON, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("快照", label)
	}
	if err != nil {
		return nil, fmt.Errorf("读取快照失败: %w", err)
	}

	if err := json.Unmarshal(constraintsJSON, &snap.Constraints); err != nil {
		return nil, fmt.Errorf("解析约束集失败: %w", err)
	}
	if err := json.Unmarshal(mandatesJSON, &snap.Mandates); err != nil {
		return nil, fmt.Errorf("解析日历指令失败: %w", err)
	}
	return &snap, nil
}

// SaveReport 持久化一次生成运行的结果摘要
func (s *Store) SaveReport(ctx context.Context, runID uuid.UUID, snapshotVersion int,
	method model.GenerationMethod, openViolations int, duration time.Duration) error {

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generation_runs (run_id, snapshot_version, method, open_violations, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		runID, snapshotVersion, string(method), openViolations, duration.Milliseconds(), time.Now())
	if err != nil {
		return fmt.Errorf("保存运行记录失败: %w", err)
	}
	return nil
}

var _ Provider = (*Store)(nil)
