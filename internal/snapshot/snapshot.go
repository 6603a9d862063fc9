// Package snapshot 提供约束配置的版本化快照
// 引擎运行期间读取的约束与日历指令必须是不可变快照，
// 配置编辑与生成运行通过版本号解耦
package snapshot

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lunban/lunban/pkg/engine/lock"
	"github.com/lunban/lunban/pkg/errors"
	"github.com/lunban/lunban/pkg/model"
)

// Snapshot 一份版本化的约束配置
type Snapshot struct {
	ID          uuid.UUID           `json:"id"`
	Version     int                 `json:"version"`
	Constraints []*model.Constraint `json:"constraints"`
	Mandates    lock.Mandates       `json:"calendar_mandates"`
	CreatedAt   time.Time           `json:"created_at"`
}

// Provider 快照读取接口
type Provider interface {
	// Latest 返回最新版本的快照
	Latest(ctx context.Context) (*Snapshot, error)
	// ByVersion 返回指定版本的快照
	ByVersion(ctx context.Context, version int) (*Snapshot, error)
	// Save 保存新快照并分配递增版本号
	Save(ctx context.Context, s *Snapshot) error
}

// MemoryProvider 内存快照存储，用于测试与单机部署
type MemoryProvider struct {
	mu        sync.RWMutex
	snapshots map[int]*Snapshot
	latest    int
}

// NewMemoryProvider 创建内存快照存储
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{snapshots: make(map[int]*Snapshot)}
}

// Latest 返回最新版本的快照
func (p *MemoryProvider) Latest(ctx context.Context) (*Snapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == 0 {
		return nil, errors.NotFound("快照", "latest")
	}
	return p.snapshots[p.latest], nil
}

// ByVersion 返回指定版本的快照
func (p *MemoryProvider) ByVersion(ctx context.Context, version int) (*Snapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.snapshots[version]
	if !ok {
		return nil, errors.NotFound("快照", fmt.Sprintf("v%d", version))
	}
	return s, nil
}

// Save 保存新快照并分配递增版本号
func (p *MemoryProvider) Save(ctx context.Context, s *Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest++
	s.Version = p.latest
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	p.snapshots[s.Version] = s
	return nil
}

// Versions 返回已保存的版本号列表，升序
func (p *MemoryProvider) Versions() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	versions := make([]int, 0, len(p.snapshots))
	for v := range p.snapshots {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions
}
