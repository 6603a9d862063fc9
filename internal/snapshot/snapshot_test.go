package snapshot

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/lunban/lunban/pkg/errors"
	"github.com/lunban/lunban/pkg/model"
)

func TestMemoryProviderEmpty(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	if _, err := p.Latest(ctx); !errors.Is(err, errors.CodeNotFound) {
		t.Errorf("空存储 Latest 错误码 = %v, 期望 NOT_FOUND", errors.GetCode(err))
	}
	if _, err := p.ByVersion(ctx, 1); !errors.Is(err, errors.CodeNotFound) {
		t.Errorf("空存储 ByVersion 错误码 = %v, 期望 NOT_FOUND", errors.GetCode(err))
	}
}

func TestMemoryProviderVersioning(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	first := &Snapshot{Constraints: []*model.Constraint{
		model.NewDailyLimit("早班下限", model.DailyLimit{Shift: model.ShiftEarly, Min: 1, Max: -1}),
	}}
	second := &Snapshot{}

	if err := p.Save(ctx, first); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}
	if err := p.Save(ctx, second); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}

	if first.Version != 1 || second.Version != 2 {
		t.Errorf("版本号 = (%d, %d), 期望 (1, 2)", first.Version, second.Version)
	}
	if first.ID == uuid.Nil || first.CreatedAt.IsZero() {
		t.Error("Save 应填充 ID 与创建时间")
	}

	latest, err := p.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest 失败: %v", err)
	}
	if latest.Version != 2 {
		t.Errorf("最新版本 = %d, 期望 2", latest.Version)
	}

	got, err := p.ByVersion(ctx, 1)
	if err != nil {
		t.Fatalf("ByVersion 失败: %v", err)
	}
	if len(got.Constraints) != 1 {
		t.Errorf("v1 约束数 = %d, 期望 1", len(got.Constraints))
	}

	if versions := p.Versions(); len(versions) != 2 || versions[0] != 1 || versions[1] != 2 {
		t.Errorf("版本列表 = %v, 期望 [1 2]", versions)
	}
}

func TestMemoryProviderUnknownVersion(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()
	if err := p.Save(ctx, &Snapshot{}); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}

	if _, err := p.ByVersion(ctx, 99); !errors.Is(err, errors.CodeNotFound) {
		t.Errorf("未知版本错误码 = %v, 期望 NOT_FOUND", errors.GetCode(err))
	}
}
