package validate

import (
	"sync"

	"github.com/lunban/lunban/pkg/model"
)

// evaluateAll 评估所有约束
// 逐约束的读取/评估互不依赖，可以并行展开；结果按约束原始顺序归约，
// 输出与单线程评估逐字节一致。排班表在评估期间只读。
func (v *Validator) evaluateAll(sched *model.Schedule, roster []*model.Staff,
	constraints []*model.Constraint, groups map[string]*model.StaffGroupRule) [][]model.Violation {

	results := make([][]model.Violation, len(constraints))
	if len(constraints) == 0 {
		return results
	}

	if v.workers <= 1 || len(constraints) == 1 {
		for i, c := range constraints {
			results[i] = v.check(c, sched, roster, groups)
		}
		return results
	}

	jobs := make(chan int, len(constraints))
	var wg sync.WaitGroup
	workers := v.workers
	if workers > len(constraints) {
		workers = len(constraints)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = v.check(constraints[i], sched, roster, groups)
			}
		}()
	}
	for i := range constraints {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}
