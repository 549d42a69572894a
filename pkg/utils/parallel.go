package utils

import "golang.org/x/sync/errgroup"

// ParallelMap 以最多 workers 个 goroutine 并发执行 fn，结果顺序与输入一致。
// 输入不超过 1 个元素或 workers <= 1 时直接在当前 goroutine 中执行。
func ParallelMap[T any, R any](items []T, workers int, fn func(T) R) []R {
	results := make([]R, len(items))
	if len(items) <= 1 || workers <= 1 {
		for i, item := range items {
			results[i] = fn(item)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(min(workers, len(items)))
	for i := range items {
		g.Go(func() error {
			results[i] = fn(items[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}
