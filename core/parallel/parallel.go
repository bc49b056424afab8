package parallel

import (
	"runtime"
	"sync"
)

// Parallelize は items を CPU コア数の連続した区間に分け、
// 各区間で fn(start, end) を並行に実行する
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeN(runtime.NumCPU(), items, fn)
}

// ParallelizeN はワーカー数を指定する Parallelize
//
// workers <= 0 なら runtime.NumCPU()。ワーカーが1つなら呼び出し元のゴルーチンで実行する。
func ParallelizeN(workers, items int, fn func(start, end int)) {
	if items == 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > items {
		workers = items
	}
	if workers == 1 {
		fn(0, items)
		return
	}

	chunkSize := (items + workers - 1) / workers

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold は items <= threshold なら fn を逐次実行する
func ParallelizeWithThreshold(workers, items, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	ParallelizeN(workers, items, fn)
}
