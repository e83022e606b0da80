package sim

import (
	"fmt"
	"runtime"
	"sync"
)

// dispatcher runs kernels over index ranges on a fixed worker count, the
// compute-dispatch equivalent: all invocations of one dispatch complete
// before the call returns, which is the barrier between passes.
type dispatcher struct {
	workers int
}

func newDispatcher(workers int) *dispatcher {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &dispatcher{workers: workers}
}

// run invokes kern for every index in [0, n), chunked across workers. A
// panic inside a kernel is caught in its worker and surfaced as a
// dispatch failure; remaining chunks still run to completion so the
// buffers are left in a bounded (if undefined) state.
func (d *dispatcher) run(n int, kern func(i int)) error {
	if n <= 0 {
		return nil
	}

	workers := d.workers
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	var once sync.Once
	var failure error

	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(i0, i1 int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					once.Do(func() {
						failure = fmt.Errorf("%w: %v", ErrDispatchFailure, r)
					})
				}
			}()
			for i := i0; i < i1; i++ {
				kern(i)
			}
		}(start, end)
	}
	wg.Wait()

	return failure
}
