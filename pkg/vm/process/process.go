// Copyright 2023 The Vex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package process carries the per-query execution context: the memory
// pool, the cancellation context and the worker pool operators run
// parallel phases on.
package process

import (
	"context"
	"runtime"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/vexdb/vex/pkg/common/moerr"
	"github.com/vexdb/vex/pkg/common/mpool"
)

type Process struct {
	ctx context.Context
	mp  *mpool.MPool

	parallelism int
	pool        *ants.Pool
}

// New builds a process with the given parallelism; parallelism <= 0
// defaults to GOMAXPROCS.
func New(ctx context.Context, mp *mpool.MPool, parallelism int) (*Process, error) {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	pool, err := ants.NewPool(parallelism)
	if err != nil {
		return nil, moerr.NewInternalErrorNoCtx("create worker pool: %v", err)
	}
	return &Process{
		ctx:         ctx,
		mp:          mp,
		parallelism: parallelism,
		pool:        pool,
	}, nil
}

// NewTestProcess builds an uncapped single-use process for tests.
func NewTestProcess() *Process {
	proc, err := New(context.Background(), mpool.MustNewZero(), 0)
	if err != nil {
		panic(err)
	}
	return proc
}

func (proc *Process) Ctx() context.Context {
	return proc.ctx
}

func (proc *Process) Mp() *mpool.MPool {
	return proc.mp
}

func (proc *Process) Parallelism() int {
	return proc.parallelism
}

// ParallelRange splits [0, n) into parallelism chunks and runs fn on
// the workers, returning the first error.  fn must be safe to call
// concurrently on disjoint ranges.  Returns only after every chunk has
// finished.
func (proc *Process) ParallelRange(n int, fn func(start, end int) error) error {
	if n == 0 {
		return nil
	}
	workers := proc.parallelism
	if workers > n {
		workers = n
	}
	if workers == 1 {
		return fn(0, n)
	}
	chunk := (n + workers - 1) / workers

	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		if start >= end {
			break
		}
		eg.Go(func() error {
			done := make(chan error, 1)
			if err := proc.pool.Submit(func() {
				done <- fn(start, end)
			}); err != nil {
				// pool rejected the task, run inline
				return fn(start, end)
			}
			select {
			case err := <-done:
				return err
			case <-proc.ctx.Done():
				return proc.ctx.Err()
			}
		})
	}
	return eg.Wait()
}

// Free releases the worker pool.  The memory pool is owned by the
// caller and is not touched.
func (proc *Process) Free() {
	if proc.pool != nil {
		proc.pool.Release()
		proc.pool = nil
	}
}
