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

// Package engine assembles a configured runtime: the logger, the memory
// pool, the process and the spill policy all come from one Config.
package engine

import (
	"context"

	"github.com/vexdb/vex/pkg/common/mpool"
	"github.com/vexdb/vex/pkg/config"
	"github.com/vexdb/vex/pkg/logutil"
	"github.com/vexdb/vex/pkg/sql/colexec/group"
	"github.com/vexdb/vex/pkg/vm/process"
)

type Engine struct {
	mp    *mpool.MPool
	proc  *process.Process
	spill *group.SpillManager
}

// New validates cfg and builds the runtime it describes.
func New(ctx context.Context, cfg config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logutil.Setup(cfg.LogLevel, cfg.LogFilename, cfg.LogMaxSizeMB, cfg.LogMaxBackups)

	mp, err := mpool.New("engine", cfg.MemoryCapMB<<20)
	if err != nil {
		return nil, err
	}
	proc, err := process.New(ctx, mp, cfg.Parallelism)
	if err != nil {
		return nil, err
	}
	e := &Engine{mp: mp, proc: proc}
	if cfg.SpillMemLimitMB > 0 {
		e.spill = group.NewSpillManager(cfg.SpillDir, cfg.SpillMemLimitMB)
	}
	return e, nil
}

// NewFromFile loads a TOML config file and builds the engine from it.
func NewFromFile(ctx context.Context, file string) (*Engine, error) {
	cfg, err := config.Load(file)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg)
}

func (e *Engine) Proc() *process.Process {
	return e.proc
}

func (e *Engine) Mp() *mpool.MPool {
	return e.mp
}

// NewGroup builds a group operator carrying the configured spill policy.
func (e *Engine) NewGroup(keyCols []int32, reqs []group.Request, ignoreNullKeys bool) *group.Group {
	g := group.New(e.proc, keyCols, reqs, ignoreNullKeys)
	if e.spill.Enabled() {
		g.SetSpill(e.spill)
	}
	return g
}

// Close releases the worker pool and any leftover spill files.  Batches
// allocated from the engine's pool must be cleaned first.
func (e *Engine) Close() {
	if e.spill != nil {
		e.spill.Cleanup()
		e.spill = nil
	}
	e.proc.Free()
}
