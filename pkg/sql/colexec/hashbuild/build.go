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

// Package hashbuild turns the build side of a hash join into a JoinMap:
// every build row is inserted into a shared concurrent table, then the
// per-group row chains are assembled.
package hashbuild

import (
	"time"

	"github.com/vexdb/vex/pkg/common/hashmap"
	"github.com/vexdb/vex/pkg/common/moerr"
	"github.com/vexdb/vex/pkg/container/batch"
	"github.com/vexdb/vex/pkg/container/types"
	"github.com/vexdb/vex/pkg/container/vector"
	"github.com/vexdb/vex/pkg/logutil"
	"github.com/vexdb/vex/pkg/perfcounter"
	"github.com/vexdb/vex/pkg/vm/process"
)

// BuildHashTable inserts the key columns of bat into a join map sized
// for the batch.  hasNull selects whether null keys match each other;
// with hasNull false, rows holding a null key get no group and can
// never be probed.
//
// The insert phase runs on the process worker pool; workers share the
// concurrent table and synchronize only through its atomic slot claim.
// The function returns after all workers have retired and the row
// chains are final.
func BuildHashTable(proc *process.Process, bat *batch.Batch, keyCols []int32, hasNull bool) (*hashmap.JoinMap, error) {
	keyVecs, keyTypes, err := resolveKeys(bat, keyCols)
	if err != nil {
		return nil, err
	}

	rows := bat.RowCount()
	jm, err := hashmap.NewJoinMap(rows, keyTypes, hasNull, proc.Mp())
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		jm.FinishBuild(nil)
		return jm, nil
	}

	start := time.Now()
	values := make([]uint64, rows)
	err = proc.ParallelRange(rows, func(lo, hi int) error {
		itr := jm.NewIterator()
		for i := lo; i < hi; i += hashmap.UnitLimit {
			n := hi - i
			if n > hashmap.UnitLimit {
				n = hashmap.UnitLimit
			}
			vs, err := itr.Insert(i, n, keyVecs)
			if err != nil {
				return err
			}
			copy(values[i:i+n], vs)
		}
		return nil
	})
	if err != nil {
		jm.Free()
		return nil, err
	}

	jm.FinishBuild(values)
	perfcounter.BuildRows.Add(float64(rows))
	logutil.Debugf("hash build: %d rows, %d groups in %s",
		rows, jm.GroupCount(), time.Since(start))
	return jm, nil
}

func resolveKeys(bat *batch.Batch, keyCols []int32) ([]*vector.Vector, []types.Type, error) {
	if len(keyCols) == 0 {
		return nil, nil, moerr.NewInvalidArgNoCtx("join key count", 0)
	}
	if err := bat.Validate(); err != nil {
		return nil, nil, err
	}
	keyVecs := make([]*vector.Vector, len(keyCols))
	keyTypes := make([]types.Type, len(keyCols))
	for i, col := range keyCols {
		if col < 0 || int(col) >= bat.VectorCount() {
			return nil, nil, moerr.NewInvalidArgNoCtx("join key column", col)
		}
		keyVecs[i] = bat.GetVector(col)
		keyTypes[i] = *keyVecs[i].GetType()
	}
	return keyVecs, keyTypes, nil
}
