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

// Package join probes a built JoinMap and materializes the joined
// output.  Probing preserves multiplicities: a probe row matching a
// key that occupies k build rows emits k output rows.  Output order is
// unspecified; callers needing a stable order sort the result.
package join

import (
	"sync/atomic"
	"time"

	"github.com/vexdb/vex/pkg/common/hashmap"
	"github.com/vexdb/vex/pkg/common/moerr"
	"github.com/vexdb/vex/pkg/container/batch"
	"github.com/vexdb/vex/pkg/container/vector"
	"github.com/vexdb/vex/pkg/logutil"
	"github.com/vexdb/vex/pkg/perfcounter"
	"github.com/vexdb/vex/pkg/vm/process"
)

// NoMatch marks an output row with no source row on that side.
const NoMatch int64 = -1

// Result pairs build and probe row numbers; entry i of both slices
// describes output row i.  NoMatch on one side encodes an outer row.
type Result struct {
	BuildSels []int64
	ProbeSels []int64
}

func (r *Result) Len() int {
	return len(r.BuildSels)
}

// ProbeInner emits one row pair per (probe row, matching build row).
func ProbeInner(proc *process.Process, jm *hashmap.JoinMap, probeBat *batch.Batch, keyCols []int32) (*Result, error) {
	return probe(proc, jm, probeBat, keyCols, false, false)
}

// ProbeLeft is ProbeInner plus one (NoMatch, probe row) pair for every
// probe row without a match.
func ProbeLeft(proc *process.Process, jm *hashmap.JoinMap, probeBat *batch.Batch, keyCols []int32) (*Result, error) {
	return probe(proc, jm, probeBat, keyCols, true, false)
}

// ProbeFull is ProbeLeft plus one (build row, NoMatch) pair for every
// build row no probe row reached.
func ProbeFull(proc *process.Process, jm *hashmap.JoinMap, probeBat *batch.Batch, keyCols []int32) (*Result, error) {
	return probe(proc, jm, probeBat, keyCols, true, true)
}

func probe(proc *process.Process, jm *hashmap.JoinMap, probeBat *batch.Batch, keyCols []int32, keepProbe, keepBuild bool) (*Result, error) {
	keyVecs, err := resolveProbeKeys(probeBat, keyCols)
	if err != nil {
		return nil, err
	}
	rows := probeBat.RowCount()

	// build side empty: inner output is empty, outer rows pass through
	if jm.RowCount() == 0 {
		res := &Result{}
		if keepProbe {
			res.BuildSels = make([]int64, rows)
			res.ProbeSels = make([]int64, rows)
			for i := 0; i < rows; i++ {
				res.BuildSels[i] = NoMatch
				res.ProbeSels[i] = int64(i)
			}
		}
		return res, nil
	}
	if rows == 0 {
		res := &Result{}
		if keepBuild {
			appendUnmatchedBuild(res, jm, nil)
		}
		return res, nil
	}

	start := time.Now()
	est := estimateOutputRows(jm, keyVecs, rows)

	var matched []uint64
	if keepBuild {
		matched = make([]uint64, (jm.RowCount()+63)/64)
	}

	workers := proc.Parallelism()
	if workers > rows {
		workers = rows
	}
	chunk := (rows + workers - 1) / workers
	partials := make([]*Result, (rows+chunk-1)/chunk)

	err = proc.ParallelRange(rows, func(lo, hi int) error {
		part := &Result{
			BuildSels: make([]int64, 0, est/len(partials)+8),
			ProbeSels: make([]int64, 0, est/len(partials)+8),
		}
		itr := jm.NewIterator()
		for i := lo; i < hi; i += hashmap.UnitLimit {
			n := hi - i
			if n > hashmap.UnitLimit {
				n = hashmap.UnitLimit
			}
			vs := itr.Find(i, n, keyVecs)
			for k := 0; k < n; k++ {
				row := int64(i + k)
				sels := jm.Sels(vs[k])
				if len(sels) == 0 {
					if keepProbe {
						part.BuildSels = append(part.BuildSels, NoMatch)
						part.ProbeSels = append(part.ProbeSels, row)
					}
					continue
				}
				for _, sel := range sels {
					part.BuildSels = append(part.BuildSels, sel)
					part.ProbeSels = append(part.ProbeSels, row)
					if keepBuild {
						markMatched(matched, uint64(sel))
					}
				}
			}
		}
		partials[lo/chunk] = part
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		BuildSels: make([]int64, 0, est),
		ProbeSels: make([]int64, 0, est),
	}
	for _, part := range partials {
		if part == nil {
			continue
		}
		res.BuildSels = append(res.BuildSels, part.BuildSels...)
		res.ProbeSels = append(res.ProbeSels, part.ProbeSels...)
	}
	if keepBuild {
		appendUnmatchedBuild(res, jm, matched)
	}

	perfcounter.ProbeRows.Add(float64(rows))
	perfcounter.JoinMatches.Add(float64(res.Len()))
	logutil.Debugf("hash probe: %d rows in, %d rows out in %s",
		rows, res.Len(), time.Since(start))
	return res, nil
}

func markMatched(matched []uint64, row uint64) {
	addr := &matched[row/64]
	bit := uint64(1) << (row % 64)
	for {
		old := atomic.LoadUint64(addr)
		if old&bit != 0 || atomic.CompareAndSwapUint64(addr, old, old|bit) {
			return
		}
	}
}

// appendUnmatchedBuild adds a (build row, NoMatch) pair for every build
// row absent from the matched bitmap; a nil bitmap means nothing
// matched.
func appendUnmatchedBuild(res *Result, jm *hashmap.JoinMap, matched []uint64) {
	for row := int64(0); row < jm.RowCount(); row++ {
		if matched != nil && matched[row/64]&(uint64(1)<<(row%64)) != 0 {
			continue
		}
		res.BuildSels = append(res.BuildSels, row)
		res.ProbeSels = append(res.ProbeSels, NoMatch)
	}
}

// estimateOutputRows pre-sizes the result buffers.  Small probes count
// matches exactly; large ones extrapolate from an evenly spaced sample.
// The estimate only affects allocation, never the emitted rows.
func estimateOutputRows(jm *hashmap.JoinMap, keyVecs []*vector.Vector, rows int) int {
	const sampleTarget = 1024
	itr := jm.NewIterator()

	if int64(rows) <= 5*jm.RowCount() {
		total := 0
		for i := 0; i < rows; i += hashmap.UnitLimit {
			n := rows - i
			if n > hashmap.UnitLimit {
				n = hashmap.UnitLimit
			}
			vs := itr.Find(i, n, keyVecs)
			for k := 0; k < n; k++ {
				total += len(jm.Sels(vs[k]))
			}
		}
		return total
	}

	stride := rows / sampleTarget
	if stride == 0 {
		stride = 1
	}
	sampled, hits := 0, 0
	for i := 0; i < rows; i += stride {
		vs := itr.Find(i, 1, keyVecs)
		hits += len(jm.Sels(vs[0]))
		sampled++
	}
	if sampled == 0 {
		return rows
	}
	return hits * rows / sampled
}

func resolveProbeKeys(bat *batch.Batch, keyCols []int32) ([]*vector.Vector, error) {
	if len(keyCols) == 0 {
		return nil, moerr.NewInvalidArgNoCtx("join key count", 0)
	}
	if err := bat.Validate(); err != nil {
		return nil, err
	}
	vecs := make([]*vector.Vector, len(keyCols))
	for i, col := range keyCols {
		if col < 0 || int(col) >= bat.VectorCount() {
			return nil, moerr.NewInvalidArgNoCtx("join key column", col)
		}
		vecs[i] = bat.GetVector(col)
	}
	return vecs, nil
}
