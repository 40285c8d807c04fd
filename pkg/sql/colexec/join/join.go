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

package join

import (
	"github.com/vexdb/vex/pkg/common/moerr"
	"github.com/vexdb/vex/pkg/container/batch"
	"github.com/vexdb/vex/pkg/container/vector"
	"github.com/vexdb/vex/pkg/vm/process"
)

// CommonCol names a join key column present on both sides that the
// output carries once: the build value where the build side is present,
// else the probe value.  Both members must be key columns; coalescing a
// payload column would fabricate values on outer rows.
type CommonCol struct {
	Build int32
	Probe int32
}

// Materialize gathers the joined rows into one batch.  buildKeys and
// probeKeys are the key column lists the map was built and probed with;
// every CommonCol pair must name one column from each.  Column order is
// the common columns, then buildCols, then probeCols; attribute names
// follow the source batches.  Outer rows read null on their missing
// side.
func Materialize(proc *process.Process, res *Result, buildBat, probeBat *batch.Batch,
	buildKeys, probeKeys, buildCols, probeCols []int32, common []CommonCol) (*batch.Batch, error) {
	if err := validateCols(buildBat, buildCols); err != nil {
		return nil, err
	}
	if err := validateCols(probeBat, probeCols); err != nil {
		return nil, err
	}
	for _, cc := range common {
		if cc.Build < 0 || int(cc.Build) >= buildBat.VectorCount() {
			return nil, moerr.NewInvalidArgNoCtx("common build column", cc.Build)
		}
		if cc.Probe < 0 || int(cc.Probe) >= probeBat.VectorCount() {
			return nil, moerr.NewInvalidArgNoCtx("common probe column", cc.Probe)
		}
		if !isKeyCol(buildKeys, cc.Build) {
			return nil, moerr.NewInvalidArgNoCtx("common build column not a join key", cc.Build)
		}
		if !isKeyCol(probeKeys, cc.Probe) {
			return nil, moerr.NewInvalidArgNoCtx("common probe column not a join key", cc.Probe)
		}
		bt := buildBat.GetVector(cc.Build).GetType()
		pt := probeBat.GetVector(cc.Probe).GetType()
		if bt.Oid != pt.Oid {
			return nil, moerr.NewTypeMismatchNoCtx(bt.String(), pt.String())
		}
	}

	mp := proc.Mp()
	out := batch.NewWithSize(len(common) + len(buildCols) + len(probeCols))
	out.Attrs = make([]string, 0, len(out.Vecs))
	cleanup := func() {
		for _, vec := range out.Vecs {
			if vec != nil {
				vec.Free(mp)
			}
		}
	}

	idx := 0
	for _, cc := range common {
		vec, err := vector.GatherCoalesce(
			buildBat.GetVector(cc.Build), probeBat.GetVector(cc.Probe),
			res.BuildSels, res.ProbeSels, mp)
		if err != nil {
			cleanup()
			return nil, err
		}
		out.SetVector(int32(idx), vec)
		out.Attrs = append(out.Attrs, attrOf(buildBat, cc.Build))
		idx++
	}
	for _, col := range buildCols {
		vec, err := vector.Gather(buildBat.GetVector(col), res.BuildSels, mp)
		if err != nil {
			cleanup()
			return nil, err
		}
		out.SetVector(int32(idx), vec)
		out.Attrs = append(out.Attrs, attrOf(buildBat, col))
		idx++
	}
	for _, col := range probeCols {
		vec, err := vector.Gather(probeBat.GetVector(col), res.ProbeSels, mp)
		if err != nil {
			cleanup()
			return nil, err
		}
		out.SetVector(int32(idx), vec)
		out.Attrs = append(out.Attrs, attrOf(probeBat, col))
		idx++
	}
	out.SetRowCount(res.Len())
	return out, nil
}

func isKeyCol(keys []int32, col int32) bool {
	for _, k := range keys {
		if k == col {
			return true
		}
	}
	return false
}

func validateCols(bat *batch.Batch, cols []int32) error {
	for _, col := range cols {
		if col < 0 || int(col) >= bat.VectorCount() {
			return moerr.NewInvalidArgNoCtx("output column", col)
		}
	}
	return nil
}

func attrOf(bat *batch.Batch, col int32) string {
	if int(col) < len(bat.Attrs) {
		return bat.Attrs[col]
	}
	return ""
}
