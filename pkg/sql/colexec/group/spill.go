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

package group

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4"

	"github.com/vexdb/vex/pkg/common/moerr"
	"github.com/vexdb/vex/pkg/logutil"
	"github.com/vexdb/vex/pkg/perfcounter"
)

// SpillManager writes partial aggregation states to lz4-compressed
// temp files.  Each file holds one partial as a sequence of
// length-prefixed frames.
type SpillManager struct {
	dir   string
	limit int64
	files []string
	seq   int
}

// NewSpillManager spills to dir once a partial state passes limitMB.
// limitMB <= 0 disables spilling.
func NewSpillManager(dir string, limitMB int64) *SpillManager {
	return &SpillManager{dir: dir, limit: limitMB << 20}
}

func (sm *SpillManager) Enabled() bool {
	return sm != nil && sm.limit > 0
}

// Limit returns the spill threshold in bytes.
func (sm *SpillManager) Limit() int64 {
	return sm.limit
}

// Count returns the number of partials written so far.
func (sm *SpillManager) Count() int {
	if sm == nil {
		return 0
	}
	return len(sm.files)
}

// Write stores one partial state as a new spill file.
func (sm *SpillManager) Write(frames [][]byte) error {
	name := filepath.Join(sm.dir, fmt.Sprintf("vex-spill-%d-%d.lz4", os.Getpid(), sm.seq))
	sm.seq++

	f, err := os.Create(name)
	if err != nil {
		return moerr.NewInternalErrorNoCtx("create spill file: %v", err)
	}
	zw := lz4.NewWriter(f)

	var written int64
	if err := binary.Write(zw, binary.BigEndian, uint32(len(frames))); err != nil {
		f.Close()
		return moerr.NewInternalErrorNoCtx("write spill header: %v", err)
	}
	for _, frame := range frames {
		if err := binary.Write(zw, binary.BigEndian, int32(len(frame))); err != nil {
			f.Close()
			return moerr.NewInternalErrorNoCtx("write spill frame: %v", err)
		}
		if _, err := zw.Write(frame); err != nil {
			f.Close()
			return moerr.NewInternalErrorNoCtx("write spill frame: %v", err)
		}
		written += int64(len(frame))
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return moerr.NewInternalErrorNoCtx("flush spill file: %v", err)
	}
	if err := f.Close(); err != nil {
		return moerr.NewInternalErrorNoCtx("close spill file: %v", err)
	}

	sm.files = append(sm.files, name)
	perfcounter.SpillBytes.Add(float64(written))
	logutil.Debugf("spill: wrote %s (%d frames, %d bytes raw)",
		name, len(frames), written)
	return nil
}

// Read loads spill file i back into frames.
func (sm *SpillManager) Read(i int) ([][]byte, error) {
	if i < 0 || i >= len(sm.files) {
		return nil, moerr.NewInvalidArgNoCtx("spill file index", i)
	}
	f, err := os.Open(sm.files[i])
	if err != nil {
		return nil, moerr.NewInternalErrorNoCtx("open spill file: %v", err)
	}
	defer f.Close()
	zr := lz4.NewReader(f)

	var count uint32
	if err := binary.Read(zr, binary.BigEndian, &count); err != nil {
		return nil, moerr.NewInternalErrorNoCtx("read spill header: %v", err)
	}
	frames := make([][]byte, count)
	for j := range frames {
		var sz int32
		if err := binary.Read(zr, binary.BigEndian, &sz); err != nil {
			return nil, moerr.NewInternalErrorNoCtx("read spill frame: %v", err)
		}
		if sz < 0 {
			return nil, moerr.NewInvalidInputNoCtx("spill frame length %d", sz)
		}
		frames[j] = make([]byte, sz)
		if _, err := io.ReadFull(zr, frames[j]); err != nil {
			return nil, moerr.NewInternalErrorNoCtx("read spill frame: %v", err)
		}
	}
	return frames, nil
}

// Cleanup removes all spill files.
func (sm *SpillManager) Cleanup() {
	for _, name := range sm.files {
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			logutil.Warnf("spill: remove %s: %v", name, err)
		}
	}
	sm.files = nil
}
