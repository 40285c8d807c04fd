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

// Package config loads engine settings from a TOML file.
package config

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/vexdb/vex/pkg/common/moerr"
)

type Config struct {
	// Parallelism caps the worker count of parallel build and probe
	// phases; 0 means one worker per CPU.
	Parallelism int `toml:"parallelism"`

	// MemoryCapMB caps the memory pool; 0 means uncapped.
	MemoryCapMB int64 `toml:"memory-cap-mb"`

	// SpillMemLimitMB is the in-memory threshold above which groupby
	// state spills to disk; 0 disables spilling.
	SpillMemLimitMB int64 `toml:"spill-mem-limit-mb"`

	// SpillDir holds spill files; defaults to the OS temp dir.
	SpillDir string `toml:"spill-dir"`

	LogLevel      string `toml:"log-level"`
	LogFilename   string `toml:"log-filename"`
	LogMaxSizeMB  int    `toml:"log-max-size-mb"`
	LogMaxBackups int    `toml:"log-max-backups"`
}

func Default() Config {
	return Config{
		Parallelism:   0,
		MemoryCapMB:   0,
		SpillDir:      os.TempDir(),
		LogLevel:      "info",
		LogMaxSizeMB:  512,
		LogMaxBackups: 10,
	}
}

// Load reads file over the defaults.
func Load(file string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(file, &cfg); err != nil {
		return cfg, moerr.NewBadConfigNoCtx("parse %s: %v", file, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Parallelism < 0 {
		return moerr.NewBadConfigNoCtx("parallelism %d", c.Parallelism)
	}
	if c.MemoryCapMB < 0 {
		return moerr.NewBadConfigNoCtx("memory-cap-mb %d", c.MemoryCapMB)
	}
	if c.SpillMemLimitMB < 0 {
		return moerr.NewBadConfigNoCtx("spill-mem-limit-mb %d", c.SpillMemLimitMB)
	}
	if c.SpillMemLimitMB > 0 && c.SpillDir == "" {
		return moerr.NewBadConfigNoCtx("spill enabled with empty spill-dir")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return moerr.NewBadConfigNoCtx("log-level %q", c.LogLevel)
	}
	return nil
}
