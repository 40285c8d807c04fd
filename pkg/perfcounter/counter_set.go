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

// Package perfcounter exposes engine counters through prometheus.
package perfcounter

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// BuildRows counts rows inserted into join build tables.
	BuildRows = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vex",
		Subsystem: "join",
		Name:      "build_rows_total",
		Help:      "Rows inserted into join build tables.",
	})

	// ProbeRows counts rows probed against join build tables.
	ProbeRows = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vex",
		Subsystem: "join",
		Name:      "probe_rows_total",
		Help:      "Rows probed against join build tables.",
	})

	// JoinMatches counts emitted join output rows.
	JoinMatches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vex",
		Subsystem: "join",
		Name:      "matches_total",
		Help:      "Join output rows emitted.",
	})

	// GroupsCreated counts distinct groups created by aggregation.
	GroupsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vex",
		Subsystem: "group",
		Name:      "groups_total",
		Help:      "Distinct groups created by aggregation.",
	})

	// SpillBytes counts bytes written to spill files.
	SpillBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vex",
		Subsystem: "group",
		Name:      "spill_bytes_total",
		Help:      "Bytes written to groupby spill files.",
	})
)

// Register installs the engine counters on r; use
// prometheus.DefaultRegisterer for the global registry.
func Register(r prometheus.Registerer) {
	r.MustRegister(BuildRows, ProbeRows, JoinMatches, GroupsCreated, SpillBytes)
}
