// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry exposes engine event counters to Prometheus. The
// collector reads Stats snapshots on scrape; nothing here touches the
// engine's hot path.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"tally"
)

// Source pairs a session name with its counter for labeling.
type Source struct {
	Name    string
	Counter *tally.Counter
}

// Collector implements prometheus.Collector over the engines' event stats.
type Collector struct {
	sources []Source

	rebalances *prometheus.Desc
	flagsSet   *prometheus.Desc
	drops      *prometheus.Desc
	shards     *prometheus.Desc
}

// NewCollector builds a collector for a fixed set of sources.
func NewCollector(sources ...Source) *Collector {
	labels := []string{"session"}
	return &Collector{
		sources: sources,
		rebalances: prometheus.NewDesc(
			"tally_rebalance_moves_total",
			"Magnitude moves from a shard into the global layout",
			labels, nil),
		flagsSet: prometheus.NewDesc(
			"tally_flag_sets_total",
			"First-time overflow/underflow flag sets across all layouts",
			labels, nil),
		drops: prometheus.NewDesc(
			"tally_dropped_updates_total",
			"Updates discarded for malformed indexes",
			labels, nil),
		shards: prometheus.NewDesc(
			"tally_shards",
			"Number of writer shards",
			labels, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rebalances
	ch <- c.flagsSet
	ch <- c.drops
	ch <- c.shards
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.sources {
		st := s.Counter.Stats()
		ch <- prometheus.MustNewConstMetric(c.rebalances, prometheus.CounterValue, float64(st.Rebalances), s.Name)
		ch <- prometheus.MustNewConstMetric(c.flagsSet, prometheus.CounterValue, float64(st.FlagsSet), s.Name)
		ch <- prometheus.MustNewConstMetric(c.drops, prometheus.CounterValue, float64(st.DroppedUpdates), s.Name)
		ch <- prometheus.MustNewConstMetric(c.shards, prometheus.GaugeValue, float64(s.Counter.Shards()), s.Name)
	}
}
