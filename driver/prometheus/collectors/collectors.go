// SPDX-FileCopyrightText: 2023 Datafuse Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package collectors implements databend client prometheus collectors.
package collectors

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/databendcloud/databend-client/driver"
)

const namespace = "databend_client"

type stats interface {
	Stats() driver.Stats
}

var statsOpTexts = driver.StatsOpTexts

type collector struct {
	s stats

	openConnections *prometheus.Desc
	openIterators   *prometheus.Desc
	queries         *prometheus.Desc
	queryErrors     *prometheus.Desc
	rowsRead        *prometheus.Desc
	bytesUploaded   *prometheus.Desc
	durations       *prometheus.Desc
}

func newCollector(s stats, subsystem string, labels prometheus.Labels) prometheus.Collector {
	// fqName: namespace, subsystem, name
	fqName := func(name string) string { return strings.Join([]string{namespace, subsystem, name}, "_") }
	return &collector{
		s: s,
		openConnections: prometheus.NewDesc(
			fqName("open_connections"),
			fmt.Sprintf("The number of established %s connections.", subsystem),
			nil,
			labels,
		),
		openIterators: prometheus.NewDesc(
			fqName("open_iterators"),
			fmt.Sprintf("The number of open %s row iterators.", subsystem),
			nil,
			labels,
		),
		queries: prometheus.NewDesc(
			fqName("queries"),
			fmt.Sprintf("The total number of %s queries started.", subsystem),
			nil,
			labels,
		),
		queryErrors: prometheus.NewDesc(
			fqName("query_errors"),
			fmt.Sprintf("The total number of failed %s queries.", subsystem),
			nil,
			labels,
		),
		rowsRead: prometheus.NewDesc(
			fqName("rows_read"),
			fmt.Sprintf("The total number of rows yielded by %s iterators.", subsystem),
			nil,
			labels,
		),
		bytesUploaded: prometheus.NewDesc(
			fqName("bytes_uploaded"),
			fmt.Sprintf("The total bytes uploaded to stages by %s.", subsystem),
			nil,
			labels,
		),
		durations: prometheus.NewDesc(
			fqName("operation_duration_stats"),
			fmt.Sprintf("The spent time measured in milliseconds for the different operation categories of %s.", subsystem),
			[]string{"operation"},
			labels,
		),
	}
}

// Describe implements Collector.
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.openConnections
	ch <- c.openIterators
	ch <- c.queries
	ch <- c.queryErrors
	ch <- c.rowsRead
	ch <- c.bytesUploaded
	for i := 0; i < driver.StatsNumOp; i++ {
		ch <- c.durations
	}
}

func buckets(s *driver.DurationStat) map[float64]uint64 {
	buckets := map[float64]uint64{}
	for k, v := range s.Buckets {
		buckets[float64(k)] = v
	}
	return buckets
}

// Collect implements Collector.
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.s.Stats()
	ch <- prometheus.MustNewConstMetric(c.openConnections, prometheus.GaugeValue, float64(stats.OpenConnections))
	ch <- prometheus.MustNewConstMetric(c.openIterators, prometheus.GaugeValue, float64(stats.OpenIterators))
	ch <- prometheus.MustNewConstMetric(c.queries, prometheus.CounterValue, float64(stats.Queries))
	ch <- prometheus.MustNewConstMetric(c.queryErrors, prometheus.CounterValue, float64(stats.QueryErrors))
	ch <- prometheus.MustNewConstMetric(c.rowsRead, prometheus.CounterValue, float64(stats.RowsRead))
	ch <- prometheus.MustNewConstMetric(c.bytesUploaded, prometheus.CounterValue, float64(stats.BytesUploaded))
	for i, h := range stats.OpDurations {
		ch <- prometheus.MustNewConstHistogram(c.durations, h.Count, float64(h.Sum), buckets(h), statsOpTexts[i])
	}
}

type globalStats struct{}

func (globalStats) Stats() driver.Stats { return driver.GlobalStats() }

// NewDriverCollector returns a collector that exports the aggregated metrics
// of all driver connections.
func NewDriverCollector() prometheus.Collector {
	return newCollector(globalStats{}, "driver", nil)
}

// NewConnectionCollector returns a collector that exports the metrics of one
// driver connection.
func NewConnectionCollector(conn driver.Connection, dbName string) prometheus.Collector {
	return newCollector(conn, "connection", prometheus.Labels{"db_name": dbName})
}
