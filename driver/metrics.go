// SPDX-FileCopyrightText: 2023 Datafuse Labs
//
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"sort"
	"sync"
	"sync/atomic"
)

// StatsNumOp is the number of operation duration categories.
const StatsNumOp = 4

// StatsOpTexts are the texts used for the operation duration categories.
var StatsOpTexts = [StatsNumOp]string{"exec", "query", "upload", "load"}

// StatsDurationBuckets are the used duration buckets in milliseconds.
var StatsDurationBuckets = []uint64{1, 10, 100, 1000, 10000, 100000}

// Constants for duration statistics.
const (
	opExec = iota
	opQuery
	opUpload
	opLoad
)

const (
	counterQueries = iota
	counterQueryErrors
	counterRowsRead
	counterBytesUploaded
	numCounter
)

const (
	gaugeConn = iota
	gaugeIter
	numGauge
)

type counter struct {
	n uint64 // atomic access.
}

func (c *counter) add(n uint64)  { atomic.AddUint64(&c.n, n) }
func (c *counter) value() uint64 { return atomic.LoadUint64(&c.n) }

type gauge struct {
	v int64 // atomic access.
}

func (g *gauge) add(n int64)  { atomic.AddInt64(&g.v, n) }
func (g *gauge) value() int64 { return atomic.LoadInt64(&g.v) }

type durationHistogram struct {
	mu              sync.Mutex
	count           uint64
	sum             uint64
	durationBuckets []uint64
	buckets         []uint64
	underflow       uint64 // in case of negative duration (will add to zero bucket)
}

func newDurationHistogram(durationBuckets []uint64) *durationHistogram {
	durationBucketsClone := make([]uint64, len(durationBuckets))
	copy(durationBucketsClone, durationBuckets)
	if len(durationBucketsClone) == 0 {
		panic("number of duration buckets cannot be zero")
	}
	return &durationHistogram{durationBuckets: durationBucketsClone, buckets: make([]uint64, len(durationBucketsClone))}
}

func (h *durationHistogram) stats() *DurationStat {
	h.mu.Lock()
	rv := &DurationStat{
		Count:   h.count,
		Sum:     h.sum,
		Buckets: make(map[uint64]uint64, len(h.buckets)),
	}
	for i, durationBucket := range h.durationBuckets {
		rv.Buckets[durationBucket] = h.buckets[i]
	}
	h.mu.Unlock()
	return rv
}

func (h *durationHistogram) add(ms int64) {
	h.mu.Lock()
	h.count++
	if ms < 0 {
		h.underflow++
		h.mu.Unlock()
		return
	}
	h.sum += uint64(ms)
	// determine index
	i := sort.Search(len(h.durationBuckets), func(i int) bool { return h.durationBuckets[i] >= uint64(ms) })
	if i < len(h.durationBuckets) {
		h.buckets[i]++
	}
	h.mu.Unlock()
}

type metrics struct {
	parent             *metrics
	counters           []*counter
	gauges             []*gauge
	durationHistograms []*durationHistogram
}

func newMetrics(parent *metrics) *metrics {
	rv := &metrics{
		parent:             parent,
		counters:           make([]*counter, numCounter),
		gauges:             make([]*gauge, numGauge),
		durationHistograms: make([]*durationHistogram, StatsNumOp),
	}
	for i := 0; i < numCounter; i++ {
		rv.counters[i] = &counter{}
	}
	for i := 0; i < numGauge; i++ {
		rv.gauges[i] = &gauge{}
	}
	for i := 0; i < StatsNumOp; i++ {
		rv.durationHistograms[i] = newDurationHistogram(StatsDurationBuckets)
	}
	return rv
}

func (m *metrics) addCounterValue(kind int, v uint64) {
	m.counters[kind].add(v)
	if m.parent != nil {
		m.parent.counters[kind].add(v)
	}
}

func (m *metrics) addGaugeValue(kind int, v int64) {
	m.gauges[kind].add(v)
	if m.parent != nil {
		m.parent.gauges[kind].add(v)
	}
}

func (m *metrics) addDurationHistogramValue(kind int, v int64) {
	m.durationHistograms[kind].add(v)
	if m.parent != nil {
		m.parent.durationHistograms[kind].add(v)
	}
}

func (m *metrics) stats() Stats {
	opDurations := make([]*DurationStat, StatsNumOp)
	for i := 0; i < StatsNumOp; i++ {
		opDurations[i] = m.durationHistograms[i].stats()
	}
	return Stats{
		OpenConnections: int(m.gauges[gaugeConn].value()),
		OpenIterators:   int(m.gauges[gaugeIter].value()),
		Queries:         m.counters[counterQueries].value(),
		QueryErrors:     m.counters[counterQueryErrors].value(),
		RowsRead:        m.counters[counterRowsRead].value(),
		BytesUploaded:   m.counters[counterBytesUploaded].value(),
		OpDurations:     opDurations,
	}
}

// stdMetrics aggregates the statistics of all connections.
var stdMetrics = newMetrics(nil)

// GlobalStats returns the aggregated statistics of all connections created
// by this driver.
func GlobalStats() Stats { return stdMetrics.stats() }
