package metrics

import (
	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"
)

// PebbleCollector exports pebble engine internals.
type PebbleCollector struct {
	db *pebble.DB

	compactionCount      *prometheus.Desc
	compactionDebt       *prometheus.Desc
	compactionInProgress *prometheus.Desc
	memtableSize         *prometheus.Desc
	memtableCount        *prometheus.Desc
	walFiles             *prometheus.Desc
	walSize              *prometheus.Desc
	walBytesIn           *prometheus.Desc
	walBytesWritten      *prometheus.Desc
	diskUsage            *prometheus.Desc
}

var _ prometheus.Collector = (*PebbleCollector)(nil)

// NewPebbleCollector creates a collector over db.
func NewPebbleCollector(db *pebble.DB) *PebbleCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("indexstore_pebble_"+name, help, nil, nil)
	}
	return &PebbleCollector{
		db:                   db,
		compactionCount:      desc("compaction_count_total", "Total number of compactions performed"),
		compactionDebt:       desc("compaction_estimated_debt_bytes", "Estimated bytes to compact to reach a stable state"),
		compactionInProgress: desc("compaction_in_progress_bytes", "Bytes being compacted currently"),
		memtableSize:         desc("memtable_size_bytes", "Current size of the memtables in bytes"),
		memtableCount:        desc("memtable_count", "Current count of memtables"),
		walFiles:             desc("wal_files", "Number of live WAL files"),
		walSize:              desc("wal_size_bytes", "Size of live WAL data in bytes"),
		walBytesIn:           desc("wal_bytes_in_total", "Logical bytes written to the WAL"),
		walBytesWritten:      desc("wal_bytes_written_total", "Physical bytes written to the WAL"),
		diskUsage:            desc("disk_usage_bytes", "Total disk space used by the database"),
	}
}

// Describe implements prometheus.Collector.
func (pc *PebbleCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pc.compactionCount
	ch <- pc.compactionDebt
	ch <- pc.compactionInProgress
	ch <- pc.memtableSize
	ch <- pc.memtableCount
	ch <- pc.walFiles
	ch <- pc.walSize
	ch <- pc.walBytesIn
	ch <- pc.walBytesWritten
	ch <- pc.diskUsage
}

// Collect implements prometheus.Collector.
func (pc *PebbleCollector) Collect(ch chan<- prometheus.Metric) {
	m := pc.db.Metrics()

	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v)
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	counter(pc.compactionCount, float64(m.Compact.Count))
	gauge(pc.compactionDebt, float64(m.Compact.EstimatedDebt))
	gauge(pc.compactionInProgress, float64(m.Compact.InProgressBytes))
	gauge(pc.memtableSize, float64(m.MemTable.Size))
	gauge(pc.memtableCount, float64(m.MemTable.Count))
	gauge(pc.walFiles, float64(m.WAL.Files))
	gauge(pc.walSize, float64(m.WAL.Size))
	counter(pc.walBytesIn, float64(m.WAL.BytesIn))
	counter(pc.walBytesWritten, float64(m.WAL.BytesWritten))
	gauge(pc.diskUsage, float64(m.DiskSpaceUsage()))
}
