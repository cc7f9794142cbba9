// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package health

import (
	"os"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Stats tracks self-monitoring counters for the daemon.
type Stats struct {
	startTime time.Time
	proc      *process.Process

	ActiveStreams  atomic.Int64
	FramesDecoded  atomic.Int64
	FrameBytes     atomic.Int64
	FramesExported atomic.Int64
	FramesDropped  atomic.Int64
	UpstreamErrors atomic.Int64
}

// NewStats creates a new Stats instance.
func NewStats() *Stats {
	s := &Stats{
		startTime: time.Now(),
	}
	// Self-process handle for CPU/memory gauges. A lookup failure
	// leaves it nil and the gauges report zero.
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		s.proc = proc
	}
	return s
}

// Uptime returns daemon uptime.
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	UptimeSeconds  float64 `json:"uptime_seconds"`
	Goroutines     int     `json:"goroutines"`
	MemoryRSSBytes uint64  `json:"memory_rss_bytes"`
	CPUPercent     float64 `json:"cpu_percent"`
	Threads        int32   `json:"threads"`
	OpenFDs        int32   `json:"open_fds"`
	ActiveStreams  int64   `json:"active_streams"`
	FramesDecoded  int64   `json:"frames_decoded"`
	FrameBytes     int64   `json:"frame_bytes"`
	FramesExported int64   `json:"frames_exported"`
	FramesDropped  int64   `json:"frames_dropped"`
	UpstreamErrors int64   `json:"upstream_errors"`
}

// Snapshot returns current stats.
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		UptimeSeconds:  s.Uptime().Seconds(),
		Goroutines:     runtime.NumGoroutine(),
		ActiveStreams:  s.ActiveStreams.Load(),
		FramesDecoded:  s.FramesDecoded.Load(),
		FrameBytes:     s.FrameBytes.Load(),
		FramesExported: s.FramesExported.Load(),
		FramesDropped:  s.FramesDropped.Load(),
		UpstreamErrors: s.UpstreamErrors.Load(),
	}

	if s.proc != nil {
		if cpuPct, err := s.proc.CPUPercent(); err == nil {
			snap.CPUPercent = cpuPct
		}
		if memInfo, err := s.proc.MemoryInfo(); err == nil {
			snap.MemoryRSSBytes = memInfo.RSS
		}
		if threads, err := s.proc.NumThreads(); err == nil {
			snap.Threads = threads
		}
		if fds, err := s.proc.NumFDs(); err == nil {
			snap.OpenFDs = fds
		}
	}

	return snap
}

// PrometheusMetrics returns stats in Prometheus text exposition format.
func (s *Stats) PrometheusMetrics() string {
	snap := s.Snapshot()
	return prometheusFormat(snap)
}

func prometheusFormat(snap Snapshot) string {
	var b []byte
	b = appendMetric(b, "frametap_uptime_seconds", "gauge", "Daemon uptime in seconds", snap.UptimeSeconds)
	b = appendMetric(b, "frametap_goroutines", "gauge", "Number of goroutines", float64(snap.Goroutines))
	b = appendMetric(b, "frametap_memory_rss_bytes", "gauge", "Resident memory in bytes", float64(snap.MemoryRSSBytes))
	b = appendMetric(b, "frametap_process_cpu_percent", "gauge", "Process CPU utilization percent", snap.CPUPercent)
	b = appendMetric(b, "frametap_process_threads", "gauge", "Number of OS threads", float64(snap.Threads))
	b = appendMetric(b, "frametap_process_open_fds", "gauge", "Open file descriptors", float64(snap.OpenFDs))
	b = appendMetric(b, "frametap_streams_active", "gauge", "Streams currently running", float64(snap.ActiveStreams))
	b = appendMetric(b, "frametap_frames_decoded_total", "counter", "Total frames decoded", float64(snap.FramesDecoded))
	b = appendMetric(b, "frametap_frame_bytes_total", "counter", "Total decoded frame payload bytes", float64(snap.FrameBytes))
	b = appendMetric(b, "frametap_frames_exported_total", "counter", "Total frames queued for export", float64(snap.FramesExported))
	b = appendMetric(b, "frametap_frames_dropped_total", "counter", "Total frames dropped", float64(snap.FramesDropped))
	b = appendMetric(b, "frametap_upstream_errors_total", "counter", "Total upstream transport errors", float64(snap.UpstreamErrors))
	return string(b)
}

func appendMetric(b []byte, name, typ, help string, value float64) []byte {
	b = append(b, "# HELP "...)
	b = append(b, name...)
	b = append(b, ' ')
	b = append(b, help...)
	b = append(b, '\n')
	b = append(b, "# TYPE "...)
	b = append(b, name...)
	b = append(b, ' ')
	b = append(b, typ...)
	b = append(b, '\n')
	b = append(b, name...)
	b = append(b, ' ')
	b = appendValue(b, value)
	b = append(b, '\n')
	return b
}

// appendValue prints whole numbers without a decimal point so counter
// samples stay integral.
func appendValue(b []byte, f float64) []byte {
	if f == float64(int64(f)) {
		return strconv.AppendInt(b, int64(f), 10)
	}
	return strconv.AppendFloat(b, f, 'f', -1, 64)
}
