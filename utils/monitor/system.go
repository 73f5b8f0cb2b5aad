package monitor

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/michaelpento.lv/arbkeeper/utils/metrics"
)

// Sample is one reading of process resource usage
type Sample struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MaxRSSBytes int64   `json:"max_rss_bytes"`
	Goroutines  int     `json:"goroutines"`
	HeapAlloc   uint64  `json:"heap_alloc_bytes"`
	HeapObjects uint64  `json:"heap_objects"`
	GCPauseMs   float64 `json:"gc_pause_ms"`
}

// SystemMonitor samples process resource usage into the system gauges
type SystemMonitor struct {
	metrics  *metrics.SystemMetrics
	logger   *zap.Logger
	interval time.Duration

	mu       sync.Mutex
	lastCPU  time.Duration
	lastWall time.Time
	last     Sample
}

// NewSystemMonitor creates a monitor. m may be nil.
func NewSystemMonitor(m *metrics.SystemMetrics, interval time.Duration, logger *zap.Logger) *SystemMonitor {
	return &SystemMonitor{
		metrics:  m,
		logger:   logger,
		interval: interval,
	}
}

// Run samples every interval until ctx is cancelled
func (m *SystemMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Collect(); err != nil {
				m.logger.Error("Failed to collect system metrics", zap.Error(err))
			}
		}
	}
}

// Collect takes a sample now and publishes it
func (m *SystemMonitor) Collect() (Sample, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return Sample{}, fmt.Errorf("getrusage: %w", err)
	}
	cpu := time.Duration(ru.Utime.Nano() + ru.Stime.Nano())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	now := time.Now()

	m.mu.Lock()
	s := Sample{
		MaxRSSBytes: maxRSSBytes(&ru),
		Goroutines:  runtime.NumGoroutine(),
		HeapAlloc:   mem.HeapAlloc,
		HeapObjects: mem.HeapObjects,
		GCPauseMs:   float64(mem.PauseNs[(mem.NumGC+255)%256]) / float64(time.Millisecond),
	}
	if !m.lastWall.IsZero() {
		if wall := now.Sub(m.lastWall); wall > 0 {
			s.CPUPercent = float64(cpu-m.lastCPU) / float64(wall) * 100
		}
	}
	m.lastCPU, m.lastWall, m.last = cpu, now, s
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.CPUUsage.Set(s.CPUPercent)
		m.metrics.MaxRSS.Set(float64(s.MaxRSSBytes))
		m.metrics.Goroutines.Set(float64(s.Goroutines))
		m.metrics.HeapAlloc.Set(float64(s.HeapAlloc))
		m.metrics.HeapObjects.Set(float64(s.HeapObjects))
		m.metrics.GCPause.Set(s.GCPauseMs)
	}

	return s, nil
}

// Last returns the most recent sample
func (m *SystemMonitor) Last() Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
