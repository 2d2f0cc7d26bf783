package scanner

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/openmediakit/librarian/internal/logger"
)

// SystemLoadMonitor samples CPU and memory usage in the background. The
// manager uses it to size the scan worker pool and to surface load in the
// status endpoint.
type SystemLoadMonitor struct {
	mu          sync.RWMutex
	cpuUsage    float64
	memoryUsage float64
	updateTime  time.Time

	numCPU int
	done   chan struct{}
	once   sync.Once
}

// NewSystemLoadMonitor creates a monitor and starts its sampling loop.
func NewSystemLoadMonitor() *SystemLoadMonitor {
	m := &SystemLoadMonitor{
		numCPU: runtime.NumCPU(),
		done:   make(chan struct{}),
	}
	if counts, err := cpu.Counts(true); err == nil && counts > 0 {
		m.numCPU = counts
	}
	go m.sampleLoop()
	return m
}

func (m *SystemLoadMonitor) sampleLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	m.sample()
	for {
		select {
		case <-ticker.C:
			m.sample()
		case <-m.done:
			return
		}
	}
}

func (m *SystemLoadMonitor) sample() {
	var cpuUsage, memUsage float64

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		cpuUsage = percents[0]
	} else if err != nil {
		logger.Debug("cpu sampling failed", "error", err)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		memUsage = vm.UsedPercent
	} else {
		logger.Debug("memory sampling failed", "error", err)
	}

	m.mu.Lock()
	m.cpuUsage = cpuUsage
	m.memoryUsage = memUsage
	m.updateTime = time.Now()
	m.mu.Unlock()
}

// GetMetrics returns the last sampled CPU and memory usage percentages.
func (m *SystemLoadMonitor) GetMetrics() (cpuUsage, memoryUsage float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cpuUsage, m.memoryUsage
}

// RecommendedWorkers clamps the configured worker count to the CPU count so
// a generous config cannot oversubscribe a small host.
func (m *SystemLoadMonitor) RecommendedWorkers(configured int) int {
	if configured <= 0 {
		configured = 4
	}
	if configured > m.numCPU {
		return m.numCPU
	}
	return configured
}

// GetSystemInfo returns host information for status reporting.
func (m *SystemLoadMonitor) GetSystemInfo() map[string]interface{} {
	cpuUsage, memUsage := m.GetMetrics()
	return map[string]interface{}{
		"num_cpu":        m.numCPU,
		"goroutines":     runtime.NumGoroutine(),
		"cpu_percent":    cpuUsage,
		"memory_percent": memUsage,
	}
}

// Stop terminates the sampling loop.
func (m *SystemLoadMonitor) Stop() {
	m.once.Do(func() { close(m.done) })
}
