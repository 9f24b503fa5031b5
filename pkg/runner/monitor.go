package runner

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/donnie4w/go-logger/logger"
)

// MemoryStats 内存统计信息
type MemoryStats struct {
	HeapAlloc   uint64    // 堆已分配内存 (字节)
	HeapSys     uint64    // 堆系统内存 (字节)
	NumGC       uint32    // GC次数
	LastGCTime  time.Time // 上次GC时间
	MemoryUsage float64   // 内存使用率 (%)
}

// memoryMonitor 扫描期间的内存监控器
// 大批量目标配合大签名库时堆内存增长快，超阈值主动触发GC
type memoryMonitor struct {
	enabled              atomic.Bool
	highMemThreshold     uint64
	criticalMemThreshold uint64
}

var globalMonitor = &memoryMonitor{
	highMemThreshold:     2 * 1024 * 1024 * 1024, // 2GB
	criticalMemThreshold: 4 * 1024 * 1024 * 1024, // 4GB
}

// StartMemoryMonitor 启动内存监控
func StartMemoryMonitor() {
	if !globalMonitor.enabled.CompareAndSwap(false, true) {
		return // 已经启动
	}
	go globalMonitor.monitorLoop()
	logger.Debug("内存监控已启动")
}

// StopMemoryMonitor 停止内存监控
func StopMemoryMonitor() {
	globalMonitor.enabled.Store(false)
	logger.Debug("内存监控已停止")
}

// monitorLoop 每30秒检查一次内存使用情况
func (pm *memoryMonitor) monitorLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for pm.enabled.Load() {
		<-ticker.C
		pm.checkMemoryUsage()
	}
}

// checkMemoryUsage 检查内存使用情况并处理内存压力
func (pm *memoryMonitor) checkMemoryUsage() {
	stats := GetMemoryStats()

	logger.Debug(fmt.Sprintf("内存使用: %.2f MB (%.1f%%), GC次数: %d",
		float64(stats.HeapAlloc)/1024/1024, stats.MemoryUsage, stats.NumGC))

	shouldForceGC := false

	// 内存使用超过高阈值
	if stats.HeapAlloc > pm.highMemThreshold {
		shouldForceGC = true
	}

	// 内存使用率超过85%
	if stats.MemoryUsage > 85.0 {
		shouldForceGC = true
	}

	// 距离上次GC时间超过2分钟
	if time.Since(stats.LastGCTime) > 2*time.Minute {
		shouldForceGC = true
	}

	if shouldForceGC {
		runtime.GC()

		// 如果内存使用仍然很高，主动释放系统内存
		if stats.HeapAlloc > pm.criticalMemThreshold {
			logger.Debug("内存使用达到临界值，释放系统内存")
			debug.FreeOSMemory()
		}
	}
}

// GetMemoryStats 获取当前内存统计信息
func GetMemoryStats() MemoryStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return MemoryStats{
		HeapAlloc:   memStats.HeapAlloc,
		HeapSys:     memStats.HeapSys,
		NumGC:       memStats.NumGC,
		LastGCTime:  time.Unix(0, int64(memStats.LastGC)),
		MemoryUsage: float64(memStats.HeapAlloc) / float64(memStats.HeapSys) * 100,
	}
}

// SetMemoryThresholds 设置内存阈值，单位字节
func SetMemoryThresholds(highThreshold, criticalThreshold uint64) {
	globalMonitor.highMemThreshold = highThreshold
	globalMonitor.criticalMemThreshold = criticalThreshold
}
