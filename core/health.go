package core

import (
	"bufio"
	"context"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// SystemStatus is the /healthz payload.
type SystemStatus struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
	Memory       struct {
		UsedBytes  uint64 `json:"used_bytes"`
		TotalBytes uint64 `json:"total_bytes"`
	} `json:"memory"`
	NumGoroutine  int   `json:"num_goroutine"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// Healthy reports whether every dependency answered.
func (s SystemStatus) Healthy() bool {
	return s.Status == "ok"
}

// CollectSystemStatus runs every check with a short timeout and aggregates the result.
func CollectSystemStatus(ctx context.Context, checks map[string]HealthCheck, startedAt time.Time) SystemStatus {
	st := SystemStatus{Status: "ok", Dependencies: map[string]string{}}

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := checks[name](cctx)
		cancel()
		if err != nil {
			st.Dependencies[name] = "error: " + err.Error()
			st.Status = "degraded"
			continue
		}
		st.Dependencies[name] = "ok"
	}

	// best-effort from /proc/meminfo
	used, total := readMemInfo()
	st.Memory.UsedBytes = used
	st.Memory.TotalBytes = total
	st.NumGoroutine = runtime.NumGoroutine()

	if !startedAt.IsZero() {
		st.UptimeSeconds = int64(time.Since(startedAt).Seconds())
	}
	return st
}

// readMemInfo returns used and total bytes using /proc/meminfo.
// If unavailable, returns zeros.
func readMemInfo() (used, total uint64) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	var memTotal, memAvailable uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "MemTotal:") {
			memTotal = parseKiBLine(line)
		} else if strings.HasPrefix(line, "MemAvailable:") {
			memAvailable = parseKiBLine(line)
		}
	}
	if memTotal > 0 {
		total = memTotal
		if memAvailable <= memTotal {
			used = memTotal - memAvailable
		}
		used *= 1024
		total *= 1024
	}
	return used, total
}

func parseKiBLine(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
