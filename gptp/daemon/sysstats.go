/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package daemon

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

const sysPrefix = "gptp.sys."

// SysStats samples the daemon process and the Go runtime
type SysStats struct {
	proc     *process.Process
	prev     runtime.MemStats
	prevTime time.Time
}

// perSecond returns the average growth of a monotonic counter, false if it can't be computed
func perSecond(cur, prev uint64, elapsed time.Duration) (uint64, bool) {
	if cur < prev || elapsed < time.Second {
		return 0, false
	}
	return uint64(float64(cur-prev) / elapsed.Seconds()), true
}

// Collect returns a sample taken at now. Rates appear from the second sample on.
func (s *SysStats) Collect(now time.Time) (map[string]uint64, error) {
	if s.proc == nil {
		proc, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			return nil, err
		}
		s.proc = proc
	}
	stats := map[string]uint64{}
	if created, err := s.proc.CreateTime(); err == nil && now.UnixMilli() >= created {
		stats[sysPrefix+"uptime_sec"] = uint64(now.UnixMilli()-created) / 1000
	}
	if cpu, err := s.proc.Percent(0); err == nil {
		stats[sysPrefix+"cpu_permil"] = uint64(cpu * 10)
	}
	if mem, err := s.proc.MemoryInfo(); err == nil {
		stats[sysPrefix+"rss_bytes"] = mem.RSS
	}
	if fds, err := s.proc.NumFDs(); err == nil {
		stats[sysPrefix+"num_fds"] = uint64(fds)
	}
	if threads, err := s.proc.NumThreads(); err == nil {
		stats[sysPrefix+"num_threads"] = uint64(threads)
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	stats[sysPrefix+"goroutines"] = uint64(runtime.NumGoroutine())
	stats[sysPrefix+"heap_alloc_bytes"] = m.HeapAlloc
	stats[sysPrefix+"heap_objects"] = m.HeapObjects
	stats[sysPrefix+"gc_count"] = uint64(m.NumGC)
	stats[sysPrefix+"gc_pause_total_ns"] = m.PauseTotalNs

	if !s.prevTime.IsZero() {
		elapsed := now.Sub(s.prevTime)
		if v, ok := perSecond(m.Mallocs, s.prev.Mallocs, elapsed); ok {
			stats[sysPrefix+"mallocs_per_sec"] = v
		}
		if v, ok := perSecond(uint64(m.NumGC), uint64(s.prev.NumGC), elapsed); ok {
			stats[sysPrefix+"gc_per_sec"] = v
		}
	}
	s.prev = m
	s.prevTime = now
	return stats, nil
}
