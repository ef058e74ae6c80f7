//go:build linux

package sysmetrics

import (
	"os"
	"strconv"
	"strings"
)

// Paths are variables so tests can point them at fixtures.
var (
	cgroupV2MemoryMax     = "/sys/fs/cgroup/memory.max"
	cgroupV2MemoryCurrent = "/sys/fs/cgroup/memory.current"
	cgroupV1MemoryLimit   = "/sys/fs/cgroup/memory/memory.limit_in_bytes"
	cgroupV1MemoryUsage   = "/sys/fs/cgroup/memory/memory.usage_in_bytes"
)

// readCgroupMemory reads the memory limit of the current cgroup and the
// usage from the same hierarchy. Tries cgroup v2 first, then falls back to
// cgroup v1. Returns a zero limit when none is set or none can be read.
func readCgroupMemory() cgroupMemory {
	if limit := readCgroupV2MemoryLimit(cgroupV2MemoryMax); limit > 0 {
		return cgroupMemory{Limit: limit, Usage: readUintFile(cgroupV2MemoryCurrent)}
	}
	if limit := readCgroupV1MemoryLimit(cgroupV1MemoryLimit); limit > 0 {
		return cgroupMemory{Limit: limit, Usage: readUintFile(cgroupV1MemoryUsage)}
	}
	return cgroupMemory{}
}

// readCgroupV2MemoryLimit reads memory.max from cgroup v2.
func readCgroupV2MemoryLimit(path string) uint64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}

	s := strings.TrimSpace(string(data))
	if s == "max" {
		return 0 // No limit
	}

	val, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return val
}

// readCgroupV1MemoryLimit reads memory.limit_in_bytes from cgroup v1.
func readCgroupV1MemoryLimit(path string) uint64 {
	val := readUintFile(path)

	// Very large values indicate no limit (usually 9223372036854771712)
	if val > 1<<62 {
		return 0
	}
	return val
}

// readUintFile reads a single unsigned counter, 0 if unreadable.
func readUintFile(path string) uint64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	val, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0
	}
	return val
}
