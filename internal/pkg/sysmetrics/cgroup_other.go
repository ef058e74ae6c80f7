//go:build !linux

package sysmetrics

// readCgroupMemory reports no limit outside Linux.
func readCgroupMemory() cgroupMemory {
	return cgroupMemory{}
}
