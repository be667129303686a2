package storage

import "runtime"

const (
	defaultQueueConcurrency = 8
	queuePerCPU             = 10
	maxQueueConcurrency     = 64
)

func numCPU() int { return runtime.NumCPU() }

// queueConcurrencyForCPU scales the event-queue fan-out with the host CPU
// count, bounded on both ends.
func queueConcurrencyForCPU(cpu int) int {
	if cpu <= 0 {
		return defaultQueueConcurrency
	}
	n := cpu * queuePerCPU
	if n > maxQueueConcurrency {
		return maxQueueConcurrency
	}
	return n
}
