// Package crmsync replicates people, interactions, and tasks to external CRM
// providers through a durable retry queue.
package crmsync

import (
	"math"
	"time"
)

// maxBackoff caps the retry delay.
const maxBackoff = 60 * time.Minute

// Backoff returns the delay before the next retry: 2^attempts minutes,
// capped. Monotonically increasing in attempts.
func Backoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	delay := time.Duration(math.Pow(2, float64(attempts))) * time.Minute
	if delay > maxBackoff || delay <= 0 {
		delay = maxBackoff
	}
	return delay
}
