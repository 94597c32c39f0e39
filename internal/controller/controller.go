// Package controller maintains the fleet-wide failure counter that
// distinguishes transient noise from total outage, and decides when the
// process must exit.
package controller

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

// Controller tracks fail_count and signals terminal exit once it reaches
// threshold.
type Controller struct {
	failCount atomic.Int64
	threshold int64
}

// Threshold computes 2 * deviceCount * ceil(maxInterval/minInterval), the
// grace window before the controller gives up on the fleet.
func Threshold(deviceCount int, minInterval, maxInterval time.Duration) int64 {
	if deviceCount <= 0 || minInterval <= 0 {
		return 0
	}
	ratio := int64(math.Ceil(float64(maxInterval) / float64(minInterval)))
	return 2 * int64(deviceCount) * ratio
}

// New builds a Controller with the given threshold.
func New(threshold int64) *Controller {
	return &Controller{threshold: threshold}
}

// RecordFailure increments fail_count and reports whether the fleet has
// now crossed the terminal threshold.
func (c *Controller) RecordFailure() (terminal bool) {
	n := c.failCount.Add(1)
	return n >= c.threshold
}

// RecordSuccess decrements fail_count by one, floored at zero. It never
// resets fail_count outright: decrementing by one is the coherent choice
// over a hard reset, since a single success after a long failure streak
// shouldn't immediately trust the link again.
func (c *Controller) RecordSuccess() {
	for {
		cur := c.failCount.Load()
		if cur <= 0 {
			return
		}
		if c.failCount.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// FailCount returns the current failure counter, for logging/tests.
func (c *Controller) FailCount() int64 { return c.failCount.Load() }

// Threshold returns the configured terminal threshold.
func (c *Controller) Threshold() int64 { return c.threshold }

// Err builds the terminal error message reported when the fail count
// reaches threshold.
func (c *Controller) Err() error {
	return fmt.Errorf("%d modbus communication errors, exiting...", c.failCount.Load())
}
