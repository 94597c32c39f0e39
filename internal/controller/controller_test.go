package controller_test

import (
	"math"
	"testing"
	"time"

	"github.com/timokroeger/data-collector/internal/controller"
)

func TestThresholdThreeDevices(t *testing.T) {
	// 3 devices, intervals 1s/2s/4s => ratio = ceil(4/1) = 4, threshold = 24.
	got := controller.Threshold(3, time.Second, 4*time.Second)
	if got != 24 {
		t.Errorf("Threshold = %d, want 24", got)
	}
}

func TestThresholdSingleDevice(t *testing.T) {
	got := controller.Threshold(1, time.Second, time.Second)
	if got != 2 {
		t.Errorf("Threshold = %d, want 2", got)
	}
}

func TestThresholdNonIntegerRatio(t *testing.T) {
	got := controller.Threshold(2, time.Second, 2500*time.Millisecond)
	want := int64(2 * 2 * int64(math.Ceil(2.5)))
	if got != want {
		t.Errorf("Threshold = %d, want %d", got, want)
	}
}

func TestRecordFailureReachesTerminal(t *testing.T) {
	c := controller.New(3)
	if c.RecordFailure() {
		t.Fatal("terminal too early")
	}
	if c.RecordFailure() {
		t.Fatal("terminal too early")
	}
	if !c.RecordFailure() {
		t.Fatal("expected terminal at threshold")
	}
	if c.FailCount() != 3 {
		t.Errorf("FailCount = %d, want 3", c.FailCount())
	}
}

func TestRecordSuccessFloorsAtZero(t *testing.T) {
	c := controller.New(5)
	c.RecordSuccess()
	if c.FailCount() != 0 {
		t.Errorf("FailCount = %d, want 0", c.FailCount())
	}
	c.RecordFailure()
	c.RecordFailure()
	c.RecordSuccess()
	if c.FailCount() != 1 {
		t.Errorf("FailCount = %d, want 1", c.FailCount())
	}
}

func TestErrMessage(t *testing.T) {
	c := controller.New(2)
	c.RecordFailure()
	c.RecordFailure()
	err := c.Err()
	if err == nil {
		t.Fatal("expected non-nil error")
	}
}
