// Package scheduler merges each device's periodic scan interval into a
// single consumer goroutine: a container/heap priority queue orders
// devices by next-fire-time, one device is sampled at a time over the
// shared transport, and late ticks coalesce onto "now" instead of firing
// a burst of catch-up samples.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/timokroeger/data-collector/internal/controller"
	"github.com/timokroeger/data-collector/internal/device"
	"github.com/timokroeger/data-collector/internal/publisher"
	"github.com/timokroeger/data-collector/internal/transport"
)

// entry is one device's slot in the priority queue.
type entry struct {
	device   *device.Device
	nextFire time.Time
	index    int
}

type entryQueue []*entry

func (q entryQueue) Len() int            { return len(q) }
func (q entryQueue) Less(i, j int) bool  { return q[i].nextFire.Before(q[j].nextFire) }
func (q entryQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index = i; q[j].index = j }
func (q *entryQueue) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}
func (q *entryQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// Scheduler owns the merged tick loop for one Modbus transport and the set
// of devices sharing it.
type Scheduler struct {
	transport  *transport.Transport
	publisher  *publisher.Publisher
	controller *controller.Controller
	log        *zap.Logger
	queue      entryQueue
	terminal   bool // set once the controller crosses its failure threshold
}

// New builds a Scheduler for devices, all sampled over the same transport.
func New(tr *transport.Transport, pub *publisher.Publisher, ctrl *controller.Controller, log *zap.Logger, devices []*device.Device) *Scheduler {
	now := time.Now()
	s := &Scheduler{transport: tr, publisher: pub, controller: ctrl, log: log}
	s.queue = make(entryQueue, 0, len(devices))
	for _, d := range devices {
		heap.Push(&s.queue, &entry{device: d, nextFire: now.Add(d.ScanInterval)})
	}
	heap.Init(&s.queue)
	return s
}

// Run drives the merged tick loop until ctx is cancelled or the
// Controller signals a terminal failure threshold. It returns the
// terminal error, or nil on clean shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.queue) == 0 {
		<-ctx.Done()
		return nil
	}

	timer := time.NewTimer(time.Until(s.queue[0].nextFire))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			now := time.Now()
			for len(s.queue) > 0 && !s.queue[0].nextFire.After(now) {
				e := heap.Pop(&s.queue).(*entry)
				s.tick(e.device)

				// Late-tick coalescing: schedule relative to now, not the
				// missed nextFire, so a stall never produces a burst of
				// catch-up samples.
				e.nextFire = now.Add(e.device.ScanInterval)
				heap.Push(&s.queue, e)

				if s.controller != nil && s.terminal {
					return s.controller.Err()
				}
			}
			if len(s.queue) > 0 {
				timer.Reset(time.Until(s.queue[0].nextFire))
			}
		}
	}
}

func (s *Scheduler) tick(d *device.Device) {
	blob, err := d.Sample(s.transport)
	if err != nil {
		s.log.Warn("sample failed",
			zap.Uint8("device_id", d.ID),
			zap.Stringer("error_kind", errorKind(err)),
			zap.Error(err))
		if s.controller != nil && s.controller.RecordFailure() {
			s.terminal = true
		}
		return
	}
	if blob == "" {
		if s.controller != nil {
			s.controller.RecordSuccess()
		}
		return
	}
	if err := s.publisher.Publish(blob); err != nil {
		s.log.Warn("publish failed", zap.Uint8("device_id", d.ID), zap.Error(err))
		if s.controller != nil && s.controller.RecordFailure() {
			s.terminal = true
		}
		return
	}
	if s.controller != nil {
		s.controller.RecordSuccess()
	}
}

// errorKind extracts the transport.ErrorKind classification from err, for
// differentiated warn-level logging. Errors that never reached the
// transport layer (e.g. a publisher failure) report TransportIO, since
// there's no protocol-level exception to distinguish.
func errorKind(err error) transport.ErrorKind {
	var terr *transport.Error
	if errors.As(err, &terr) {
		return terr.Kind
	}
	return transport.TransportIO
}
