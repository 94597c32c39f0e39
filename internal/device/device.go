// Package device implements the per-device polling unit: a Modbus unit id,
// scan interval, static tag set, and register plan, exposing a single
// Sample call that returns encoded line-protocol text.
package device

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/timokroeger/data-collector/internal/lineprotocol"
	"github.com/timokroeger/data-collector/internal/plan"
	"github.com/timokroeger/data-collector/internal/transport"
)

// Device is a unit of polling. Immutable once constructed.
type Device struct {
	ID           uint8
	ScanInterval time.Duration
	Tags         []lineprotocol.Tag
	Plan         *plan.Plan
}

// Sample performs one scan: selects the device's unit id, issues one read
// per plan interval, decodes and scales every covered register, and
// returns the concatenated line-protocol blob. All lines from one Sample
// call share a single timestamp, quantized to the device's scan interval.
//
// The first Modbus error aborts the call; no partial blob is returned.
func (d *Device) Sample(t *transport.Transport) (string, error) {
	t.Lock()
	defer t.Unlock()

	t.SetUnitID(d.ID)

	timestamp := quantize(time.Now().UnixNano(), d.ScanInterval)

	var b strings.Builder
	for _, iv := range d.Plan.Intervals() {
		words, err := t.ReadInputRegisters(iv.Start, iv.Len())
		if err != nil {
			return "", err
		}

		d.Plan.RegistersIn(iv, words, func(r plan.Register, regWords []uint16) {
			value := r.DataType.Decode(regWords) * r.Scaling
			tags := make([]lineprotocol.Tag, 0, len(d.Tags)+len(r.Tags)+1)
			tags = append(tags, d.Tags...)

			keys := make([]string, 0, len(r.Tags))
			for k := range r.Tags {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				tags = append(tags, lineprotocol.Tag{Key: k, Value: r.Tags[k]})
			}

			tags = append(tags, lineprotocol.Tag{Key: "modbus_id", Value: strconv.Itoa(int(d.ID))})

			lineprotocol.Line(&b, r.Name, tags, value, uint64(timestamp))
		})
	}

	return b.String(), nil
}

// quantize divides ns by interval (in nanoseconds) and multiplies back,
// floor-truncating to the start of the device's current scan window.
func quantize(ns int64, interval time.Duration) int64 {
	step := int64(interval)
	if step <= 0 {
		return ns
	}
	return (ns / step) * step
}
