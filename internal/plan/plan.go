// Package plan builds minimal, non-overlapping Modbus read intervals from a
// device's register map, and maps a read response back onto the registers
// it covers.
package plan

import (
	"sort"

	"github.com/timokroeger/data-collector/internal/decode"
)

// Register is one addressable scalar within a device's register map.
type Register struct {
	Address  uint16
	Name     string
	DataType decode.DataType
	Scaling  float64
	Tags     map[string]string
}

// Interval is a [Start, End) word range issued as a single read request.
type Interval struct {
	Start uint16
	End   uint16
}

// Len reports the interval's width in 16-bit words.
func (iv Interval) Len() uint16 { return iv.End - iv.Start }

// Plan is the ordered register map and the minimal read intervals that
// cover it.
type Plan struct {
	registers []Register // sorted ascending by Address
	intervals []Interval
}

// New builds a Plan from registers, which need not be pre-sorted.
//
// Construction: walk registers in ascending address order; for each
// register at a with width w forming [a, a+w), if the last interval's End
// overlaps-or-touches a, extend it to max(End, a+w); else start a new
// interval. This guarantees: every register's span is contained in exactly
// one interval, intervals are strictly increasing with no two adjacent
// intervals touching or overlapping, and interval count is minimal.
func New(registers []Register) *Plan {
	sorted := make([]Register, len(registers))
	copy(sorted, registers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Address < sorted[j].Address })

	var intervals []Interval
	for _, r := range sorted {
		start := r.Address
		end := r.Address + uint16(r.DataType.Width())
		if n := len(intervals); n > 0 && intervals[n-1].End >= start {
			if end > intervals[n-1].End {
				intervals[n-1].End = end
			}
		} else {
			intervals = append(intervals, Interval{Start: start, End: end})
		}
	}

	return &Plan{registers: sorted, intervals: intervals}
}

// Registers returns the ordered (address, spec) pairs.
func (p *Plan) Registers() []Register { return p.registers }

// Intervals returns the minimal read intervals in ascending start order.
func (p *Plan) Intervals() []Interval { return p.intervals }

// Empty reports whether the plan has no registers.
func (p *Plan) Empty() bool { return len(p.registers) == 0 }

// RegistersIn calls fn for every register whose address falls within iv,
// given the contiguous word buffer returned by the transport for that
// interval. The slice passed to fn begins at the register's address offset
// within buf.
func (p *Plan) RegistersIn(iv Interval, buf []uint16, fn func(r Register, words []uint16)) {
	for _, r := range p.registers {
		if r.Address < iv.Start || r.Address >= iv.End {
			continue
		}
		offset := r.Address - iv.Start
		fn(r, buf[offset:])
	}
}
