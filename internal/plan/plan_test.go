package plan

import (
	"reflect"
	"testing"

	"github.com/timokroeger/data-collector/internal/decode"
)

func reg(addr uint16, dt decode.DataType) Register {
	return Register{Address: addr, Name: "r", DataType: dt, Scaling: 1}
}

// S1: consecutive registers merge into a single interval.
func TestPlanConsecutive(t *testing.T) {
	p := New([]Register{reg(1, decode.F32), reg(3, decode.U16)})
	want := []Interval{{Start: 1, End: 4}}
	if got := p.Intervals(); !reflect.DeepEqual(got, want) {
		t.Errorf("intervals = %v, want %v", got, want)
	}
}

// S2: a gap splits the plan into two intervals.
func TestPlanSplit(t *testing.T) {
	p := New([]Register{reg(1, decode.F32), reg(8, decode.U16)})
	want := []Interval{{Start: 1, End: 3}, {Start: 8, End: 9}}
	if got := p.Intervals(); !reflect.DeepEqual(got, want) {
		t.Errorf("intervals = %v, want %v", got, want)
	}
}

// S3: an overlapping register is absorbed into the wider interval.
func TestPlanOverlapping(t *testing.T) {
	p := New([]Register{reg(1, decode.F64), reg(3, decode.U16)})
	want := []Interval{{Start: 1, End: 5}}
	if got := p.Intervals(); !reflect.DeepEqual(got, want) {
		t.Errorf("intervals = %v, want %v", got, want)
	}
}

// Property 1 & 2: coverage and minimality hold for an arbitrary mixed map.
func TestPlanCoverageAndMinimality(t *testing.T) {
	registers := []Register{
		reg(0, decode.U16),
		reg(1, decode.U32),
		reg(10, decode.F64),
		reg(12, decode.U16),
		reg(20, decode.I16),
	}
	p := New(registers)

	for _, r := range registers {
		w := uint16(r.DataType.Width())
		found := 0
		for _, iv := range p.Intervals() {
			if iv.Start <= r.Address && r.Address+w <= iv.End {
				found++
			}
		}
		if found != 1 {
			t.Errorf("register at %d covered by %d intervals, want exactly 1", r.Address, found)
		}
	}

	ivs := p.Intervals()
	for i := 1; i < len(ivs); i++ {
		if ivs[i].Start <= ivs[i-1].End {
			t.Errorf("adjacent intervals %v and %v should have merged", ivs[i-1], ivs[i])
		}
	}
}

func TestRegistersIn(t *testing.T) {
	registers := []Register{reg(1, decode.F32), reg(3, decode.U16)}
	p := New(registers)
	iv := p.Intervals()[0]

	buf := []uint16{0x1111, 0x2222, 0x3333}
	seen := map[uint16][]uint16{}
	p.RegistersIn(iv, buf, func(r Register, words []uint16) {
		seen[r.Address] = words
	})

	if !reflect.DeepEqual(seen[1], []uint16{0x1111, 0x2222, 0x3333}) {
		t.Errorf("register at 1 got %v", seen[1])
	}
	if !reflect.DeepEqual(seen[3], []uint16{0x3333}) {
		t.Errorf("register at 3 got %v", seen[3])
	}
}

func TestEmptyPlan(t *testing.T) {
	p := New(nil)
	if !p.Empty() {
		t.Error("expected empty plan")
	}
	if len(p.Intervals()) != 0 {
		t.Error("expected no intervals")
	}
}
