package decode

import (
	"math"
	"testing"
)

func TestParseBadDataType(t *testing.T) {
	if _, err := Parse("nope"); err == nil {
		t.Fatal("expected error for unknown data type")
	}
}

func TestWidth(t *testing.T) {
	cases := map[DataType]int{
		U16: 1, I16: 1,
		U32: 2, I32: 2, F32: 2,
		F64: 4, U64: 4, I64: 4,
	}
	for dt, want := range cases {
		if got := dt.Width(); got != want {
			t.Errorf("%s width = %d, want %d", dt, got, want)
		}
	}
}

// Sample register words spanning all supported widths.
var sample = []uint16{0x2468, 0xACF0, 0x0002, 0x0004}

func TestDecodeU16(t *testing.T) {
	if got := U16.Decode(sample); got != float64(uint16(0x2468)) {
		t.Errorf("u16 = %v, want %v", got, float64(uint16(0x2468)))
	}
}

func TestDecodeU32(t *testing.T) {
	want := float64(uint32(0x2468ACF0))
	if got := U32.Decode(sample); got != want {
		t.Errorf("u32 = %v, want %v", got, want)
	}
}

func TestDecodeI16(t *testing.T) {
	want := float64(int16(0x2468))
	if got := I16.Decode(sample); got != want {
		t.Errorf("i16 = %v, want %v", got, want)
	}
}

func TestDecodeI32(t *testing.T) {
	want := float64(int32(0x2468ACF0))
	if got := I32.Decode(sample); got != want {
		t.Errorf("i32 = %v, want %v", got, want)
	}
}

func TestDecodeF32(t *testing.T) {
	want := float64(math.Float32frombits(0x2468ACF0))
	if got := F32.Decode(sample); got != want {
		t.Errorf("f32 = %v, want %v", got, want)
	}
}

func TestDecodeF64(t *testing.T) {
	bits := uint64(sample[0])<<48 | uint64(sample[1])<<32 | uint64(sample[2])<<16 | uint64(sample[3])
	want := math.Float64frombits(bits)
	if got := F64.Decode(sample); got != want {
		t.Errorf("f64 = %v, want %v", got, want)
	}
}

func TestDecodeF32NaNAndInf(t *testing.T) {
	nanWords := []uint16{0x7FC0, 0x0000}
	if got := F32.Decode(nanWords); !math.IsNaN(got) {
		t.Errorf("expected NaN, got %v", got)
	}

	infWords := []uint16{0x7F80, 0x0000}
	if got := F32.Decode(infWords); !math.IsInf(got, 1) {
		t.Errorf("expected +Inf, got %v", got)
	}
}

func TestDecodeIgnoresExcessWords(t *testing.T) {
	words := []uint16{0x0001, 0xFFFF, 0xFFFF, 0xFFFF}
	if got := U16.Decode(words); got != 1 {
		t.Errorf("u16 with excess words = %v, want 1", got)
	}
}
