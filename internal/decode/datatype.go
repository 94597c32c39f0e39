// Package decode implements the scalar DataType codec: parsing a register's
// textual type tag and decoding its big-endian word sequence into a float64.
package decode

import (
	"fmt"
	"math"
)

// DataType is a Modbus register's scalar encoding.
type DataType int

const (
	U16 DataType = iota
	U32
	I16
	I32
	F32
	F64
	// U64/I64 are historical variants kept for compatibility with older
	// register schemas; width 4, same big-endian word-first composition.
	U64
	I64
)

// Parse maps a textual tag to a DataType. Unknown text is an error.
func Parse(s string) (DataType, error) {
	switch s {
	case "u16":
		return U16, nil
	case "u32":
		return U32, nil
	case "i16":
		return I16, nil
	case "i32":
		return I32, nil
	case "f32":
		return F32, nil
	case "f64":
		return F64, nil
	case "u64":
		return U64, nil
	case "i64":
		return I64, nil
	default:
		return 0, fmt.Errorf("bad data type %q", s)
	}
}

func (dt DataType) String() string {
	switch dt {
	case U16:
		return "u16"
	case U32:
		return "u32"
	case I16:
		return "i16"
	case I32:
		return "i32"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case U64:
		return "u64"
	case I64:
		return "i64"
	default:
		return "unknown"
	}
}

// Width returns the number of 16-bit words the type occupies.
func (dt DataType) Width() int {
	switch dt {
	case U16, I16:
		return 1
	case U32, I32, F32:
		return 2
	case F64, U64, I64:
		return 4
	default:
		return 0
	}
}

// Decode reads exactly Width() words from the head of words (which must
// have at least that many) and reinterprets them as dt. Words are
// big-endian, most-significant-word-first; no rounding or scaling occurs
// here. NaN, Infinity, and subnormals pass through unchanged for float
// types.
func (dt DataType) Decode(words []uint16) float64 {
	switch dt {
	case U16:
		return float64(words[0])
	case I16:
		return float64(int16(words[0]))
	case U32:
		return float64(compose32(words))
	case I32:
		return float64(int32(compose32(words)))
	case F32:
		return float64(math.Float32frombits(compose32(words)))
	case F64:
		return math.Float64frombits(compose64(words))
	case U64:
		return float64(compose64(words))
	case I64:
		return float64(int64(compose64(words)))
	default:
		return 0
	}
}

func compose32(words []uint16) uint32 {
	return uint32(words[0])<<16 | uint32(words[1])
}

func compose64(words []uint16) uint64 {
	return uint64(words[0])<<48 | uint64(words[1])<<32 | uint64(words[2])<<16 | uint64(words[3])
}
