package wire

import (
	"math"
	"unicode/utf8"
)

func f64Bits(v float64) uint64     { return math.Float64bits(v) }
func f64FromBits(v uint64) float64 { return math.Float64frombits(v) }
func utf8Valid(b []byte) bool      { return utf8.Valid(b) }
