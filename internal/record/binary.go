package record

import (
	"math"
	"strings"
)

// Binary is a tri-state binary verdict value.
type Binary int

const (
	Unknown Binary = iota - 1
	Zero
	One
)

func (b Binary) String() string {
	switch b {
	case Zero:
		return "0"
	case One:
		return "1"
	default:
		return "unknown"
	}
}

// Defined reports whether b is 0 or 1.
func (b Binary) Defined() bool {
	return b == Zero || b == One
}

// NormalizeBinary resolves a raw value to 0, 1 or Unknown.
//
// Booleans map to 1/0. Numbers are truncated to an integer; only 0 and 1 are
// defined. Strings are trimmed and lower-cased: "1", "true", "t", "yes" map to
// 1 and "0", "false", "f", "no" map to 0. Everything else, nil included, is
// Unknown.
func NormalizeBinary(v any) Binary {
	switch x := v.(type) {
	case nil:
		return Unknown
	case bool:
		if x {
			return One
		}
		return Zero
	case int:
		return fromInt(int64(x))
	case int8:
		return fromInt(int64(x))
	case int16:
		return fromInt(int64(x))
	case int32:
		return fromInt(int64(x))
	case int64:
		return fromInt(x)
	case uint:
		return fromUint(uint64(x))
	case uint8:
		return fromUint(uint64(x))
	case uint16:
		return fromUint(uint64(x))
	case uint32:
		return fromUint(uint64(x))
	case uint64:
		return fromUint(x)
	case float32:
		return fromFloat(float64(x))
	case float64:
		return fromFloat(x)
	case string:
		return fromString(x)
	case []byte:
		return fromString(string(x))
	default:
		return Unknown
	}
}

// Match reports whether a binary record is correct: both sides must be
// defined and equal.
func Match(gold, predicted any) bool {
	g, p := NormalizeBinary(gold), NormalizeBinary(predicted)
	return g.Defined() && p.Defined() && g == p
}

func fromInt(n int64) Binary {
	switch n {
	case 0:
		return Zero
	case 1:
		return One
	default:
		return Unknown
	}
}

func fromUint(n uint64) Binary {
	if n > 1 {
		return Unknown
	}
	return fromInt(int64(n))
}

func fromFloat(f float64) Binary {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Unknown
	}
	t := math.Trunc(f)
	if t != 0 && t != 1 {
		return Unknown
	}
	return fromInt(int64(t))
}

func fromString(s string) Binary {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes":
		return One
	case "0", "false", "f", "no":
		return Zero
	default:
		return Unknown
	}
}
