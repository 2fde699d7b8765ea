package argcheck

import "exo/internal/errcode"

// PosInt validates a strictly positive integer argument (ArgumentProcessor
// PosIntA).
func PosInt(i int, argName, op string, v int) (int, error) {
	if v <= 0 {
		return 0, errcode.Argument(i, argName, op, "expected a positive integer")
	}
	return v, nil
}

// NonNegInt validates a non-negative integer argument, used by arguments
// like a dimension index or a gap offset that may legitimately be zero.
func NonNegInt(i int, argName, op string, v int) (int, error) {
	if v < 0 {
		return 0, errcode.Argument(i, argName, op, "expected a non-negative integer")
	}
	return v, nil
}

// InRange validates lo <= v < hi, used for dimension indices that must fall
// within a buffer's declared rank.
func InRange(i int, argName, op string, v, lo, hi int) (int, error) {
	if v < lo || v >= hi {
		return 0, errcode.Argument(i, argName, op, "value out of range")
	}
	return v, nil
}
