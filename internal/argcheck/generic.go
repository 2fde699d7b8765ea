package argcheck

import "exo/internal/errcode"

// Optional wraps a façade-boundary argument that a caller may omit
// (ArgumentProcessor OptionalA), applying check only when present.
func Optional[T any](v *T, check func(T) (T, error)) (*T, error) {
	if v == nil {
		return nil, nil
	}
	checked, err := check(*v)
	if err != nil {
		return nil, err
	}
	return &checked, nil
}

// List validates every element of vs with check, collecting the results in
// order (ArgumentProcessor ListA). An error on any element aborts the whole
// list rather than skipping it, since a partially-applied scheduling op
// would leave the procedure in an inconsistent state.
func List[T any](vs []T, check func(int, T) (T, error)) ([]T, error) {
	out := make([]T, len(vs))
	for i, v := range vs {
		checked, err := check(i, v)
		if err != nil {
			return nil, err
		}
		out[i] = checked
	}
	return out, nil
}

// ListOrElem normalizes the "a single T or a list of T" shorthand several
// scheduling ops accept (ArgumentProcessor ListOrElemA) into a slice, then
// validates it with List.
func ListOrElem[T any](i int, argName, op string, v any, check func(int, T) (T, error)) ([]T, error) {
	switch t := v.(type) {
	case []T:
		return List(t, check)
	case T:
		return List([]T{t}, check)
	default:
		return nil, errcode.Argument(i, argName, op, "expected a value or a list of values")
	}
}
