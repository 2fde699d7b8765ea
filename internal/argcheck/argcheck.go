// Package argcheck validates the arguments a scheduling call's public
// entry points accept: identifier syntax, numeric range checks,
// enum/field-membership checks, and the cursor-or-shorthand cascade a
// cursor argument can be given in. Every check reports through
// errcode.Argument with an "argument <i>, '<name>' to <op>: <reason>"
// message shape.
package argcheck

import (
	"regexp"

	"exo/internal/errcode"
)

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// IsValidName reports whether name is a syntactically valid identifier.
func IsValidName(name string) bool {
	return identRe.MatchString(name)
}

// Name validates that v is a syntactically valid identifier (ArgumentProcessor
// NameA).
func Name(i int, argName, op, v string) (string, error) {
	if !IsValidName(v) {
		return "", errcode.Argument(i, argName, op, "expected a valid name")
	}
	return v, nil
}

var nameCountRe = regexp.MustCompile(`^([a-zA-Z_]\w*)\s*(#\s*([0-9]+))?$`)

// NameCount parses the "<name>" or "<name> #<k>" shorthand used to pick one
// occurrence of a named loop/variable among several (API_scheduling.py's
// NameCountA), returning the bare name and a 1-indexed occurrence (default
// 1 when no "#k" suffix is present).
func NameCount(i int, argName, op, v string) (name string, occurrence int, err error) {
	m := nameCountRe.FindStringSubmatch(v)
	if m == nil {
		return "", 0, errcode.Argument(i, argName, op, "expected '<name>' or '<name> #<k>'")
	}
	name = m[1]
	if m[3] == "" {
		return name, 1, nil
	}
	n := 0
	for _, r := range m[3] {
		n = n*10 + int(r-'0')
	}
	return name, n, nil
}
